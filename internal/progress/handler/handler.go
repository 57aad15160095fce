package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dials/internal/platform/metrics"
	"dials/internal/platform/middleware"
	"dials/internal/progress/models"
	"dials/internal/progress/service"
	dErrors "dials/pkg/domain-errors"
	"dials/pkg/platform/httputil"
)

// Service defines the progress operations the handler needs.
type Service interface {
	Save(ctx context.Context, userID, userKey string, doc json.RawMessage) error
	Get(ctx context.Context, userID, userKey string) (*models.Progress, error)
	Delete(ctx context.Context, userID, userKey string) error
}

// DefaultMaxBodyBytes bounds request bodies before decoding.
const DefaultMaxBodyBytes = 1 << 20

// Handler serves /progress.
type Handler struct {
	logger       *slog.Logger
	progress     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	maxBodyBytes int64
}

// New creates a progress Handler. maxBodyBytes <= 0 selects the default.
func New(
	progress Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		logger:       logger,
		progress:     progress,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		maxBodyBytes: maxBodyBytes,
	}
}

// Register registers the progress routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	progressRouter := chi.NewRouter()
	progressRouter.Use(middleware.Recovery(h.logger))
	progressRouter.Use(middleware.RequestID)
	progressRouter.Use(middleware.Logger(h.logger))
	progressRouter.Use(middleware.Timeout(30 * time.Second))
	progressRouter.Use(middleware.ContentTypeJSON)
	progressRouter.Use(middleware.LatencyMiddleware(h.metrics))
	progressRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	progressRouter.Post("/progress", h.handleSaveProgress)
	progressRouter.Get("/progress", h.handleGetProgress)
	progressRouter.Delete("/progress", h.handleDeleteProgress)

	r.Mount("/", progressRouter)
}

func (h *Handler) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.SaveProgressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "Progress payload too large"))
			return
		}
		h.logger.WarnContext(ctx, "invalid save progress request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.progress.Save(ctx, userID, req.Key(), req.Document()); err != nil {
		h.writeServiceError(ctx, w, err, "failed to save progress")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response{Success: true})
}

func (h *Handler) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	p, err := h.progress.Get(ctx, userID, userKeyParam(r))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load progress")
		return
	}
	resp := models.GetProgressResponse{Success: true}
	if p != nil {
		resp.Progress = service.View(p)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.progress.Delete(ctx, userID, userKeyParam(r)); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete progress")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response{Success: true})
}

// userKeyParam reads the userKey query parameter, accepting its snake_case
// spelling too.
func userKeyParam(r *http.Request) string {
	q := r.URL.Query()
	if k := q.Get("userKey"); k != "" {
		return k
	}
	return q.Get("user_key")
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		// RequireAuth guarantees a user; reaching here is a wiring bug.
		h.logger.ErrorContext(r.Context(), "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
