package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dials/internal/platform/logger"
	"dials/internal/progress/metrics"
	"dials/internal/progress/models"
	dErrors "dials/pkg/domain-errors"
	"dials/pkg/platform/sentinel"
	"dials/pkg/requestcontext"
)

// Store persists progress records. Get and Latest return sentinel.ErrNotFound
// when nothing matches.
type Store interface {
	Upsert(ctx context.Context, p *models.Progress) error
	Get(ctx context.Context, userID, userKey string) (*models.Progress, error)
	Latest(ctx context.Context, userID string) (*models.Progress, error)
	Delete(ctx context.Context, userID, userKey string) error
}

// Service implements the server side of the draft mirror.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save validates and upserts the progress document of (userID, userKey).
func (s *Service) Save(ctx context.Context, userID, userKey string, doc json.RawMessage) error {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" || len(doc) == 0 {
		s.metrics.IncrementRejections(metrics.ReasonMissingFields)
		return dErrors.New(dErrors.CodeBadRequest, "userKey and progress required")
	}
	if len(userKey) > models.MaxUserKeyLength {
		s.metrics.IncrementRejections(metrics.ReasonInvalidShape)
		return dErrors.New(dErrors.CodeValidation, "userKey too long")
	}
	if err := ValidateShape(doc); err != nil {
		reason := metrics.ReasonInvalidShape
		if dErrors.Is(err, dErrors.CodePayloadTooLarge) {
			reason = metrics.ReasonTooLarge
		}
		s.metrics.IncrementRejections(reason)
		s.logger.WarnContext(ctx, "progress rejected",
			"user_id", userID,
			"user_key", userKey,
			"reason", err.Error(),
			"size", len(doc),
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}

	start := time.Now()
	err := s.store.Upsert(ctx, &models.Progress{
		UserID:    userID,
		UserKey:   userKey,
		Data:      doc,
		UpdatedAt: requestcontext.Now(ctx).UTC(),
	})
	s.metrics.ObserveStore("upsert", start)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to save progress")
	}
	s.metrics.IncrementUpserts()
	return nil
}

// Get returns the record for userKey, or the most recently updated record of
// the user when userKey is empty. A nil record means nothing is stored.
func (s *Service) Get(ctx context.Context, userID, userKey string) (*models.Progress, error) {
	start := time.Now()
	var (
		p   *models.Progress
		err error
	)
	if userKey = strings.TrimSpace(userKey); userKey != "" {
		p, err = s.store.Get(ctx, userID, userKey)
		s.metrics.ObserveStore("get", start)
	} else {
		p, err = s.store.Latest(ctx, userID)
		s.metrics.ObserveStore("latest", start)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load progress")
	}
	return p, nil
}

// Delete removes the record of (userID, userKey). Deleting a missing record
// succeeds.
func (s *Service) Delete(ctx context.Context, userID, userKey string) error {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return dErrors.New(dErrors.CodeBadRequest, "userKey required")
	}
	start := time.Now()
	err := s.store.Delete(ctx, userID, userKey)
	s.metrics.ObserveStore("delete", start)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to delete progress")
	}
	s.metrics.IncrementDeletes()
	return nil
}

// View shapes a stored record for clients: the stored document plus userKey
// and updatedAt, with a stateSnapshot that always has a userData object.
func View(p *models.Progress) map[string]any {
	doc := map[string]any{}
	if err := json.Unmarshal(p.Data, &doc); err != nil || doc == nil {
		doc = map[string]any{}
	}
	snapshot, ok := doc["stateSnapshot"].(map[string]any)
	if !ok {
		doc["stateSnapshot"] = map[string]any{
			"userData": map[string]any{},
			"spouses":  []any{},
			"children": []any{},
		}
	} else if !truthy(snapshot["userData"]) {
		snapshot["userData"] = map[string]any{}
	}
	doc["userKey"] = p.UserKey
	doc["updatedAt"] = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return doc
}
