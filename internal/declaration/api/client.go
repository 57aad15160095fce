// Package api is the engine's client for the portal backend: declaration
// load/patch/put/create and the progress mirror endpoints.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dials/internal/declaration/models"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
)

const tracerName = "dials/internal/declaration/api"

// TokenSource yields the bearer token for a request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New constructs a Client rooted at baseURL (e.g. "https://portal/api").
// Requests carry no timeout beyond the http.Client's; callers bound them
// with their context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		tokens:  StaticToken(""),
		logger:  logger.Discard(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDeclaration loads one declaration record.
func (c *Client) GetDeclaration(ctx context.Context, id string) (*models.Record, error) {
	var env models.RecordEnvelope
	if err := c.do(ctx, http.MethodGet, "/declarations/"+url.PathEscape(id), "", nil, &env); err != nil {
		return nil, err
	}
	if env.Declaration == nil {
		return nil, &APIError{Status: http.StatusNotFound, Message: "Declaration not found"}
	}
	return env.Declaration, nil
}

// PatchDeclaration sends an incremental update.
func (c *Client) PatchDeclaration(ctx context.Context, id string, body any) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPatch, "/declarations/"+url.PathEscape(id), "", body, &out)
	return out, err
}

// PutDeclaration sends a full replacement of scalar and identity fields.
func (c *Client) PutDeclaration(ctx context.Context, id string, body any) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPut, "/declarations/"+url.PathEscape(id), "", body, &out)
	return out, err
}

// CreateResult is the backend's answer to a new submission.
type CreateResult struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	DeclarationID models.FlexString `json:"declaration_id"`
}

// CreateDeclaration submits a fully assembled payload.
func (c *Client) CreateDeclaration(ctx context.Context, payload any) (CreateResult, error) {
	var out CreateResult
	err := c.do(ctx, http.MethodPost, "/declarations", "", payload, &out)
	return out, err
}

// PostProgress mirrors a draft snapshot. progress is sent as-is.
func (c *Client) PostProgress(ctx context.Context, token, userKey string, progress any) error {
	body := struct {
		UserKey  string `json:"userKey"`
		Progress any    `json:"progress"`
	}{UserKey: userKey, Progress: progress}
	return c.do(ctx, http.MethodPost, "/progress", token, body, nil)
}

// GetProgress fetches the mirrored snapshot; nil when the server holds none.
func (c *Client) GetProgress(ctx context.Context, token, userKey string) (json.RawMessage, error) {
	var out struct {
		Progress json.RawMessage `json:"progress"`
	}
	if err := c.do(ctx, http.MethodGet, "/progress?userKey="+url.QueryEscape(userKey), token, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Progress) == 0 || bytes.Equal(out.Progress, []byte("null")) {
		return nil, nil
	}
	return out.Progress, nil
}

// DeleteProgress removes the mirrored snapshot.
func (c *Client) DeleteProgress(ctx context.Context, token, userKey string) error {
	return c.do(ctx, http.MethodDelete, "/progress?userKey="+url.QueryEscape(userKey), token, nil, nil)
}

// do sends one request. token overrides the token source when non-empty.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) (err error) {
	route := routeOf(path)
	ctx, span := c.tracer.Start(ctx, strings.ToLower(method)+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", route),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(route, method, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", route, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", route, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token == "" {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve bearer token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", route, err)
	}

	env := decodeEnvelope(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || (env.Success != nil && !*env.Success) {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.message()}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		c.logger.DebugContext(ctx, "backend rejected request",
			"method", method,
			"route", route,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}

type envelope struct {
	Success          *bool  `json:"success"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

func decodeEnvelope(raw []byte) envelope {
	var env envelope
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return env
	}
	_ = json.Unmarshal(trimmed, &env)
	return env
}

// routeOf strips ids and query strings so spans and metrics stay low-cardinality.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/declarations/") {
		return "/declarations/{id}"
	}
	return path
}

// APIError is a non-2xx or success:false response. Message is the server's
// own text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message returns the user-facing text of err: the backend's message for API
// errors, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
