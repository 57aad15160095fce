// Package engine assembles the declaration engine from its configuration:
// the backend client, the SQLite draft store, the progress mirror, and the
// sessions, schedulers and wizards pages work with.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"dials/internal/declaration/api"
	"dials/internal/declaration/scheduler"
	"dials/internal/declaration/session"
	"dials/internal/declaration/submission"
	"dials/internal/draft/kv"
	"dials/internal/draft/mirror"
	"dials/internal/draft/store"
	"dials/internal/platform/config"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
	"dials/internal/wizard"
)

// Engine owns the long-lived pieces shared by every page.
type Engine struct {
	cfg     config.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	kv     *kv.SQLite
	store  *store.Store
	http   *http.Client
	client *api.Client
	mirror *mirror.Mirror
}

type Option func(*Engine)

// WithLogger overrides the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Open opens the draft database at cfg.DraftDBPath and wires the rest of
// the engine against cfg.APIBaseURL. Close releases the database.
func Open(cfg config.Client, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.New(cfg.Log)
	}

	backend, err := kv.OpenSQLite(cfg.DraftDBPath)
	if err != nil {
		return nil, fmt.Errorf("open draft database: %w", err)
	}
	e.kv = backend
	e.store = store.New(backend, store.WithLogger(e.logger), store.WithMetrics(e.metrics))

	e.http = &http.Client{Timeout: cfg.RequestTimeout}
	e.client = api.New(cfg.APIBaseURL,
		api.WithHTTPClient(e.http),
		api.WithTokenSource(e.Tokens()),
		api.WithLogger(e.logger),
		api.WithMetrics(e.metrics),
	)
	e.mirror = mirror.New(e.store, e.client,
		mirror.WithLogger(e.logger),
		mirror.WithMetrics(e.metrics),
		mirror.WithDebounce(cfg.MirrorDebounce),
		mirror.WithSpacing(cfg.MirrorSpacing),
		mirror.WithMaxBytes(cfg.MirrorMaxBytes),
	)
	return e, nil
}

// Tokens reads the bearer token the portal stored in the draft database.
func (e *Engine) Tokens() api.TokenSource {
	return wizard.StoredToken{KV: e.kv}
}

// SetToken stores the bearer token used for backend calls.
func (e *Engine) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return e.kv.Remove(ctx, wizard.TokenKey)
	}
	return e.kv.Set(ctx, wizard.TokenKey, token)
}

func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) Client() *api.Client {
	return e.client
}

// HTTPClient is the client every backend request goes through.
func (e *Engine) HTTPClient() *http.Client {
	return e.http
}

// Wizard binds a wizard to the user's drafts.
func (e *Engine) Wizard(userKey string, opts ...wizard.Option) *wizard.Wizard {
	base := []wizard.Option{
		wizard.WithLogger(e.logger),
		wizard.WithBiennialWindow(submission.Window{
			Start: e.cfg.BiennialWindow.Start,
			End:   e.cfg.BiennialWindow.End,
		}),
	}
	return wizard.New(e.store, e.mirror, e.client, e.Tokens(), userKey, append(base, opts...)...)
}

// Session opens an editing session on an existing declaration. Call Load
// before saving.
func (e *Engine) Session(declarationID string) *session.Session {
	return session.New(e.client, declarationID,
		session.WithLogger(e.logger),
		session.WithMetrics(e.metrics),
		session.WithPutThreshold(e.cfg.PatchMaxBytes),
	)
}

// FieldScheduler debounces a page's field edits into s.
func (e *Engine) FieldScheduler(s *session.Session, build scheduler.Builder[session.Partial]) *scheduler.PatchScheduler[session.Partial] {
	return scheduler.New(s, build, e.cfg.PatchDebounce, e.schedulerOptions()...)
}

// LedgerScheduler debounces the financial page's ledger edits into s.
func (e *Engine) LedgerScheduler(s *session.Session, build scheduler.Builder[session.LedgerPatch]) *scheduler.PatchScheduler[session.LedgerPatch] {
	return scheduler.NewLedger(s, build, e.cfg.PatchDebounce, e.schedulerOptions()...)
}

func (e *Engine) schedulerOptions() []scheduler.Option {
	return []scheduler.Option{
		scheduler.WithLogger(e.logger),
		scheduler.WithMetrics(e.metrics),
	}
}

// Close stops pending mirror syncs and closes the draft database.
func (e *Engine) Close() error {
	e.mirror.Close()
	return e.kv.Close()
}
