// Package mirror copies local draft checkpoints to the backend so a user can
// resume on another device. Sync is best effort: every failure is logged and
// dropped, and the local store stays the source of truth.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"dials/internal/draft/store"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
)

const (
	DefaultDebounce = 800 * time.Millisecond
	DefaultSpacing  = 2 * time.Second
	// DefaultMaxBytes matches the backend's progress body ceiling.
	DefaultMaxBytes = 250 * 1024
)

// ProgressAPI is the slice of the backend client the mirror uses.
type ProgressAPI interface {
	PostProgress(ctx context.Context, token, userKey string, progress any) error
	GetProgress(ctx context.Context, token, userKey string) (json.RawMessage, error)
	DeleteProgress(ctx context.Context, token, userKey string) error
}

// Mirror schedules debounced, rate-limited POSTs of each user's checkpoint.
type Mirror struct {
	store    *store.Store
	api      ProgressAPI
	logger   *slog.Logger
	metrics  *metrics.Metrics
	debounce time.Duration
	spacing  time.Duration
	maxBytes int
	now      func() time.Time

	mu       sync.Mutex
	closed   bool
	lastPost map[string]time.Time
	latest   map[string]*store.ProgressRecord
	timers   map[string]*time.Timer
}

type Option func(*Mirror)

func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = l
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Mirror) {
		m.metrics = mt
	}
}

// WithDebounce sets the quiet period before a POST.
func WithDebounce(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithSpacing sets the minimum interval between POSTs for one user key.
func WithSpacing(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.spacing = d
		}
	}
}

// WithMaxBytes sets the size above which checkpoints are pruned.
func WithMaxBytes(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.maxBytes = n
		}
	}
}

func New(st *store.Store, api ProgressAPI, opts ...Option) *Mirror {
	m := &Mirror{
		store:    st,
		api:      api,
		logger:   logger.Discard(),
		debounce: DefaultDebounce,
		spacing:  DefaultSpacing,
		maxBytes: DefaultMaxBytes,
		now:      time.Now,
		lastPost: make(map[string]time.Time),
		latest:   make(map[string]*store.ProgressRecord),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule queues a sync of the user's local checkpoint. Calling it means
// the user is producing new progress, so any suppression marker is cleared
// first. Calls inside the spacing window collapse into one retry at the end
// of the window.
func (m *Mirror) Schedule(ctx context.Context, userKey, token string) {
	if userKey == "" || token == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.store.ClearSuppressed(ctx, userKey)

	rec := m.store.Load(ctx, userKey)
	if rec == nil || rec.StateSnapshot.Empty() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	now := m.now()
	if last, ok := m.lastPost[userKey]; ok {
		if elapsed := now.Sub(last); elapsed < m.spacing {
			m.arm(userKey, m.spacing-elapsed, func() { m.Schedule(ctx, userKey, token) })
			return
		}
	}
	m.lastPost[userKey] = now
	m.latest[userKey] = rec
	m.arm(userKey, m.debounce, func() { m.send(ctx, userKey, token) })
}

// arm replaces the user's pending timer. Callers hold m.mu.
func (m *Mirror) arm(userKey string, d time.Duration, fn func()) {
	if t := m.timers[userKey]; t != nil {
		t.Stop()
	}
	m.timers[userKey] = time.AfterFunc(d, fn)
}

func (m *Mirror) send(ctx context.Context, userKey, token string) {
	m.mu.Lock()
	rec := m.latest[userKey]
	closed := m.closed
	m.mu.Unlock()
	if closed || rec == nil {
		return
	}

	payload, size, pruned, err := m.prepare(rec)
	if err != nil {
		m.metrics.ObserveMirrorPost("failed", 0)
		m.logger.DebugContext(ctx, "encode progress for mirror", "user_key", userKey, "error", err)
		return
	}
	if pruned {
		m.logger.DebugContext(ctx, "pruned oversized progress payload", "user_key", userKey, "pruned_size", size)
	}

	if err := m.api.PostProgress(ctx, token, userKey, payload); err != nil {
		m.metrics.ObserveMirrorPost("failed", size)
		m.logger.DebugContext(ctx, "progress mirror failed", "user_key", userKey, "error", err)
		return
	}
	outcome := "sent"
	if pruned {
		outcome = "pruned"
	}
	m.metrics.ObserveMirrorPost(outcome, size)
}

// prepare encodes the checkpoint, substituting the pruned form when the full
// one is over the ceiling.
func (m *Mirror) prepare(rec *store.ProgressRecord) (json.RawMessage, int, bool, error) {
	full, err := json.Marshal(rec)
	if err != nil {
		return nil, 0, false, fmt.Errorf("marshal progress: %w", err)
	}
	if len(full) <= m.maxBytes {
		return full, len(full), false, nil
	}
	small, err := json.Marshal(prune(rec))
	if err != nil {
		return nil, 0, false, fmt.Errorf("marshal pruned progress: %w", err)
	}
	return small, len(small), true, nil
}

// Fetch returns the server's copy of the user's checkpoint. It returns nil
// without a request while the user is suppressed, and nil when the server
// holds nothing.
func (m *Mirror) Fetch(ctx context.Context, userKey, token string) (*store.ProgressRecord, error) {
	if userKey == "" || m.store.IsSuppressed(ctx, userKey) {
		return nil, nil
	}
	raw, err := m.api.GetProgress(ctx, token, userKey)
	if err != nil {
		return nil, fmt.Errorf("fetch server progress: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var rec store.ProgressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode server progress: %w", err)
	}
	if rec.StateSnapshot.Empty() {
		return nil, nil
	}
	return &rec, nil
}

// Delete removes the server's copy and drops any pending sync for the user.
func (m *Mirror) Delete(ctx context.Context, userKey, token string) error {
	m.mu.Lock()
	if t := m.timers[userKey]; t != nil {
		t.Stop()
		delete(m.timers, userKey)
	}
	delete(m.latest, userKey)
	m.mu.Unlock()

	if err := m.api.DeleteProgress(ctx, token, userKey); err != nil {
		return fmt.Errorf("delete server progress: %w", err)
	}
	return nil
}

// Close stops every pending timer. Scheduling after Close is a no-op.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for k, t := range m.timers {
		t.Stop()
		delete(m.timers, k)
	}
}
