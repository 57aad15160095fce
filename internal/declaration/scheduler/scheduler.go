// Package scheduler turns rapid field edits into one delayed save. Each
// editor owns a PatchScheduler and reports its inputs on every change; the
// scheduler commits the last computed payload once the inputs stop moving.
// Field partials and ledger patches share the same contract.
package scheduler

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"dials/internal/declaration/session"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
)

// Payload is anything a scheduler can commit.
type Payload interface {
	Empty() bool
}

// Saver is the session operation field schedulers commit through.
type Saver interface {
	SaveChanges(ctx context.Context, p session.Partial) (session.Result, error)
}

// LedgerSaver is the session operation ledger schedulers commit through.
type LedgerSaver interface {
	PatchLedgers(ctx context.Context, p session.LedgerPatch) error
}

// Builder describes what would be saved if the commit fired now. Nil means
// nothing.
type Builder[T Payload] func() *T

// CommitFunc sends one payload.
type CommitFunc[T Payload] func(ctx context.Context, p T) error

type settings struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	ctx     context.Context
}

type Option func(*settings)

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithContext sets the context commits run under.
func WithContext(ctx context.Context) Option {
	return func(s *settings) {
		s.ctx = ctx
	}
}

type PatchScheduler[T Payload] struct {
	settings
	commitFn CommitFunc[T]
	build    Builder[T]
	debounce *Debouncer

	mu       sync.Mutex
	deps     []any
	observed bool
}

// New schedules field partials through saver.SaveChanges.
func New(saver Saver, build Builder[session.Partial], delay time.Duration, opts ...Option) *PatchScheduler[session.Partial] {
	var ps *PatchScheduler[session.Partial]
	ps = NewWithCommit[session.Partial](func(ctx context.Context, p session.Partial) error {
		res, err := saver.SaveChanges(ctx, p)
		if err == nil && res.Strategy != session.StrategyNone {
			ps.logger.DebugContext(ctx, "debounced save committed", "mode", string(res.Strategy))
		}
		return err
	}, build, delay, opts...)
	return ps
}

// NewLedger schedules the user's ledger edits through saver.PatchLedgers.
func NewLedger(saver LedgerSaver, build Builder[session.LedgerPatch], delay time.Duration, opts ...Option) *PatchScheduler[session.LedgerPatch] {
	return NewWithCommit[session.LedgerPatch](saver.PatchLedgers, build, delay, opts...)
}

// NewWithCommit schedules payloads of any kind through commit.
func NewWithCommit[T Payload](commit CommitFunc[T], build Builder[T], delay time.Duration, opts ...Option) *PatchScheduler[T] {
	p := &PatchScheduler[T]{
		settings: settings{
			logger: logger.Discard(),
			ctx:    context.Background(),
		},
		commitFn: commit,
		build:    build,
		debounce: NewDebouncer(delay),
	}
	for _, opt := range opts {
		opt(&p.settings)
	}
	return p
}

// Update reports the current inputs. When they differ from the previous
// call the builder is rerun: an empty result cancels any pending commit,
// anything else restarts the delay with the new payload.
func (p *PatchScheduler[T]) Update(deps ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observed && reflect.DeepEqual(p.deps, deps) {
		return
	}
	p.observed = true
	p.deps = deps

	payload := p.build()
	if payload == nil || (*payload).Empty() {
		p.debounce.Cancel()
		return
	}
	next := *payload
	p.debounce.Trigger(func() { p.commit(next) })
}

// Flush commits the pending payload immediately.
func (p *PatchScheduler[T]) Flush() {
	p.debounce.Flush()
}

// Close drops the pending payload; later updates are ignored.
func (p *PatchScheduler[T]) Close() {
	p.debounce.Stop()
}

func (p *PatchScheduler[T]) commit(payload T) {
	p.metrics.IncrementDebouncedCommits()
	if err := p.commitFn(p.ctx, payload); err != nil {
		p.logger.WarnContext(p.ctx, "debounced save failed", "error", err)
	}
}
