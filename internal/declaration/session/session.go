// Package session holds the declaration being edited: it loads the backend
// record once, keeps the last server-confirmed copy as the baseline and
// turns partial updates into PATCH or PUT calls against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"

	"dials/internal/declaration/api"
	"dials/internal/declaration/models"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
)

var (
	// ErrNoDeclaration is returned by saves on a session with no loaded
	// backend record.
	ErrNoDeclaration = errors.New("no loaded declaration")
	// ErrNotFound is the load error for a declaration the backend does not
	// have.
	ErrNotFound = errors.New("declaration not found")
	// ErrEditLocked is returned once the single post-approval edit is used.
	ErrEditLocked = errors.New("declaration is locked for editing")
)

// DeclarationAPI is the backend surface the session needs.
type DeclarationAPI interface {
	GetDeclaration(ctx context.Context, id string) (*models.Record, error)
	PatchDeclaration(ctx context.Context, id string, body any) (json.RawMessage, error)
	PutDeclaration(ctx context.Context, id string, body any) (json.RawMessage, error)
}

// SavingState is the save feedback shown by pages. Last is zero until the
// first successful save.
type SavingState struct {
	Busy bool
	Last time.Time
	Mode Strategy
}

// Result describes what a save did.
type Result struct {
	Strategy Strategy
	Diff     Diff
}

// Session is one editing context. Create it with New, call Load, and Close
// it when the editor goes away.
type Session struct {
	api          DeclarationAPI
	id           string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	putThreshold int

	// slot admits one save at a time.
	slot     *semaphore.Weighted
	loadOnce sync.Once

	mu       sync.RWMutex
	model    *models.Declaration
	baseline *models.Declaration
	loading  bool
	loadErr  error
	closed   bool
	saving   SavingState
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithPutThreshold overrides the PATCH body size that escalates to PUT.
func WithPutThreshold(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.putThreshold = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session for declarationID. An empty id is a new declaration
// with no baseline.
func New(client DeclarationAPI, declarationID string, opts ...Option) *Session {
	s := &Session{
		api:          client,
		id:           declarationID,
		logger:       logger.Discard(),
		now:          time.Now,
		putThreshold: PutThreshold,
		slot:         semaphore.NewWeighted(1),
		loading:      declarationID != "",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches and normalizes the declaration. Only the first call goes to
// the network; later calls return the first outcome. A result arriving
// after Close is dropped.
func (s *Session) Load(ctx context.Context) error {
	s.loadOnce.Do(func() {
		if s.id == "" {
			return
		}
		rec, err := s.api.GetDeclaration(ctx, s.id)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.loading = false
		if s.closed {
			return
		}
		if err != nil {
			if api.IsNotFound(err) {
				err = fmt.Errorf("%w: %s", ErrNotFound, s.id)
			} else {
				err = fmt.Errorf("load declaration %s: %w", s.id, err)
			}
			s.loadErr = err
			s.logger.WarnContext(ctx, "declaration load failed", "declaration_id", s.id, "error", err)
			return
		}
		decl := models.Normalize(rec)
		if decl.ID == "" {
			decl.ID = s.id
		}
		s.baseline = decl
		s.model = decl.Clone()
	})
	return s.Err()
}

// Close marks the session inactive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Model returns a copy of the current declaration, or nil before a
// successful load.
func (s *Session) Model() *models.Declaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model.Clone()
}

// Loading reports whether the initial fetch is still outstanding.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the terminal load error, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *Session) SavingState() SavingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saving
}

// SaveChanges diffs p against the baseline and sends the result. The
// baseline only moves after the backend accepts the change. Concurrent
// callers are served one at a time, each against the baseline the previous
// one left.
func (s *Session) SaveChanges(ctx context.Context, p Partial) (Result, error) {
	if err := s.slot.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer s.slot.Release(1)

	base, err := s.editableBaseline()
	if err != nil {
		return Result{}, err
	}

	diff := ComputeDiff(base, p)
	strategy := chooseStrategy(diff, s.putThreshold)
	res := Result{Strategy: strategy, Diff: diff}
	if strategy == StrategyNone {
		return res, nil
	}

	next := base.Clone()
	s.setBusy()
	switch strategy {
	case StrategyPatch:
		apply(next, Partial(diff))
		_, err = s.api.PatchDeclaration(ctx, base.ID, diff.Body())
	case StrategyPut:
		apply(next, p)
		_, err = s.api.PutDeclaration(ctx, base.ID, fullPayloadOf(next))
	}
	if err != nil {
		s.fail()
		return res, fmt.Errorf("%s declaration %s: %w", strategy, base.ID, err)
	}
	s.promote(next, strategy)
	return res, nil
}

// PatchLedgers sends the user's own ledgers as a root-level PATCH and
// records them in the baseline on success.
func (s *Session) PatchLedgers(ctx context.Context, p LedgerPatch) error {
	if p.Empty() {
		return nil
	}
	if err := s.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.slot.Release(1)

	base, err := s.editableBaseline()
	if err != nil {
		return err
	}

	s.setBusy()
	if _, err := s.api.PatchDeclaration(ctx, base.ID, p); err != nil {
		s.fail()
		return fmt.Errorf("patch ledgers of %s: %w", base.ID, err)
	}
	next := base.Clone()
	p.applyTo(next)
	s.promote(next, StrategyPatch)
	return nil
}

func (s *Session) editableBaseline() (*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.baseline == nil || s.baseline.ID == "" {
		return nil, ErrNoDeclaration
	}
	if s.baseline.EditLocked() {
		return nil, ErrEditLocked
	}
	return s.baseline, nil
}

func (s *Session) setBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving.Busy = true
}

func (s *Session) fail() {
	s.metrics.IncrementSaveFailures()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving.Busy = false
}

func (s *Session) promote(next *models.Declaration, mode Strategy) {
	s.metrics.IncrementSaves(string(mode))
	next.CountEdit()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = next
	s.model = next.Clone()
	s.saving = SavingState{Busy: false, Last: s.now(), Mode: mode}
}
