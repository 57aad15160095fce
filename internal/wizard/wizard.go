// Package wizard is the entry point the declaration pages call: checkpoint
// progress, resume it, discard it, and submit the finished declaration.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dials/internal/declaration/api"
	"dials/internal/declaration/submission"
	"dials/internal/draft/kv"
	"dials/internal/draft/mirror"
	"dials/internal/draft/store"
	"dials/internal/platform/logger"
)

// TokenKey is the kv key the portal keeps its bearer token under.
const TokenKey = "token"

const submitFallback = "Submission failed. Please try again."

// Creator submits a new declaration.
type Creator interface {
	CreateDeclaration(ctx context.Context, payload any) (api.CreateResult, error)
}

// ValidationError lists the problems that blocked a submission before any
// network call.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "declaration is not ready to submit: " + strings.Join(e.Problems, " ")
}

// SubmitError is a submission the backend refused or never received.
// Message is the server's own text when it sent one.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Resumption is a checkpoint found for the user and where to pick it up.
// Partial is set for a pruned server copy: its financial ledgers are empty
// and must not be checkpointed back over the user's real rows.
type Resumption struct {
	Record  *store.ProgressRecord
	Path    string
	Remote  bool
	Partial bool
}

// Wizard binds one user's drafts to the backend.
type Wizard struct {
	store     *store.Store
	mirror    *mirror.Mirror
	creator   Creator
	tokens    api.TokenSource
	userKey   string
	logger    *slog.Logger
	validate  submission.ValidateOptions
	buildOpts []submission.BuildOption
}

type Option func(*Wizard)

func WithLogger(l *slog.Logger) Option {
	return func(w *Wizard) {
		w.logger = l
	}
}

// WithBiennialWindow sets the administrator-configured Biennial window.
func WithBiennialWindow(win submission.Window) Option {
	return func(w *Wizard) {
		w.validate.BiennialWindow = win
	}
}

// WithBuildOptions passes options through to submission.Build.
func WithBuildOptions(opts ...submission.BuildOption) Option {
	return func(w *Wizard) {
		w.buildOpts = append(w.buildOpts, opts...)
	}
}

// New creates a wizard for the user identified by userKey (see
// store.DeriveUserKey).
func New(st *store.Store, mir *mirror.Mirror, creator Creator, tokens api.TokenSource, userKey string, opts ...Option) *Wizard {
	w := &Wizard{
		store:   st,
		mirror:  mir,
		creator: creator,
		tokens:  tokens,
		userKey: userKey,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// UserKey is the key the wizard's drafts live under.
func (w *Wizard) UserKey() string {
	return w.userKey
}

// Checkpoint saves the step locally and schedules the server copy.
func (w *Wizard) Checkpoint(ctx context.Context, update store.ProgressUpdate) *store.ProgressRecord {
	rec := w.store.Save(ctx, update, w.userKey)
	if rec != nil {
		w.mirror.Schedule(ctx, w.userKey, w.token(ctx))
	}
	return rec
}

// Resume finds the user's checkpoint: the local one first, then the server
// copy unless it was suppressed by a submission. ok is false when there is
// nothing to resume.
func (w *Wizard) Resume(ctx context.Context) (Resumption, bool) {
	if rec := w.store.Load(ctx, w.userKey); rec != nil {
		return Resumption{Record: rec, Path: store.StepToPath(rec.LastStep)}, true
	}
	token := w.token(ctx)
	if token == "" {
		return Resumption{}, false
	}
	rec, err := w.mirror.Fetch(ctx, w.userKey, token)
	if err != nil {
		w.logger.DebugContext(ctx, "server progress unavailable", "user_key", w.userKey, "error", err)
		return Resumption{}, false
	}
	if rec == nil {
		return Resumption{}, false
	}
	if rec.Pruned {
		w.logger.InfoContext(ctx, "resuming from pruned server progress", "user_key", w.userKey)
	}
	return Resumption{
		Record:  rec,
		Path:    store.StepToPath(rec.LastStep),
		Remote:  true,
		Partial: rec.Pruned,
	}, true
}

// Discard drops the user's drafts everywhere.
func (w *Wizard) Discard(ctx context.Context) {
	w.store.Clear(ctx, w.userKey)
	w.store.MarkSuppressed(ctx, w.userKey)
	if token := w.token(ctx); token != "" {
		if err := w.mirror.Delete(ctx, w.userKey, token); err != nil {
			w.logger.DebugContext(ctx, "delete server progress", "user_key", w.userKey, "error", err)
		}
	}
}

// Submit builds, validates and posts the declaration. Problems found locally
// come back as *ValidationError without a network call; backend failures as
// *SubmitError. Drafts are only cleared once the backend confirms.
func (w *Wizard) Submit(ctx context.Context, in submission.Input) (api.CreateResult, error) {
	payload, err := submission.Build(in, w.buildOpts...)
	if err != nil {
		return api.CreateResult{}, &ValidationError{Problems: []string{"No declaration data to submit."}}
	}
	if problems := submission.Validate(payload, w.validate); len(problems) > 0 {
		return api.CreateResult{}, &ValidationError{Problems: problems}
	}

	res, err := w.creator.CreateDeclaration(ctx, payload)
	if err != nil {
		w.logger.WarnContext(ctx, "declaration submission failed", "user_key", w.userKey, "error", err)
		return res, &SubmitError{Message: api.Message(err, submitFallback), Err: err}
	}

	w.store.Clear(ctx, w.userKey)
	w.store.MarkSuppressed(ctx, w.userKey)
	if token := w.token(ctx); token != "" {
		if err := w.mirror.Delete(ctx, w.userKey, token); err != nil {
			w.logger.DebugContext(ctx, "delete server progress after submit", "user_key", w.userKey, "error", err)
		}
	}
	w.logger.InfoContext(ctx, "declaration submitted",
		"user_key", w.userKey,
		"declaration_id", res.DeclarationID.String(),
	)
	return res, nil
}

func (w *Wizard) token(ctx context.Context) string {
	if w.tokens == nil {
		return ""
	}
	t, err := w.tokens.Token(ctx)
	if err != nil {
		w.logger.DebugContext(ctx, "bearer token unavailable", "error", err)
		return ""
	}
	return t
}

// StoredToken reads the bearer token from the portal's kv store.
type StoredToken struct {
	KV kv.Store
}

func (s StoredToken) Token(ctx context.Context) (string, error) {
	t, err := s.KV.Get(ctx, TokenKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return t, nil
}
