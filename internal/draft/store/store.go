// Package store is the local draft store: a versioned, per-user checkpoint
// of wizard progress kept in a single root document of a kv.Store.
//
// No operation returns a storage error. Failed reads degrade to "no resume
// available" and failed writes are logged and counted.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"dials/internal/draft/kv"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
)

const (
	// RootKey is the kv key holding every user's progress.
	RootKey = "declarationProgressStore"
	// Version is stamped on the root on every write.
	Version = 1
	// SuppressPrefix prefixes the per-user suppression markers.
	SuppressPrefix = "progressSuppress:"
)

// rootMu serializes read-merge-write cycles of the root within the process.
var rootMu sync.Mutex

type root struct {
	Version int                        `json:"version"`
	Users   map[string]*ProgressRecord `json:"users"`
}

// Store reads and writes progress records.
type Store struct {
	kv      kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     backend,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the user's record, or nil when there is none or the stored
// root cannot be read.
func (s *Store) Load(ctx context.Context, userKey string) *ProgressRecord {
	if userKey == "" {
		return nil
	}
	return s.loadRoot(ctx).Users[userKey]
}

// Save merges update into the user's record and persists the root. Sections
// present in update replace stored ones; LastStep is overwritten when the
// update carries one. The merged record is returned even when the write
// fails.
func (s *Store) Save(ctx context.Context, update ProgressUpdate, userKey string) *ProgressRecord {
	if userKey == "" || update.empty() {
		return nil
	}
	rootMu.Lock()
	defer rootMu.Unlock()

	r := s.loadRoot(ctx)
	merged := ProgressRecord{}
	if existing := r.Users[userKey]; existing != nil {
		merged = *existing
	}
	if update.step != "" {
		merged.LastStep = update.step
	}
	merged.StateSnapshot = merged.StateSnapshot.merge(update.snapshot)
	merged.UpdatedAt = s.now().UTC()

	r.Version = Version
	r.Users[userKey] = &merged
	s.writeRoot(ctx, r)
	return &merged
}

// Clear removes the user's record.
func (s *Store) Clear(ctx context.Context, userKey string) {
	if userKey == "" {
		return
	}
	rootMu.Lock()
	defer rootMu.Unlock()

	r := s.loadRoot(ctx)
	if _, ok := r.Users[userKey]; !ok {
		return
	}
	delete(r.Users, userKey)
	s.writeRoot(ctx, r)
}

// UserKeys lists the keys holding a record, sorted.
func (s *Store) UserKeys(ctx context.Context) []string {
	r := s.loadRoot(ctx)
	keys := make([]string, 0, len(r.Users))
	for k := range r.Users {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarkSuppressed records that the user's server draft is stale and must not
// be offered for resume.
func (s *Store) MarkSuppressed(ctx context.Context, userKey string) {
	if userKey == "" {
		return
	}
	if err := s.kv.Set(ctx, SuppressPrefix+userKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.swallow(ctx, "mark suppressed", err)
	}
}

// ClearSuppressed removes the marker.
func (s *Store) ClearSuppressed(ctx context.Context, userKey string) {
	if userKey == "" {
		return
	}
	if err := s.kv.Remove(ctx, SuppressPrefix+userKey); err != nil {
		s.swallow(ctx, "clear suppressed", err)
	}
}

// IsSuppressed reports whether the marker is set. Unreadable storage reads
// as not suppressed.
func (s *Store) IsSuppressed(ctx context.Context, userKey string) bool {
	if userKey == "" {
		return false
	}
	v, err := s.kv.Get(ctx, SuppressPrefix+userKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.DebugContext(ctx, "read suppression marker", "user_key", userKey, "error", err)
		}
		return false
	}
	return v != ""
}

func (s *Store) loadRoot(ctx context.Context) *root {
	empty := &root{Version: Version, Users: map[string]*ProgressRecord{}}
	raw, err := s.kv.Get(ctx, RootKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.DebugContext(ctx, "read draft root", "error", err)
		}
		return empty
	}
	if raw == "" {
		return empty
	}
	var r root
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		s.logger.DebugContext(ctx, "corrupt draft root ignored", "error", err)
		return empty
	}
	// A root written before versioning keeps its users.
	if r.Version == 0 {
		r.Version = Version
	}
	if r.Users == nil {
		r.Users = map[string]*ProgressRecord{}
	}
	for k, rec := range r.Users {
		if rec == nil {
			delete(r.Users, k)
		}
	}
	return &r
}

func (s *Store) writeRoot(ctx context.Context, r *root) {
	buf, err := json.Marshal(r)
	if err != nil {
		s.swallow(ctx, "encode draft root", err)
		return
	}
	if err := s.kv.Set(ctx, RootKey, string(buf)); err != nil {
		s.swallow(ctx, "write draft root", err)
	}
}

func (s *Store) swallow(ctx context.Context, op string, err error) {
	s.metrics.IncrementDraftWriteErrors()
	s.logger.DebugContext(ctx, "draft store write failed", "op", op, "error", err)
}
