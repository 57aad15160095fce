package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dials/internal/progress/models"
	"dials/internal/progress/service"
	"dials/internal/progress/store"
	"dials/pkg/platform/sentinel"
)

// StoreSuite runs against every service.Store implementation.
type StoreSuite struct {
	suite.Suite
	newStore func() service.Store
	store    service.Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() service.Store { return store.NewInMemoryStore() }})
}

var base = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func record(userID, userKey, data string, at time.Time) *models.Progress {
	return &models.Progress{UserID: userID, UserKey: userKey, Data: []byte(data), UpdatedAt: at}
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "1", "k")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Latest(s.ctx, "1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestUpsertReplaces() {
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "k", `{"lastStep":"user"}`, base)))
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "k", `{"lastStep":"spouse"}`, base.Add(time.Minute))))

	got, err := s.store.Get(s.ctx, "1", "k")
	s.Require().NoError(err)
	s.JSONEq(`{"lastStep":"spouse"}`, string(got.Data))
	s.True(got.UpdatedAt.Equal(base.Add(time.Minute)))
	s.Equal("k", got.UserKey)
}

func (s *StoreSuite) TestLatestPicksMostRecent() {
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "old", `{"n":1}`, base)))
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "new", `{"n":2}`, base.Add(time.Hour))))
	s.Require().NoError(s.store.Upsert(s.ctx, record("2", "other", `{"n":3}`, base.Add(2*time.Hour))))

	got, err := s.store.Latest(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal("new", got.UserKey)
}

func (s *StoreSuite) TestUsersAreIsolated() {
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "k", `{"n":1}`, base)))

	_, err := s.store.Get(s.ctx, "2", "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "a", `{"n":1}`, base)))
	s.Require().NoError(s.store.Upsert(s.ctx, record("1", "b", `{"n":2}`, base)))

	s.Require().NoError(s.store.Delete(s.ctx, "1", "a"))
	s.Require().NoError(s.store.Delete(s.ctx, "1", "missing"))

	_, err := s.store.Get(s.ctx, "1", "a")
	s.ErrorIs(err, sentinel.ErrNotFound)
	got, err := s.store.Get(s.ctx, "1", "b")
	s.Require().NoError(err)
	s.Equal("b", got.UserKey)
}

func TestInMemoryStoreCopies(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()
	rec := record("1", "k", `{"n":1}`, base)
	if err := st.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Data[1] = 'X'

	got, err := st.Get(ctx, "1", "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"n":1}` {
		t.Fatalf("stored record aliased caller data: %s", got.Data)
	}
}
