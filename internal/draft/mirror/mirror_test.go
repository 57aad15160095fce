package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dials/internal/declaration/api"
	"dials/internal/declaration/models"
	"dials/internal/draft/kv"
	"dials/internal/draft/store"
	"dials/internal/platform/metrics"
)

// progressBackend records the bodies POSTed to /progress.
type progressBackend struct {
	mu     sync.Mutex
	status int
	posts  [][]byte
	times  []time.Time
	auth   []string
	stored []byte
	gets   int
}

func (b *progressBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		b.posts = append(b.posts, body)
		b.times = append(b.times, time.Now())
		b.auth = append(b.auth, r.Header.Get("Authorization"))
		if b.status != 0 {
			w.WriteHeader(b.status)
			_, _ = w.Write([]byte(`{"success":false,"message":"boom"}`))
			return
		}
	case http.MethodGet:
		b.gets++
		w.Header().Set("Content-Type", "application/json")
		if b.stored == nil {
			_, _ = w.Write([]byte(`{"success":true,"progress":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"progress":`))
		_, _ = w.Write(b.stored)
		_, _ = w.Write([]byte(`}`))
		return
	}
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (b *progressBackend) postCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.posts)
}

func (b *progressBackend) lastPost() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posts[len(b.posts)-1]
}

type fixture struct {
	ctx     context.Context
	store   *store.Store
	backend *progressBackend
	mirror  *Mirror
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	backend := &progressBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	m := metrics.New(prometheus.NewRegistry())
	st := store.New(kv.NewMemory())
	client := api.New(srv.URL)
	base := []Option{WithDebounce(20 * time.Millisecond), WithSpacing(150 * time.Millisecond), WithMetrics(m)}
	mir := New(st, client, append(base, opts...)...)
	t.Cleanup(mir.Close)

	return &fixture{ctx: context.Background(), store: st, backend: backend, mirror: mir, metrics: m}
}

func TestScheduleClearsSuppression(t *testing.T) {
	f := newFixture(t)
	f.store.MarkSuppressed(f.ctx, "k")
	require.True(t, f.store.IsSuppressed(f.ctx, "k"))

	f.mirror.Schedule(f.ctx, "k", "tok")

	assert.False(t, f.store.IsSuppressed(f.ctx, "k"))
}

func TestScheduleSkipsMissingAndEmptyProgress(t *testing.T) {
	f := newFixture(t)

	f.mirror.Schedule(f.ctx, "nobody", "tok")
	f.mirror.Schedule(f.ctx, "k", "")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.backend.postCount())
}

func TestScheduleSendsProgressWithBearerToken(t *testing.T) {
	f := newFixture(t)
	f.store.Save(f.ctx, store.UserStep(models.UserData{FirstName: "Amina", NationalID: "k"}), "k")

	f.mirror.Schedule(f.ctx, "k", "tok")

	require.Eventually(t, func() bool { return f.backend.postCount() == 1 }, time.Second, 5*time.Millisecond)

	var body struct {
		UserKey  string               `json:"userKey"`
		Progress store.ProgressRecord `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(f.backend.lastPost(), &body))
	assert.Equal(t, "k", body.UserKey)
	assert.Equal(t, store.StepUser, body.Progress.LastStep)
	require.NotNil(t, body.Progress.StateSnapshot.UserData)
	assert.Equal(t, "Amina", body.Progress.StateSnapshot.UserData.FirstName)
	assert.Equal(t, "Bearer tok", f.backend.auth[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MirrorPosts.WithLabelValues("sent")))
}

func TestRapidSchedulesCoalesceIntoOnePost(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.store.Save(f.ctx, store.UserStep(models.UserData{FirstName: strings.Repeat("a", i+1)}), "k")
		f.mirror.Schedule(f.ctx, "k", "tok")
	}

	require.Eventually(t, func() bool { return f.backend.postCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 1, f.backend.postCount())

	var body struct {
		Progress store.ProgressRecord `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(f.backend.lastPost(), &body))
	assert.Equal(t, "aaaaa", body.Progress.StateSnapshot.UserData.FirstName, "the last checkpoint wins")
}

func TestPostsForOneUserAreSpaced(t *testing.T) {
	const spacing = 300 * time.Millisecond
	f := newFixture(t, WithSpacing(spacing))

	start := time.Now()
	f.store.Save(f.ctx, store.UserStep(models.UserData{FirstName: "first"}), "k")
	f.mirror.Schedule(f.ctx, "k", "tok")
	require.Eventually(t, func() bool { return f.backend.postCount() == 1 }, time.Second, 5*time.Millisecond)

	f.store.Save(f.ctx, store.UserStep(models.UserData{FirstName: "second"}), "k")
	f.mirror.Schedule(f.ctx, "k", "tok")
	require.Less(t, time.Since(start), spacing, "second schedule lands inside the window")

	require.Eventually(t, func() bool { return f.backend.postCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(spacing + 100*time.Millisecond)
	require.Equal(t, 2, f.backend.postCount())

	f.backend.mu.Lock()
	second := f.backend.times[1]
	f.backend.mu.Unlock()
	assert.GreaterOrEqual(t, second.Sub(start), spacing)

	var body struct {
		Progress store.ProgressRecord `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(f.backend.lastPost(), &body))
	assert.Equal(t, "second", body.Progress.StateSnapshot.UserData.FirstName)
}

func TestOversizedProgressIsPruned(t *testing.T) {
	f := newFixture(t)

	row := models.LedgerRow{Type: "Salary", Description: strings.Repeat("d", 400), Value: "1000"}
	ledger := make(models.Ledger, 50)
	for i := range ledger {
		ledger[i] = row
	}
	bundles := make([]models.FinancialBundle, 5)
	for i := range bundles {
		bundles[i] = models.FinancialBundle{
			Type: models.MemberSpouse,
			Name: "Member",
			Data: models.FinancialData{
				DeclarationDate:    "2025-11-15",
				PeriodStartDate:    "2023-11-01",
				PeriodEndDate:      "2025-10-31",
				BiennialIncome:     ledger,
				Assets:             ledger,
				Liabilities:        ledger,
				OtherFinancialInfo: strings.Repeat("x", 500),
			},
		}
	}
	rec := f.store.Save(f.ctx, store.FinancialStep(bundles), "k")
	full, err := json.Marshal(rec)
	require.NoError(t, err)
	require.Greater(t, len(full), DefaultMaxBytes)

	f.mirror.Schedule(f.ctx, "k", "tok")
	require.Eventually(t, func() bool { return f.backend.postCount() == 1 }, time.Second, 5*time.Millisecond)

	raw := f.backend.lastPost()
	assert.Less(t, len(raw), DefaultMaxBytes)

	var body struct {
		Progress struct {
			Pruned        bool `json:"_pruned"`
			StateSnapshot struct {
				AllFinancialData []struct {
					Type string         `json:"type"`
					Name string         `json:"name"`
					Data map[string]any `json:"data"`
				} `json:"allFinancialData"`
			} `json:"stateSnapshot"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.Progress.Pruned)
	require.Len(t, body.Progress.StateSnapshot.AllFinancialData, 5)
	for _, member := range body.Progress.StateSnapshot.AllFinancialData {
		assert.Equal(t, "spouse", member.Type)
		assert.Equal(t, "2025-11-15", member.Data["declaration_date"])
		assert.EqualValues(t, 50, member.Data["biennial_income_count"])
		assert.EqualValues(t, 50, member.Data["assets_count"])
		assert.EqualValues(t, 50, member.Data["liabilities_count"])
		assert.Len(t, member.Data["other_financial_info_preview"], 120)
		assert.NotContains(t, member.Data, "biennial_income")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MirrorPosts.WithLabelValues("pruned")))
}

func TestFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.backend.status = http.StatusInternalServerError
	f.store.Save(f.ctx, store.ReviewStep(models.ReviewData{WitnessName: "W"}), "k")

	f.mirror.Schedule(f.ctx, "k", "tok")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.MirrorPosts.WithLabelValues("failed")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, f.store.Load(f.ctx, "k"), "local progress is untouched by a failed sync")
}

func TestFetchHonoursSuppression(t *testing.T) {
	f := newFixture(t)
	f.backend.stored = []byte(`{"lastStep":"review","stateSnapshot":{"review":{"witness_name":"W"}},"updatedAt":"2025-11-03T09:30:00Z"}`)

	rec, err := f.mirror.Fetch(f.ctx, "k", "tok")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.StepReview, rec.LastStep)
	assert.Equal(t, "W", rec.StateSnapshot.Review.WitnessName)

	f.store.MarkSuppressed(f.ctx, "k")
	rec, err = f.mirror.Fetch(f.ctx, "k", "tok")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, f.backend.gets, "a suppressed fetch makes no request")
}

func TestFetchWithNoServerCopy(t *testing.T) {
	f := newFixture(t)

	rec, err := f.mirror.Fetch(f.ctx, "k", "tok")

	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestScheduleAfterCloseIsNoop(t *testing.T) {
	f := newFixture(t)
	f.store.Save(f.ctx, store.UserStep(models.UserData{FirstName: "A"}), "k")
	f.mirror.Close()

	f.mirror.Schedule(f.ctx, "k", "tok")

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, f.backend.postCount())
}

func TestFetchKeepsPrunedMarker(t *testing.T) {
	f := newFixture(t, WithMaxBytes(2048))
	income := make(models.Ledger, 40)
	for i := range income {
		income[i] = models.LedgerRow{Type: "Salary", Description: "Monthly pay", Value: "1000"}
	}
	f.store.Save(f.ctx, store.FinancialStep([]models.FinancialBundle{{
		Type: models.MemberUser,
		Name: "Amina",
		Data: models.FinancialData{DeclarationDate: "2025-11-15", BiennialIncome: income},
	}}), "k")

	f.mirror.Schedule(f.ctx, "k", "tok")
	require.Eventually(t, func() bool { return f.backend.postCount() == 1 }, time.Second, 5*time.Millisecond)

	var body struct {
		Progress json.RawMessage `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(f.backend.lastPost(), &body))
	f.backend.mu.Lock()
	f.backend.stored = body.Progress
	f.backend.mu.Unlock()

	rec, err := f.mirror.Fetch(f.ctx, "k", "tok")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Pruned)
	require.Len(t, rec.StateSnapshot.AllFinancialData, 1)
	bundle := rec.StateSnapshot.AllFinancialData[0]
	assert.Equal(t, "Amina", bundle.Name)
	assert.Equal(t, "2025-11-15", bundle.Data.DeclarationDate)
	assert.Empty(t, bundle.Data.BiennialIncome)
}
