package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dials/internal/declaration/models"
	"dials/internal/declaration/session"
	"dials/internal/declaration/submission"
	"dials/internal/draft/store"
	"dials/internal/platform/config"
	"dials/internal/platform/logger"
	"dials/internal/wizard"
)

// backend records method, path and body of every request.
type backend struct {
	mu    sync.Mutex
	calls []string
	posts []string
	auth  []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	if r.Method == http.MethodPost && r.URL.Path == "/api/progress" {
		b.posts = append(b.posts, string(body))
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && r.URL.Path == "/api/declarations/42" {
		_, _ = w.Write([]byte(`{"success":true,"declaration":{"id":42,"status":"pending","first_name":"Amina","marital_status":"single"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (b *backend) called(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (b *backend) progressPosts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.posts...)
}

func openEngine(t *testing.T, mutate func(*config.Client)) (*Engine, *backend, config.Client) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	cfg := config.Client{
		APIBaseURL:     srv.URL + "/api",
		DraftDBPath:    filepath.Join(t.TempDir(), "drafts", "dials.db"),
		RequestTimeout: 3 * time.Second,
		MirrorDebounce: 10 * time.Millisecond,
		MirrorSpacing:  50 * time.Millisecond,
		MirrorMaxBytes: 250 * 1024,
		PatchMaxBytes:  40 * 1024,
		PatchDebounce:  20 * time.Millisecond,
		Log:            config.Log{Level: "error", Format: "text"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := Open(cfg, WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, e.SetToken(context.Background(), "tok"))
	return e, b, cfg
}

func TestOpenCreatesDraftDatabaseAndTimeout(t *testing.T) {
	e, _, cfg := openEngine(t, nil)

	_, err := os.Stat(cfg.DraftDBPath)
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, e.HTTPClient().Timeout)

	token, err := e.Tokens().Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestWizardMirrorsThroughConfiguredBackend(t *testing.T) {
	e, b, _ := openEngine(t, func(c *config.Client) { c.MirrorMaxBytes = 512 })
	ctx := context.Background()
	w := e.Wizard("12345678")

	w.Checkpoint(ctx, store.ReviewStep(models.ReviewData{WitnessName: strings.Repeat("W", 600)}))

	require.Eventually(t, func() bool { return len(b.progressPosts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, b.progressPosts()[0], `"_pruned":true`, "the configured ceiling prunes the upload")
	b.mu.Lock()
	assert.Equal(t, "Bearer tok", b.auth[0])
	b.mu.Unlock()
	assert.NotNil(t, e.Store().Load(ctx, "12345678"))
}

func TestWizardUsesConfiguredBiennialWindow(t *testing.T) {
	e, b, _ := openEngine(t, func(c *config.Client) {
		c.BiennialWindow = config.Window{
			Start: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		}
	})

	_, err := e.Wizard("12345678").Submit(context.Background(), submission.Input{
		UserData: &models.UserData{
			MaritalStatus:   "single",
			DeclarationType: "biennial",
			DeclarationDate: "2025-11-15",
			PeriodStartDate: "2023-11-01",
			PeriodEndDate:   "2025-10-31",
		},
		Financial: []models.FinancialBundle{{Type: models.MemberUser}},
	})

	var verr *wizard.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "Biennial declaration only allowed between 2026-03-01 and 2026-03-31.")
	assert.False(t, b.called("POST /api/declarations"))
}

func TestSessionUsesConfiguredPutThreshold(t *testing.T) {
	ctx := context.Background()
	married := "married"

	e, b, _ := openEngine(t, nil)
	s := e.Session("42")
	require.NoError(t, s.Load(ctx))
	res, err := s.SaveChanges(ctx, session.Partial{MaritalStatus: &married})
	require.NoError(t, err)
	assert.Equal(t, session.StrategyPatch, res.Strategy)
	assert.True(t, b.called("PATCH /api/declarations/42"))

	e, b, _ = openEngine(t, func(c *config.Client) { c.PatchMaxBytes = 10 })
	s = e.Session("42")
	require.NoError(t, s.Load(ctx))
	res, err = s.SaveChanges(ctx, session.Partial{MaritalStatus: &married})
	require.NoError(t, err)
	assert.Equal(t, session.StrategyPut, res.Strategy)
	assert.True(t, b.called("PUT /api/declarations/42"))
}

func TestSchedulersCommitAfterConfiguredDebounce(t *testing.T) {
	ctx := context.Background()
	e, b, _ := openEngine(t, nil)
	s := e.Session("42")
	require.NoError(t, s.Load(ctx))

	married := "married"
	fields := e.FieldScheduler(s, func() *session.Partial {
		return &session.Partial{MaritalStatus: &married}
	})
	t.Cleanup(fields.Close)
	fields.Update(married)

	info := "Shares in a family business"
	ledgers := e.LedgerScheduler(s, func() *session.LedgerPatch {
		return &session.LedgerPatch{OtherFinancialInfo: &info}
	})
	t.Cleanup(ledgers.Close)
	ledgers.Update(info)

	require.Eventually(t, func() bool {
		m := s.Model()
		return m.Profile.MaritalStatus == "married" && m.UserFinancial() != nil &&
			m.UserFinancial().OtherInfo == info
	}, time.Second, 5*time.Millisecond)
	assert.True(t, b.called("PATCH /api/declarations/42"))
}
