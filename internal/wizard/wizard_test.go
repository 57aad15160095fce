package wizard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"dials/internal/declaration/api"
	"dials/internal/declaration/models"
	"dials/internal/declaration/submission"
	"dials/internal/draft/kv"
	"dials/internal/draft/mirror"
	"dials/internal/draft/store"
)

// portal fakes the backend endpoints the wizard reaches.
type portal struct {
	mu           sync.Mutex
	createStatus int
	creates      []map[string]any
	progressPost int
	deletes      []string
	serverCopy   string
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/declarations":
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		p.creates = append(p.creates, payload)
		if p.createStatus != 0 {
			w.WriteHeader(p.createStatus)
			_, _ = w.Write([]byte(`{"success":false,"message":"Declaration for this period already exists"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"saved","declaration_id":17}`))
	case r.Method == http.MethodPost && r.URL.Path == "/progress":
		p.progressPost++
		_, _ = w.Write([]byte(`{"success":true}`))
	case r.Method == http.MethodGet && r.URL.Path == "/progress":
		if p.serverCopy == "" {
			_, _ = w.Write([]byte(`{"success":true,"progress":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"progress":` + p.serverCopy + `}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/progress":
		p.deletes = append(p.deletes, r.URL.Query().Get("userKey"))
		_, _ = w.Write([]byte(`{"success":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type WizardSuite struct {
	suite.Suite
	ctx    context.Context
	portal *portal
	kv     *kv.Memory
	store  *store.Store
	wizard *Wizard
}

func TestWizardSuite(t *testing.T) {
	suite.Run(t, new(WizardSuite))
}

func (s *WizardSuite) SetupTest() {
	s.ctx = context.Background()
	s.portal = &portal{}
	srv := httptest.NewServer(s.portal)
	s.T().Cleanup(srv.Close)

	s.kv = kv.NewMemory()
	s.Require().NoError(s.kv.Set(s.ctx, TokenKey, "tok"))
	tokens := StoredToken{KV: s.kv}
	client := api.New(srv.URL, api.WithTokenSource(tokens))
	s.store = store.New(s.kv)
	mir := mirror.New(s.store, client, mirror.WithDebounce(10*time.Millisecond), mirror.WithSpacing(50*time.Millisecond))
	s.T().Cleanup(mir.Close)
	s.wizard = New(s.store, mir, client, tokens, "12345678")
}

func (s *WizardSuite) validInput() submission.Input {
	return submission.Input{
		UserData: &models.UserData{
			MaritalStatus:   "single",
			DeclarationType: "first",
			DeclarationDate: "2025-11-15",
			PeriodStartDate: "2023-11-01",
			PeriodEndDate:   "2025-10-31",
		},
		Financial: []models.FinancialBundle{{
			Type: models.MemberUser,
			Data: models.FinancialData{BiennialIncome: models.Ledger{{Type: "Salary", Description: "Pay", Value: "1000"}}},
		}},
	}
}

func (s *WizardSuite) posts() int {
	s.portal.mu.Lock()
	defer s.portal.mu.Unlock()
	return s.portal.progressPost
}

func (s *WizardSuite) TestCheckpointSavesAndMirrors() {
	rec := s.wizard.Checkpoint(s.ctx, store.UserStep(models.UserData{FirstName: "Amina"}))

	s.Require().NotNil(rec)
	s.NotNil(s.store.Load(s.ctx, "12345678"))
	s.Eventually(func() bool { return s.posts() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *WizardSuite) TestResumeLocalFirst() {
	s.wizard.Checkpoint(s.ctx, store.SpouseStep(nil, nil))

	res, ok := s.wizard.Resume(s.ctx)

	s.Require().True(ok)
	s.False(res.Remote)
	s.Equal("/spouse-form", res.Path)
}

func (s *WizardSuite) TestResumeFromServerUnlessSuppressed() {
	s.portal.serverCopy = `{"lastStep":"financial","stateSnapshot":{"allFinancialData":[]},"updatedAt":"2025-11-03T09:30:00Z"}`

	res, ok := s.wizard.Resume(s.ctx)
	s.Require().True(ok)
	s.True(res.Remote)
	s.False(res.Partial)
	s.Equal("/financial-form", res.Path)

	s.store.MarkSuppressed(s.ctx, "12345678")
	_, ok = s.wizard.Resume(s.ctx)
	s.False(ok)
}

func (s *WizardSuite) TestResumeFromPrunedServerCopyIsPartial() {
	s.portal.serverCopy = `{"lastStep":"financial","_pruned":true,"stateSnapshot":{"allFinancialData":[{"type":"user","name":"Amina","data":{"biennial_income_count":40}}]},"updatedAt":"2025-11-03T09:30:00Z"}`

	res, ok := s.wizard.Resume(s.ctx)

	s.Require().True(ok)
	s.True(res.Remote)
	s.True(res.Partial)
	s.True(res.Record.Pruned)
	s.Empty(res.Record.StateSnapshot.AllFinancialData[0].Data.BiennialIncome)
}

func (s *WizardSuite) TestSubmitBlockedByValidation() {
	s.wizard.Checkpoint(s.ctx, store.ReviewStep(models.ReviewData{}))
	in := s.validInput()
	in.UserData.DeclarationType = "quarterly"

	_, err := s.wizard.Submit(s.ctx, in)

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal([]string{"Invalid declaration_type. Allowed: First, Biennial, Final."}, verr.Problems)
	s.Empty(s.portal.creates)
	s.NotNil(s.store.Load(s.ctx, "12345678"), "draft survives a blocked submission")
}

func (s *WizardSuite) TestSubmitWithoutData() {
	_, err := s.wizard.Submit(s.ctx, submission.Input{})

	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *WizardSuite) TestSubmitSuccessClearsDrafts() {
	s.wizard.Checkpoint(s.ctx, store.ReviewStep(models.ReviewData{WitnessName: "W"}))

	res, err := s.wizard.Submit(s.ctx, s.validInput())

	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal("17", res.DeclarationID.String())
	s.Require().Len(s.portal.creates, 1)
	s.Equal("First", s.portal.creates[0]["declaration_type"])
	s.Nil(s.store.Load(s.ctx, "12345678"))
	s.True(s.store.IsSuppressed(s.ctx, "12345678"))
	s.Equal([]string{"12345678"}, s.portal.deletes)
}

func (s *WizardSuite) TestSubmitFailureKeepsDraftAndSurfacesMessage() {
	s.portal.createStatus = http.StatusConflict
	s.wizard.Checkpoint(s.ctx, store.ReviewStep(models.ReviewData{WitnessName: "W"}))

	_, err := s.wizard.Submit(s.ctx, s.validInput())

	var serr *SubmitError
	s.Require().ErrorAs(err, &serr)
	s.Equal("Declaration for this period already exists", serr.Message)
	var apiErr *api.APIError
	s.ErrorAs(err, &apiErr)
	s.NotNil(s.store.Load(s.ctx, "12345678"))
	s.False(s.store.IsSuppressed(s.ctx, "12345678"))
	s.Empty(s.portal.deletes)
}

func (s *WizardSuite) TestDiscard() {
	s.wizard.Checkpoint(s.ctx, store.UserStep(models.UserData{FirstName: "A"}))

	s.wizard.Discard(s.ctx)

	s.Nil(s.store.Load(s.ctx, "12345678"))
	s.True(s.store.IsSuppressed(s.ctx, "12345678"))
	s.Equal([]string{"12345678"}, s.portal.deletes)
}

func (s *WizardSuite) TestStoredTokenMissing() {
	token, err := StoredToken{KV: kv.NewMemory()}.Token(s.ctx)
	s.NoError(err)
	s.Empty(token)
}
