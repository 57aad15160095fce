package store

import (
	"time"

	"dials/internal/declaration/models"
)

// Step is the wizard step a checkpoint was taken on.
type Step string

const (
	StepUser      Step = "user"
	StepSpouse    Step = "spouse"
	StepFinancial Step = "financial"
	StepReview    Step = "review"
)

// Valid reports whether s is one of the four wizard steps.
func (s Step) Valid() bool {
	switch s {
	case StepUser, StepSpouse, StepFinancial, StepReview:
		return true
	}
	return false
}

// StepToPath maps a stored step to the wizard route that resumes it.
// Unknown steps resume at the start.
func StepToPath(step Step) string {
	switch step {
	case StepSpouse:
		return "/spouse-form"
	case StepFinancial:
		return "/financial-form"
	case StepReview:
		return "/review"
	default:
		return "/user-form"
	}
}

// ProgressRecord is one user's checkpoint. Pruned marks a server copy whose
// ledgers were cut down to row counts before upload; only its step, identity
// and review sections can be restored.
type ProgressRecord struct {
	LastStep      Step          `json:"lastStep,omitempty"`
	StateSnapshot StateSnapshot `json:"stateSnapshot"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Pruned        bool          `json:"_pruned,omitempty"`
}

// StateSnapshot holds whatever sections the wizard steps produced. A nil
// section was never checkpointed; an empty non-nil list was checkpointed
// as empty.
type StateSnapshot struct {
	UserData         *models.UserData         `json:"userData,omitempty"`
	Spouses          []models.Person          `json:"spouses"`
	Children         []models.Person          `json:"children"`
	AllFinancialData []models.FinancialBundle `json:"allFinancialData"`
	Review           *models.ReviewData       `json:"review,omitempty"`
}

// Empty reports whether no section is present.
func (s StateSnapshot) Empty() bool {
	return s.UserData == nil && s.Spouses == nil && s.Children == nil &&
		s.AllFinancialData == nil && s.Review == nil
}

// merge overlays the sections present in upd.
func (s StateSnapshot) merge(upd StateSnapshot) StateSnapshot {
	if upd.UserData != nil {
		s.UserData = upd.UserData
	}
	if upd.Spouses != nil {
		s.Spouses = upd.Spouses
	}
	if upd.Children != nil {
		s.Children = upd.Children
	}
	if upd.AllFinancialData != nil {
		s.AllFinancialData = upd.AllFinancialData
	}
	if upd.Review != nil {
		s.Review = upd.Review
	}
	return s
}

// ProgressUpdate is a checkpoint produced by one wizard step. Build it with
// UserStep, SpouseStep, FinancialStep or ReviewStep.
type ProgressUpdate struct {
	step     Step
	snapshot StateSnapshot
}

// Step returns the step the update was produced on.
func (u ProgressUpdate) Step() Step {
	return u.step
}

func (u ProgressUpdate) empty() bool {
	return u.step == "" && u.snapshot.Empty()
}

// UserStep checkpoints the personal details form.
func UserStep(data models.UserData) ProgressUpdate {
	return ProgressUpdate{step: StepUser, snapshot: StateSnapshot{UserData: &data}}
}

// SpouseStep checkpoints the family members form. Nil lists are stored as
// empty ones.
func SpouseStep(spouses, children []models.Person) ProgressUpdate {
	return ProgressUpdate{step: StepSpouse, snapshot: StateSnapshot{
		Spouses:  nonNil(spouses),
		Children: nonNil(children),
	}}
}

// FinancialStep checkpoints the flat list of per-member ledger bundles.
func FinancialStep(bundles []models.FinancialBundle) ProgressUpdate {
	if bundles == nil {
		bundles = []models.FinancialBundle{}
	}
	return ProgressUpdate{step: StepFinancial, snapshot: StateSnapshot{AllFinancialData: bundles}}
}

// ReviewStep checkpoints the witness block.
func ReviewStep(review models.ReviewData) ProgressUpdate {
	return ProgressUpdate{step: StepReview, snapshot: StateSnapshot{Review: &review}}
}

func nonNil(in []models.Person) []models.Person {
	if in == nil {
		return []models.Person{}
	}
	return in
}

// Identity carries the fields a user key is derived from.
type Identity struct {
	NationalID    string
	PayrollNumber string
	Email         string
}

// IdentityOf extracts the key fields from the user form.
func IdentityOf(u *models.UserData) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{NationalID: u.NationalID, PayrollNumber: u.PayrollNumber, Email: u.Email}
}

// AnonymousKey is the user key of a person with no identifying fields.
const AnonymousKey = "anonymous"

// DeriveUserKey picks national ID, then payroll number, then email.
func DeriveUserKey(id Identity) string {
	switch {
	case id.NationalID != "":
		return id.NationalID
	case id.PayrollNumber != "":
		return id.PayrollNumber
	case id.Email != "":
		return id.Email
	default:
		return AnonymousKey
	}
}
