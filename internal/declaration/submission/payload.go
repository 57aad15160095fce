// Package submission assembles and checks the payload of a final
// declaration submission. Everything here is pure.
package submission

import (
	"errors"
	"slices"
	"strings"

	"dials/internal/declaration/models"
)

// ErrNoSource is returned by Build when neither a session model nor user
// data is available.
var ErrNoSource = errors.New("no declaration data to submit")

// Declaration types accepted by the backend.
const (
	TypeFirst    = "First"
	TypeBiennial = "Biennial"
	TypeFinal    = "Final"
)

// NormalizeDeclarationType maps user input onto a canonical type. Anything
// unrecognized comes back unchanged so validation can reject it.
func NormalizeDeclarationType(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lower, "bien"):
		return TypeBiennial
	case lower == "first":
		return TypeFirst
	case lower == "final":
		return TypeFinal
	}
	return s
}

// Input is whatever the wizard holds at submit time. Model is the loaded
// session declaration when editing; the other fields are page state and
// take precedence over it.
type Input struct {
	Model     *models.Declaration
	UserData  *models.UserData
	Spouses   []models.Person
	Children  []models.Person
	Financial []models.FinancialBundle
	Witness   models.Witness
}

// Payload is the body of POST /declarations.
type Payload struct {
	MaritalStatus      string          `json:"marital_status"`
	DeclarationType    string          `json:"declaration_type"`
	DeclarationDate    string          `json:"declaration_date"`
	PeriodStartDate    string          `json:"period_start_date"`
	PeriodEndDate      string          `json:"period_end_date"`
	BiennialIncome     models.Ledger   `json:"biennial_income"`
	Assets             models.Ledger   `json:"assets"`
	Liabilities        models.Ledger   `json:"liabilities"`
	OtherFinancialInfo string          `json:"other_financial_info"`
	Spouses            []MemberPayload `json:"spouses"`
	Children           []MemberPayload `json:"children"`
	WitnessSigned      bool            `json:"witness_signed"`
	WitnessName        string          `json:"witness_name"`
	WitnessAddress     string          `json:"witness_address"`
	WitnessPhone       string          `json:"witness_phone"`
}

// MemberPayload is a spouse or child with their own ledgers.
type MemberPayload struct {
	FirstName          string        `json:"first_name"`
	OtherNames         string        `json:"other_names"`
	Surname            string        `json:"surname"`
	BiennialIncome     models.Ledger `json:"biennial_income"`
	Assets             models.Ledger `json:"assets"`
	Liabilities        models.Ledger `json:"liabilities"`
	OtherFinancialInfo string        `json:"other_financial_info"`
}

type buildConfig struct {
	byName bool
}

type BuildOption func(*buildConfig)

// WithNameCorrelation matches spouse and child ledger bundles to people by
// normalized full name before falling back to position.
func WithNameCorrelation() BuildOption {
	return func(c *buildConfig) {
		c.byName = true
	}
}

// Build assembles the submission payload. Ledgers the wizard never filled
// come out as empty lists, and rows with neither description nor value are
// dropped.
func Build(in Input, opts ...BuildOption) (Payload, error) {
	if in.Model == nil && in.UserData == nil {
		return Payload{}, ErrNoSource
	}
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var user models.UserData
	if in.UserData != nil {
		user = *in.UserData
	}
	var model models.Declaration
	if in.Model != nil {
		model = *in.Model
	}

	bundles := in.Financial
	if bundles == nil {
		bundles = bundlesOf(in.Model)
	}
	var root *models.FinancialData
	var spouseBundles, childBundles []models.FinancialBundle
	for i := range bundles {
		switch bundles[i].Type {
		case models.MemberUser:
			if root == nil {
				root = &bundles[i].Data
			}
		case models.MemberSpouse:
			spouseBundles = append(spouseBundles, bundles[i])
		case models.MemberChild:
			childBundles = append(childBundles, bundles[i])
		}
	}
	if root == nil {
		root = &models.FinancialData{}
	}

	spouses, children := in.Spouses, in.Children
	if spouses == nil {
		spouses = model.Members.Spouses
	}
	if children == nil {
		children = model.Members.Children
	}

	declType := strings.TrimSpace(user.DeclarationType)
	if declType == "" {
		declType = strings.TrimSpace(model.Type)
	}

	return Payload{
		MaritalStatus:      firstNonEmpty(user.MaritalStatus, model.Profile.MaritalStatus),
		DeclarationType:    NormalizeDeclarationType(declType),
		DeclarationDate:    firstNonEmpty(user.DeclarationDate, root.DeclarationDate),
		PeriodStartDate:    firstNonEmpty(user.PeriodStartDate, root.PeriodStartDate),
		PeriodEndDate:      firstNonEmpty(user.PeriodEndDate, root.PeriodEndDate),
		BiennialIncome:     pruneRows(root.BiennialIncome),
		Assets:             pruneRows(root.Assets),
		Liabilities:        pruneRows(root.Liabilities),
		OtherFinancialInfo: root.OtherFinancialInfo,
		Spouses:            members(spouses, correlate(spouses, spouseBundles, cfg.byName)),
		Children:           members(children, correlate(children, childBundles, cfg.byName)),
		WitnessSigned:      in.Witness.Signed,
		WitnessName:        in.Witness.Name,
		WitnessAddress:     in.Witness.Address,
		WitnessPhone:       in.Witness.Phone,
	}, nil
}

// bundlesOf turns the session's financial members into wizard bundles.
func bundlesOf(d *models.Declaration) []models.FinancialBundle {
	if d == nil {
		return nil
	}
	out := make([]models.FinancialBundle, 0, len(d.Financial.Members))
	for _, m := range d.Financial.Members {
		out = append(out, models.FinancialBundle{
			Type: m.MemberType,
			Name: m.MemberName,
			Data: models.FinancialData{
				BiennialIncome:     m.Ledgers.Income,
				Assets:             m.Ledgers.Assets,
				Liabilities:        m.Ledgers.Liabilities,
				OtherFinancialInfo: m.OtherInfo,
			},
		})
	}
	return out
}

// correlate returns, per person, the ledger bundle that belongs to them or
// nil.
func correlate(people []models.Person, bundles []models.FinancialBundle, byName bool) []*models.FinancialData {
	out := make([]*models.FinancialData, len(people))
	used := make([]bool, len(bundles))
	if byName {
		for i, p := range people {
			name := p.NormalizedName()
			if name == "" {
				continue
			}
			for j := range bundles {
				if !used[j] && normalizeName(bundles[j].Name) == name {
					out[i] = &bundles[j].Data
					used[j] = true
					break
				}
			}
		}
	}
	for i := range people {
		if out[i] != nil {
			continue
		}
		j := i
		if j >= len(bundles) || used[j] {
			// Taken by a name match: use the first bundle nobody claimed.
			if j = slices.Index(used, false); j < 0 {
				continue
			}
		}
		out[i] = &bundles[j].Data
		used[j] = true
	}
	return out
}

func members(people []models.Person, fin []*models.FinancialData) []MemberPayload {
	out := make([]MemberPayload, len(people))
	for i, p := range people {
		data := fin[i]
		if data == nil {
			data = &models.FinancialData{}
		}
		out[i] = MemberPayload{
			FirstName:          p.FirstName,
			OtherNames:         p.OtherNames,
			Surname:            p.Surname,
			BiennialIncome:     pruneRows(data.BiennialIncome),
			Assets:             pruneRows(data.Assets),
			Liabilities:        pruneRows(data.Liabilities),
			OtherFinancialInfo: data.OtherFinancialInfo,
		}
	}
	return out
}

func pruneRows(in models.Ledger) models.Ledger {
	out := make(models.Ledger, 0, len(in))
	for _, r := range in {
		if strings.TrimSpace(r.Description) == "" && strings.TrimSpace(r.Value.String()) == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
