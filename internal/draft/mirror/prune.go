package mirror

import (
	"time"

	"dials/internal/declaration/models"
	"dials/internal/draft/store"
)

const previewRunes = 120

// prunedProgress is the reduced checkpoint sent when the full one is over
// the size ceiling. Ledgers collapse to row counts and other financial info
// to a short preview; identity and review sections are kept.
type prunedProgress struct {
	LastStep      store.Step     `json:"lastStep,omitempty"`
	StateSnapshot prunedSnapshot `json:"stateSnapshot"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Pruned        bool           `json:"_pruned"`
}

type prunedSnapshot struct {
	UserData         *models.UserData   `json:"userData,omitempty"`
	Spouses          []models.Person    `json:"spouses"`
	Children         []models.Person    `json:"children"`
	AllFinancialData []prunedBundle     `json:"allFinancialData"`
	Review           *models.ReviewData `json:"review,omitempty"`
}

type prunedBundle struct {
	Type models.MemberType `json:"type"`
	Name string            `json:"name"`
	Data prunedData        `json:"data"`
}

type prunedData struct {
	DeclarationDate           string `json:"declaration_date,omitempty"`
	PeriodStartDate           string `json:"period_start_date,omitempty"`
	PeriodEndDate             string `json:"period_end_date,omitempty"`
	BiennialIncomeCount       int    `json:"biennial_income_count"`
	AssetsCount               int    `json:"assets_count"`
	LiabilitiesCount          int    `json:"liabilities_count"`
	OtherFinancialInfoPreview string `json:"other_financial_info_preview"`
}

func prune(rec *store.ProgressRecord) *prunedProgress {
	ss := rec.StateSnapshot
	out := &prunedProgress{
		LastStep:  rec.LastStep,
		UpdatedAt: rec.UpdatedAt,
		Pruned:    true,
		StateSnapshot: prunedSnapshot{
			UserData: ss.UserData,
			Spouses:  ss.Spouses,
			Children: ss.Children,
			Review:   ss.Review,
		},
	}
	if ss.AllFinancialData == nil {
		return out
	}
	out.StateSnapshot.AllFinancialData = make([]prunedBundle, len(ss.AllFinancialData))
	for i, b := range ss.AllFinancialData {
		out.StateSnapshot.AllFinancialData[i] = prunedBundle{
			Type: b.Type,
			Name: b.Name,
			Data: prunedData{
				DeclarationDate:           b.Data.DeclarationDate,
				PeriodStartDate:           b.Data.PeriodStartDate,
				PeriodEndDate:             b.Data.PeriodEndDate,
				BiennialIncomeCount:       len(b.Data.BiennialIncome),
				AssetsCount:               len(b.Data.Assets),
				LiabilitiesCount:          len(b.Data.Liabilities),
				OtherFinancialInfoPreview: preview(b.Data.OtherFinancialInfo),
			},
		}
	}
	return out
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
