package submission

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dials/internal/declaration/models"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// Window is an administrator-configured Biennial filing window. A zero
// Window means none is configured.
type Window struct {
	Start time.Time
	End   time.Time
}

// Configured reports whether both bounds are set and ordered.
func (w Window) Configured() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start)
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(truncateDay(w.Start)) && !t.After(truncateDay(w.End))
}

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	BiennialWindow Window
}

var (
	allowedIncome = setOf(
		"Salary", "Rent", "Crops", "Livestock and their Products", "Interest on Bank Deposits",
		"Dividends from Saccos", "Dividends from Stock", "Dowry", "Transportation Income",
		"Insurance Bonuses", "Cash Gifts", "Royalties", "Damages provided by court.",
		"Content Creation", "Other", "Rental Income", "Sale of Crops",
		"Sale of Livestock and their Products",
		"Transportation Income (Matatus, Taxis, Boda Boda etc.)",
	)
	allowedAssets = setOf(
		"Ancestral Land", "Acquired Land", "Building", "Houses", "Vehicles",
		"Transportation Vehicles", "Stock Shares", "Sacco Shares", "Household Goods",
		"Personal Items", "Jewelry", "Cash At Hand", "Cash At Bank",
		"Financial Obligations Owed", "Other", "Land", "Corporate Shares",
	)
	allowedLiabilities = setOf(
		"Outstanding School Fees", "Friendly Loans", "Sacco Loan", "Bank Loan", "Vehicle Loan",
		"Mortgage Loans", "Student Loans", "Imprest Due", "Salary Advance", "Outstanding Dowry",
		"Loan From Chama", "Mobile Loan", "Other",
	)
)

// Validate returns every problem that blocks submission of p, in a stable
// order suitable for showing verbatim. An empty result means p may be sent.
func Validate(p Payload, opts ValidateOptions) []string {
	var errs []string

	declType := NormalizeDeclarationType(p.DeclarationType)
	switch declType {
	case TypeFirst, TypeBiennial, TypeFinal:
	default:
		errs = append(errs, "Invalid declaration_type. Allowed: First, Biennial, Final.")
	}

	if strings.TrimSpace(p.MaritalStatus) == "" {
		errs = append(errs, "Marital status is required.")
	}

	declDate, dateErrs := requiredDate(p.DeclarationDate, "Declaration date")
	errs = append(errs, dateErrs...)
	start, startErrs := requiredDate(p.PeriodStartDate, "Period start date")
	errs = append(errs, startErrs...)
	end, endErrs := requiredDate(p.PeriodEndDate, "Period end date")
	errs = append(errs, endErrs...)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, "Period end date cannot be before period start date.")
	}

	if declType == TypeBiennial && !declDate.IsZero() {
		if msg := biennialWindowError(declDate, opts.BiennialWindow); msg != "" {
			errs = append(errs, msg)
		}
	}

	if phone := strings.TrimSpace(p.WitnessPhone); phone != "" && !phonePattern.MatchString(phone) {
		errs = append(errs, "Witness phone must be 7 to 15 digits with an optional leading +.")
	}

	errs = append(errs, ledgerErrors("", p.BiennialIncome, p.Assets, p.Liabilities)...)
	for i, s := range p.Spouses {
		errs = append(errs, ledgerErrors(fmt.Sprintf("spouses[%d].", i), s.BiennialIncome, s.Assets, s.Liabilities)...)
	}
	for i, c := range p.Children {
		errs = append(errs, ledgerErrors(fmt.Sprintf("children[%d].", i), c.BiennialIncome, c.Assets, c.Liabilities)...)
	}
	return errs
}

func biennialWindowError(d time.Time, w Window) string {
	if w.Configured() {
		if w.contains(d) {
			return ""
		}
		return fmt.Sprintf("Biennial declaration only allowed between %s and %s.",
			w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	if d.Year() >= 2025 && d.Year()%2 == 1 && d.Month() >= time.November {
		return ""
	}
	return "Biennial declaration only allowed Nov 1 - Dec 31 of an odd year starting 2025."
}

func ledgerErrors(prefix string, income, assets, liabilities models.Ledger) []string {
	var errs []string
	errs = append(errs, sectionErrors(prefix+"biennial_income", income, allowedIncome)...)
	errs = append(errs, sectionErrors(prefix+"assets", assets, allowedAssets)...)
	errs = append(errs, sectionErrors(prefix+"liabilities", liabilities, allowedLiabilities)...)
	return errs
}

func sectionErrors(field string, rows models.Ledger, allowed map[string]struct{}) []string {
	if rows.DeclaredNil() {
		return nil
	}
	var errs []string
	for i, r := range rows {
		t := strings.TrimSpace(r.Type)
		if t == "" || t == models.NilMarker {
			continue
		}
		if _, ok := allowed[t]; !ok {
			errs = append(errs, fmt.Sprintf("%s[%d]: invalid type %q.", field, i, t))
		}
	}
	return errs
}

func requiredDate(s, label string) (time.Time, []string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, []string{label + " is required."}
	}
	t, ok := ParseDate(s)
	if !ok {
		return time.Time{}, []string{label + " is not a valid date."}
	}
	return t, nil
}

// ParseDate accepts YYYY-MM-DD (optionally followed by a time part) and
// DD/MM/YYYY.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2/1/2006", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setOf(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
