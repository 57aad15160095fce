package models

import "strings"

// Record is the declaration as returned by GET /declarations/{id}. The
// backend has shipped several field spellings over time; Normalize picks
// whichever is populated.
type Record struct {
	ID                 FlexString      `json:"id"`
	Status             string          `json:"status"`
	UserEditCount      int             `json:"user_edit_count"`
	SubmittedAt        string          `json:"submitted_at"`
	DeclarationType    string          `json:"declaration_type"`
	DeclarationDate    string          `json:"declaration_date"`
	PeriodStartDate    string          `json:"period_start_date"`
	PeriodEndDate      string          `json:"period_end_date"`
	FirstName          string          `json:"first_name"`
	FirstNameAlt       string          `json:"firstName"`
	OtherNames         string          `json:"other_names"`
	OtherNamesAlt      string          `json:"otherNames"`
	Surname            string          `json:"surname"`
	MaritalStatus      string          `json:"marital_status"`
	MaritalStatusAlt   string          `json:"maritalStatus"`
	User               *RecordUser     `json:"user"`
	Spouses            []RecordPerson  `json:"spouses"`
	Children           []RecordPerson  `json:"children"`
	FinancialUnified   []RecordFinance `json:"financial_unified"`
	BiennialIncome     Ledger          `json:"biennial_income"`
	Assets             Ledger          `json:"assets"`
	Liabilities        Ledger          `json:"liabilities"`
	OtherFinancialInfo string          `json:"other_financial_info"`
	WitnessSigned      FlexBool        `json:"witness_signed"`
	WitnessName        string          `json:"witness_name"`
	WitnessAddress     string          `json:"witness_address"`
	WitnessPhone       string          `json:"witness_phone"`
}

// RecordEnvelope wraps the GET response body.
type RecordEnvelope struct {
	Success     *bool   `json:"success,omitempty"`
	Message     string  `json:"message,omitempty"`
	Declaration *Record `json:"declaration"`
}

// RecordUser is the nested user object some responses embed.
type RecordUser struct {
	MaritalStatus string `json:"marital_status"`
}

// RecordPerson is a spouse or child row.
type RecordPerson struct {
	FirstName     string `json:"first_name"`
	FirstNameAlt  string `json:"firstName"`
	OtherNames    string `json:"other_names"`
	OtherNamesAlt string `json:"otherNames"`
	Surname       string `json:"surname"`
}

// RecordFinance is one entry of financial_unified.
type RecordFinance struct {
	MemberType         string `json:"member_type"`
	MemberName         string `json:"member_name"`
	DeclarationDate    string `json:"declaration_date"`
	PeriodStartDate    string `json:"period_start_date"`
	PeriodEndDate      string `json:"period_end_date"`
	BiennialIncome     Ledger `json:"biennial_income"`
	Assets             Ledger `json:"assets"`
	Liabilities        Ledger `json:"liabilities"`
	OtherFinancialInfo string `json:"other_financial_info"`
}

// Normalize maps a backend record onto the session shape. Root-level ledgers
// are folded into the single user-typed financial member.
func Normalize(r *Record) *Declaration {
	if r == nil {
		return nil
	}
	status := Status(strings.ToLower(r.Status))
	d := &Declaration{
		ID:            strings.TrimSpace(r.ID.String()),
		Status:        status,
		Submitted:     strings.TrimSpace(r.SubmittedAt) != "" || status == StatusPending || status == StatusApproved,
		UserEditCount: r.UserEditCount,
		Type:          r.DeclarationType,
		Profile: Profile{
			FirstName:     first(r.FirstName, r.FirstNameAlt),
			OtherNames:    first(r.OtherNames, r.OtherNamesAlt),
			Surname:       r.Surname,
			MaritalStatus: first(r.MaritalStatus, r.MaritalStatusAlt, r.userMaritalStatus()),
		},
		Members: Members{
			Spouses:  normalizePeople(r.Spouses),
			Children: normalizePeople(r.Children),
		},
		Witness: Witness{
			Signed:  bool(r.WitnessSigned),
			Name:    r.WitnessName,
			Address: r.WitnessAddress,
			Phone:   r.WitnessPhone,
		},
	}
	d.Financial.Members = normalizeFinancial(r, d.Profile)
	return d
}

func (r *Record) userMaritalStatus() string {
	if r.User == nil {
		return ""
	}
	return r.User.MaritalStatus
}

func normalizePeople(in []RecordPerson) []Person {
	out := make([]Person, 0, len(in))
	for _, p := range in {
		out = append(out, Person{
			FirstName:  first(p.FirstName, p.FirstNameAlt),
			OtherNames: first(p.OtherNames, p.OtherNamesAlt),
			Surname:    p.Surname,
		})
	}
	return out
}

func normalizeFinancial(r *Record, profile Profile) []FinancialMember {
	userName := Person{FirstName: profile.FirstName, OtherNames: profile.OtherNames, Surname: profile.Surname}.FullName()
	if userName == "" {
		userName = "User"
	}

	members := make([]FinancialMember, 0, len(r.FinancialUnified)+1)
	userIdx := -1
	for _, f := range r.FinancialUnified {
		mt := MemberType(strings.ToLower(f.MemberType))
		if mt == "" {
			mt = MemberUser
		}
		m := FinancialMember{
			MemberType: mt,
			MemberName: f.MemberName,
			Ledgers: Ledgers{
				Income:      compactRows(f.BiennialIncome),
				Assets:      compactRows(f.Assets),
				Liabilities: compactRows(f.Liabilities),
			},
			OtherInfo: f.OtherFinancialInfo,
		}
		if mt == MemberUser {
			if m.MemberName == "" {
				m.MemberName = userName
			}
			if userIdx >= 0 {
				members[userIdx] = mergeMembers(members[userIdx], m)
				continue
			}
			userIdx = len(members)
		}
		members = append(members, m)
	}

	root := FinancialMember{
		MemberType: MemberUser,
		MemberName: userName,
		Ledgers: Ledgers{
			Income:      compactRows(r.BiennialIncome),
			Assets:      compactRows(r.Assets),
			Liabilities: compactRows(r.Liabilities),
		},
		OtherInfo: r.OtherFinancialInfo,
	}
	if !root.hasData() {
		return members
	}
	if userIdx >= 0 {
		members[userIdx] = mergeMembers(root, members[userIdx])
		return members
	}
	return append([]FinancialMember{root}, members...)
}

func (m FinancialMember) hasData() bool {
	return len(m.Ledgers.Income) > 0 || len(m.Ledgers.Assets) > 0 ||
		len(m.Ledgers.Liabilities) > 0 || m.OtherInfo != ""
}

// mergeMembers unions the rows of a and b (b wins on identical
// type/description/value) and keeps the first non-empty other info.
func mergeMembers(a, b FinancialMember) FinancialMember {
	out := b
	if out.MemberName == "" {
		out.MemberName = a.MemberName
	}
	out.Ledgers = Ledgers{
		Income:      mergeRows(a.Ledgers.Income, b.Ledgers.Income),
		Assets:      mergeRows(a.Ledgers.Assets, b.Ledgers.Assets),
		Liabilities: mergeRows(a.Ledgers.Liabilities, b.Ledgers.Liabilities),
	}
	if out.OtherInfo == "" {
		out.OtherInfo = a.OtherInfo
	}
	return out
}

func mergeRows(a, b Ledger) Ledger {
	out := make(Ledger, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, row := range append(a.Clone(), b...) {
		key := strings.ToLower(row.Type + "|" + row.Description + "|" + row.Value.String())
		if i, ok := index[key]; ok {
			out[i] = row
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return out
}

// compactRows drops rows with no user input and fills description from the
// type-specific free-text fields older rows used.
func compactRows(in Ledger) Ledger {
	out := make(Ledger, 0, len(in))
	for _, row := range in {
		if row.IsBlank() {
			continue
		}
		if row.Description == "" {
			row.Description = first(row.LiabilityOtherDescription, row.AssetOtherType)
		}
		out = append(out, row)
	}
	return out
}

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
