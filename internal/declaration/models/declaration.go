package models

import "strings"

// Status is the lifecycle state reported by the backend.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// MemberType tags whose ledgers a financial entry holds.
type MemberType string

const (
	MemberUser   MemberType = "user"
	MemberSpouse MemberType = "spouse"
	MemberChild  MemberType = "child"
)

// Declaration is the normalized session shape of one declaration being
// edited. Pages read it; only the session replaces it.
type Declaration struct {
	ID            string
	Status        Status
	Submitted     bool
	UserEditCount int
	Type          string
	Profile       Profile
	Members       Members
	Financial     Financial
	Witness       Witness
}

// Profile is the subset of employee identity relevant to the declaration.
type Profile struct {
	FirstName     string `json:"first_name"`
	OtherNames    string `json:"other_names"`
	Surname       string `json:"surname"`
	MaritalStatus string `json:"marital_status"`
}

// Members lists the declared family members in entry order.
type Members struct {
	Spouses  []Person
	Children []Person
}

// Financial holds one ledger bundle per declared person. At most one entry
// is typed MemberUser.
type Financial struct {
	Members []FinancialMember
}

// Person identifies a spouse or child.
type Person struct {
	FirstName  string `json:"first_name"`
	OtherNames string `json:"other_names"`
	Surname    string `json:"surname"`
}

// FullName joins the non-empty name parts with single spaces.
func (p Person) FullName() string {
	return strings.Join(strings.Fields(p.FirstName+" "+p.OtherNames+" "+p.Surname), " ")
}

// NormalizedName is FullName lowercased, used for name correlation.
func (p Person) NormalizedName() string {
	return strings.ToLower(p.FullName())
}

// FinancialMember is the three ledgers of one person.
type FinancialMember struct {
	MemberType MemberType
	MemberName string
	Ledgers    Ledgers
	OtherInfo  string
}

// Ledgers groups the income, assets and liabilities sections.
type Ledgers struct {
	Income      Ledger
	Assets      Ledger
	Liabilities Ledger
}

// Witness is the witness block signed on the review page.
type Witness struct {
	Signed  bool
	Name    string
	Address string
	Phone   string
}

// EditLocked reports whether the one-time post-approval edit was used up.
func (d *Declaration) EditLocked() bool {
	return d != nil && d.Status == StatusApproved && d.UserEditCount >= 1
}

// CountEdit records an accepted edit the way the backend does: the first
// edit after submission raises UserEditCount to 1, later ones leave it.
func (d *Declaration) CountEdit() {
	if d.Submitted && d.UserEditCount < 1 {
		d.UserEditCount++
	}
}

// UserFinancial returns the user's ledger bundle, or nil.
func (d *Declaration) UserFinancial() *FinancialMember {
	if d == nil {
		return nil
	}
	for i := range d.Financial.Members {
		if d.Financial.Members[i].MemberType == MemberUser {
			return &d.Financial.Members[i]
		}
	}
	return nil
}

// Clone returns a deep copy; the session keeps its baseline isolated from
// the model handed to pages.
func (d *Declaration) Clone() *Declaration {
	if d == nil {
		return nil
	}
	out := *d
	out.Members.Spouses = clonePeople(d.Members.Spouses)
	out.Members.Children = clonePeople(d.Members.Children)
	if d.Financial.Members != nil {
		out.Financial.Members = make([]FinancialMember, len(d.Financial.Members))
		for i, m := range d.Financial.Members {
			out.Financial.Members[i] = m.Clone()
		}
	}
	return &out
}

// Clone deep-copies the ledgers.
func (m FinancialMember) Clone() FinancialMember {
	m.Ledgers = Ledgers{
		Income:      m.Ledgers.Income.Clone(),
		Assets:      m.Ledgers.Assets.Clone(),
		Liabilities: m.Ledgers.Liabilities.Clone(),
	}
	return m
}

func clonePeople(in []Person) []Person {
	if in == nil {
		return nil
	}
	return append(make([]Person, 0, len(in)), in...)
}
