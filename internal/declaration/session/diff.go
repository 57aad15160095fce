package session

import (
	"dials/internal/declaration/models"
)

// Partial is a proposed update. Nil scalars are absent; a non-nil Spouses
// or Children list replaces the whole stored list, including with an empty
// one.
type Partial struct {
	MaritalStatus  *string
	WitnessSigned  *bool
	WitnessName    *string
	WitnessAddress *string
	WitnessPhone   *string
	Spouses        []models.Person
	Children       []models.Person
}

// Empty reports whether p carries no field at all.
func (p Partial) Empty() bool {
	return Diff(p).Empty()
}

// Diff is the part of a Partial that differs from the baseline. Collections
// are carried verbatim whenever present.
type Diff Partial

// ComputeDiff keeps the scalars of p that differ from baseline and every
// collection p carries. A nil baseline compares against zero values.
func ComputeDiff(baseline *models.Declaration, p Partial) Diff {
	var base models.Declaration
	if baseline != nil {
		base = *baseline
	}
	var d Diff
	if p.MaritalStatus != nil && *p.MaritalStatus != base.Profile.MaritalStatus {
		d.MaritalStatus = p.MaritalStatus
	}
	if p.WitnessSigned != nil && *p.WitnessSigned != base.Witness.Signed {
		d.WitnessSigned = p.WitnessSigned
	}
	if p.WitnessName != nil && *p.WitnessName != base.Witness.Name {
		d.WitnessName = p.WitnessName
	}
	if p.WitnessAddress != nil && *p.WitnessAddress != base.Witness.Address {
		d.WitnessAddress = p.WitnessAddress
	}
	if p.WitnessPhone != nil && *p.WitnessPhone != base.Witness.Phone {
		d.WitnessPhone = p.WitnessPhone
	}
	d.Spouses = p.Spouses
	d.Children = p.Children
	return d
}

// Empty reports whether the diff has nothing to send.
func (d Diff) Empty() bool {
	return d.MaritalStatus == nil && d.WitnessSigned == nil && d.WitnessName == nil &&
		d.WitnessAddress == nil && d.WitnessPhone == nil && d.Spouses == nil && d.Children == nil
}

// CollectionsTouched counts the collections the diff replaces.
func (d Diff) CollectionsTouched() int {
	n := 0
	if d.Spouses != nil {
		n++
	}
	if d.Children != nil {
		n++
	}
	return n
}

// Body is the PATCH request body, keyed by backend field names.
func (d Diff) Body() map[string]any {
	body := make(map[string]any, 7)
	if d.MaritalStatus != nil {
		body["marital_status"] = *d.MaritalStatus
	}
	if d.WitnessSigned != nil {
		body["witness_signed"] = *d.WitnessSigned
	}
	if d.WitnessName != nil {
		body["witness_name"] = *d.WitnessName
	}
	if d.WitnessAddress != nil {
		body["witness_address"] = *d.WitnessAddress
	}
	if d.WitnessPhone != nil {
		body["witness_phone"] = *d.WitnessPhone
	}
	if d.Spouses != nil {
		body["spouses"] = d.Spouses
	}
	if d.Children != nil {
		body["children"] = d.Children
	}
	return body
}

// apply writes the fields present in p into decl.
func apply(decl *models.Declaration, p Partial) {
	if p.MaritalStatus != nil {
		decl.Profile.MaritalStatus = *p.MaritalStatus
	}
	if p.WitnessSigned != nil {
		decl.Witness.Signed = *p.WitnessSigned
	}
	if p.WitnessName != nil {
		decl.Witness.Name = *p.WitnessName
	}
	if p.WitnessAddress != nil {
		decl.Witness.Address = *p.WitnessAddress
	}
	if p.WitnessPhone != nil {
		decl.Witness.Phone = *p.WitnessPhone
	}
	if p.Spouses != nil {
		decl.Members.Spouses = append([]models.Person{}, p.Spouses...)
	}
	if p.Children != nil {
		decl.Members.Children = append([]models.Person{}, p.Children...)
	}
}

// fullPayload is the PUT body: marital status, identity lists and the
// witness block. Ledgers are patched separately.
type fullPayload struct {
	MaritalStatus  string          `json:"marital_status"`
	Spouses        []models.Person `json:"spouses"`
	Children       []models.Person `json:"children"`
	WitnessSigned  bool            `json:"witness_signed"`
	WitnessName    string          `json:"witness_name"`
	WitnessAddress string          `json:"witness_address"`
	WitnessPhone   string          `json:"witness_phone"`
}

func fullPayloadOf(d *models.Declaration) fullPayload {
	p := fullPayload{
		MaritalStatus:  d.Profile.MaritalStatus,
		Spouses:        d.Members.Spouses,
		Children:       d.Members.Children,
		WitnessSigned:  d.Witness.Signed,
		WitnessName:    d.Witness.Name,
		WitnessAddress: d.Witness.Address,
		WitnessPhone:   d.Witness.Phone,
	}
	if p.Spouses == nil {
		p.Spouses = []models.Person{}
	}
	if p.Children == nil {
		p.Children = []models.Person{}
	}
	return p
}

// LedgerPatch is a root-level update of the user's own ledgers. Nil fields
// are left alone.
type LedgerPatch struct {
	BiennialIncome     *models.Ledger `json:"biennial_income,omitempty"`
	Assets             *models.Ledger `json:"assets,omitempty"`
	Liabilities        *models.Ledger `json:"liabilities,omitempty"`
	OtherFinancialInfo *string        `json:"other_financial_info,omitempty"`
}

// Empty reports whether the patch carries no ledger.
func (p LedgerPatch) Empty() bool {
	return p.BiennialIncome == nil && p.Assets == nil && p.Liabilities == nil && p.OtherFinancialInfo == nil
}

func (p LedgerPatch) applyTo(decl *models.Declaration) {
	user := decl.UserFinancial()
	if user == nil {
		decl.Financial.Members = append(decl.Financial.Members, models.FinancialMember{
			MemberType: models.MemberUser,
			MemberName: models.Person{
				FirstName:  decl.Profile.FirstName,
				OtherNames: decl.Profile.OtherNames,
				Surname:    decl.Profile.Surname,
			}.FullName(),
		})
		user = &decl.Financial.Members[len(decl.Financial.Members)-1]
	}
	if p.BiennialIncome != nil {
		user.Ledgers.Income = p.BiennialIncome.Clone()
	}
	if p.Assets != nil {
		user.Ledgers.Assets = p.Assets.Clone()
	}
	if p.Liabilities != nil {
		user.Ledgers.Liabilities = p.Liabilities.Clone()
	}
	if p.OtherFinancialInfo != nil {
		user.OtherInfo = *p.OtherFinancialInfo
	}
}
