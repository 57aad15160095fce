package models

// UserData is what the user-form step collects.
type UserData struct {
	FirstName          string `json:"first_name"`
	OtherNames         string `json:"other_names"`
	Surname            string `json:"surname"`
	Birthdate          string `json:"birthdate,omitempty"`
	PlaceOfBirth       string `json:"place_of_birth,omitempty"`
	MaritalStatus      string `json:"marital_status"`
	PostalAddress      string `json:"postal_address,omitempty"`
	PhysicalAddress    string `json:"physical_address,omitempty"`
	Email              string `json:"email,omitempty"`
	NationalID         string `json:"national_id,omitempty"`
	PayrollNumber      string `json:"payroll_number,omitempty"`
	Designation        string `json:"designation,omitempty"`
	Department         string `json:"department,omitempty"`
	NatureOfEmployment string `json:"nature_of_employment,omitempty"`
	DeclarationType    string `json:"declaration_type"`
	DeclarationDate    string `json:"declaration_date,omitempty"`
	PeriodStartDate    string `json:"period_start_date,omitempty"`
	PeriodEndDate      string `json:"period_end_date,omitempty"`
}

// FinancialBundle is one member's ledgers as the financial step tracks them:
// a flat list tagged by member type, correlated with the spouse/child lists
// by position or name.
type FinancialBundle struct {
	Type MemberType    `json:"type"`
	Name string        `json:"name"`
	Data FinancialData `json:"data"`
}

// FinancialData holds the dates and ledgers of one bundle.
type FinancialData struct {
	DeclarationDate    string `json:"declaration_date,omitempty"`
	PeriodStartDate    string `json:"period_start_date,omitempty"`
	PeriodEndDate      string `json:"period_end_date,omitempty"`
	BiennialIncome     Ledger `json:"biennial_income"`
	Assets             Ledger `json:"assets"`
	Liabilities        Ledger `json:"liabilities"`
	OtherFinancialInfo string `json:"other_financial_info"`
}

// ReviewData is what the review step collects.
type ReviewData struct {
	WitnessSigned      bool   `json:"witness_signed"`
	WitnessName        string `json:"witness_name"`
	WitnessAddress     string `json:"witness_address"`
	WitnessPhone       string `json:"witness_phone"`
	DeclarationChecked bool   `json:"declaration_checked,omitempty"`
}

// Witness converts the review fields into the witness block.
func (r ReviewData) Witness() Witness {
	return Witness{Signed: r.WitnessSigned, Name: r.WitnessName, Address: r.WitnessAddress, Phone: r.WitnessPhone}
}
