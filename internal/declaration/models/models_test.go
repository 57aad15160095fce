package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDecodesArrayStringAndNull(t *testing.T) {
	var payload struct {
		A Ledger `json:"a"`
		B Ledger `json:"b"`
		C Ledger `json:"c"`
		D Ledger `json:"d"`
	}
	raw := `{
		"a": [{"type":"Salary","description":"Main job","value":1000}],
		"b": "[{\"type\":\"Rent\",\"description\":\"Flat\",\"value\":\"250\"}]",
		"c": null,
		"d": "not json"
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, Ledger{{Type: "Salary", Description: "Main job", Value: "1000"}}, payload.A)
	assert.Equal(t, Ledger{{Type: "Rent", Description: "Flat", Value: "250"}}, payload.B)
	assert.NotNil(t, payload.C)
	assert.Empty(t, payload.C)
	assert.Empty(t, payload.D)
}

func TestNilSentinel(t *testing.T) {
	assert.True(t, NilRow().IsNil())
	assert.False(t, LedgerRow{Type: "Nil", Description: "Cash"}.IsNil())
	assert.True(t, Ledger{NilRow()}.DeclaredNil())
	assert.False(t, Ledger{}.DeclaredNil())
}

func TestFlexBool(t *testing.T) {
	cases := map[string]bool{`true`: true, `1`: true, `"1"`: true, `0`: false, `false`: false, `null`: false}
	for raw, want := range cases {
		var b FlexBool
		require.NoError(t, json.Unmarshal([]byte(raw), &b), raw)
		assert.Equal(t, want, bool(b), raw)
	}
}

func TestNormalizeHandlesAlternateSpellings(t *testing.T) {
	raw := `{
		"id": 17,
		"status": "Approved",
		"user_edit_count": 1,
		"firstName": "Amina",
		"otherNames": "W.",
		"surname": "Otieno",
		"user": {"marital_status": "married"},
		"spouses": [{"firstName": "Juma", "surname": "Otieno"}],
		"children": [{"first_name": "Zawadi", "other_names": "", "surname": "Otieno"}],
		"biennial_income": [{"type":"Salary","description":"Salary","value":"1000"}],
		"financial_unified": [
			{"member_type":"user","member_name":"","assets":[{"type":"Vehicles","description":"Car","value":"5000","make":"Toyota"}]},
			{"member_type":"spouse","member_name":"Juma Otieno","biennial_income":"[{\"type\":\"Rent\",\"description\":\"Shop\",\"value\":\"300\"}]"}
		],
		"witness_signed": 1,
		"witness_name": "K. Mwangi"
	}`
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	d := Normalize(&rec)
	require.NotNil(t, d)
	assert.Equal(t, "17", d.ID)
	assert.Equal(t, StatusApproved, d.Status)
	assert.True(t, d.EditLocked())
	assert.Equal(t, Profile{FirstName: "Amina", OtherNames: "W.", Surname: "Otieno", MaritalStatus: "married"}, d.Profile)
	assert.Equal(t, []Person{{FirstName: "Juma", Surname: "Otieno"}}, d.Members.Spouses)
	assert.True(t, d.Witness.Signed)

	require.Len(t, d.Financial.Members, 2)
	user := d.UserFinancial()
	require.NotNil(t, user)
	assert.Equal(t, "Amina W. Otieno", user.MemberName)
	assert.Len(t, user.Ledgers.Income, 1, "root ledgers fold into the user member")
	assert.Len(t, user.Ledgers.Assets, 1)
	assert.Equal(t, "Toyota", user.Ledgers.Assets[0].Make)
	assert.Equal(t, MemberSpouse, d.Financial.Members[1].MemberType)
	assert.Equal(t, "300", d.Financial.Members[1].Ledgers.Income[0].Value.String())
}

func TestNormalizeKeepsSingleUserMember(t *testing.T) {
	rec := &Record{
		ID: "3",
		FinancialUnified: []RecordFinance{
			{MemberType: "user", BiennialIncome: Ledger{{Type: "Salary", Description: "A", Value: "1"}}},
			{MemberType: "user", BiennialIncome: Ledger{{Type: "Rent", Description: "B", Value: "2"}}},
		},
	}
	d := Normalize(rec)
	users := 0
	for _, m := range d.Financial.Members {
		if m.MemberType == MemberUser {
			users++
		}
	}
	assert.Equal(t, 1, users)
	assert.Len(t, d.UserFinancial().Ledgers.Income, 2)
}

func TestCloneIsDeep(t *testing.T) {
	d := &Declaration{
		ID:      "1",
		Members: Members{Spouses: []Person{{FirstName: "A"}}},
		Financial: Financial{Members: []FinancialMember{
			{MemberType: MemberUser, Ledgers: Ledgers{Income: Ledger{{Type: "Salary"}}}},
		}},
	}
	c := d.Clone()
	c.Members.Spouses[0].FirstName = "B"
	c.Financial.Members[0].Ledgers.Income[0].Type = "Rent"

	assert.Equal(t, "A", d.Members.Spouses[0].FirstName)
	assert.Equal(t, "Salary", d.Financial.Members[0].Ledgers.Income[0].Type)
	assert.Nil(t, (*Declaration)(nil).Clone())
}

func TestPersonNames(t *testing.T) {
	p := Person{FirstName: " Juma ", OtherNames: "", Surname: "Otieno"}
	assert.Equal(t, "Juma Otieno", p.FullName())
	assert.Equal(t, "juma otieno", p.NormalizedName())
}
