package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NilMarker is the type and description of the sentinel row declaring a
// whole ledger section empty.
const NilMarker = "Nil"

// LedgerRow is one income, asset or liability line. Optional fields apply to
// specific row types: vehicles carry make/model/licence, land carries title
// deed/location/size, "Other" liabilities carry a free-text description.
type LedgerRow struct {
	Type                      string     `json:"type"`
	Description               string     `json:"description"`
	Value                     FlexString `json:"value"`
	Make                      string     `json:"make,omitempty"`
	Model                     string     `json:"model,omitempty"`
	LicenceNo                 string     `json:"licence_no,omitempty"`
	TitleDeed                 string     `json:"title_deed,omitempty"`
	Location                  string     `json:"location,omitempty"`
	Size                      string     `json:"size,omitempty"`
	SizeUnit                  string     `json:"size_unit,omitempty"`
	LiabilityOtherDescription string     `json:"liability_other_description,omitempty"`
	AssetOtherType            string     `json:"asset_other_type,omitempty"`
}

// IsNil reports whether the row is the Nil sentinel.
func (r LedgerRow) IsNil() bool {
	return r.Type == NilMarker && r.Description == NilMarker
}

// IsBlank reports whether the row carries no user input at all.
func (r LedgerRow) IsBlank() bool {
	return r.Type == "" && r.Description == "" && r.Value == "" &&
		r.LiabilityOtherDescription == "" && r.AssetOtherType == ""
}

// NilRow builds the sentinel row.
func NilRow() LedgerRow {
	return LedgerRow{Type: NilMarker, Description: NilMarker}
}

// Ledger is an ordered list of rows. It decodes from a JSON array, from a
// JSON string holding an array (older backend rows), or from null.
type Ledger []LedgerRow

// DeclaredNil reports whether the section is explicitly declared empty.
func (l Ledger) DeclaredNil() bool {
	for _, r := range l {
		if r.IsNil() {
			return true
		}
	}
	return false
}

// Clone copies the rows. The result is never nil.
func (l Ledger) Clone() Ledger {
	return append(make(Ledger, 0, len(l)), l...)
}

// OrEmpty returns l, or an empty non-nil ledger.
func (l Ledger) OrEmpty() Ledger {
	if l == nil {
		return Ledger{}
	}
	return l
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = Ledger{}
		return nil
	}
	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		var rows []LedgerRow
		if err := json.Unmarshal([]byte(encoded), &rows); err != nil {
			// Unparseable legacy text degrades to an empty section.
			*l = Ledger{}
			return nil
		}
		*l = rows
		return nil
	}
	var rows []LedgerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*l = rows
	return nil
}

// FlexString decodes from a JSON string, number or bool and encodes as a
// string. Amounts and ids arrive in either form depending on the endpoint.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		*f = FlexString(string(data))
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// FlexBool decodes from true/false, 0/1 and their string forms.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "false", "0", "no":
		*b = false
		return nil
	case "true", "1", "yes":
		*b = true
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*b = false
		return nil
	}
	*b = n != 0
	return nil
}
