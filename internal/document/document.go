package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Type string

const (
	TypePayroll         Type = "PAYROLL"
	TypeMemorandum      Type = "MEMORANDUM"
	TypePurchaseRequest Type = "PURCHASE_REQUEST"
	TypeVoucherBilling  Type = "VOUCHER_BILLING"
)

// InitialType is the value an untouched form starts with. It is never used
// as a substitute for an invalid type.
const InitialType = TypeMemorandum

var AllTypes = []Type{TypePayroll, TypeMemorandum, TypePurchaseRequest, TypeVoucherBilling}

func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

func typeNames() []string {
	names := make([]string, len(AllTypes))
	for i, t := range AllTypes {
		names[i] = string(t)
	}
	return names
}

// Amount is the raw amount as typed by the user. It accepts a JSON number or a
// JSON string so partially edited input survives until validation.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return json.Marshal(f)
	}
	return json.Marshal(string(a))
}

// Candidate is the in-progress form. It may be invalid at any time.
type Candidate struct {
	Title  string `json:"title"`
	Amount Amount `json:"amount"`
	Type   Type   `json:"type"`
}

// InitialCandidate is the blank form: empty title, zero amount, InitialType.
func InitialCandidate() Candidate {
	return Candidate{
		Title:  "",
		Amount: "0",
		Type:   InitialType,
	}
}

// Request is a candidate that passed validation. It is only built by Validate.
type Request struct {
	title  string
	amount float64
	kind   Type
}

func (r Request) Title() string   { return r.title }
func (r Request) Amount() float64 { return r.amount }
func (r Request) Type() Type      { return r.kind }

// Submission is the issue-document request body.
type Submission struct {
	Title      string  `json:"title"`
	Amount     float64 `json:"amount"`
	Type       Type    `json:"type"`
	Department string  `json:"department"`
}

// Receipt is what the document API returns for an issued document.
type Receipt struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// IssuedDocument is a request recorded by the document API.
type IssuedDocument struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Amount     float64   `json:"amount"`
	Type       Type      `json:"type"`
	Department string    `json:"department"`
	IssuedAt   time.Time `json:"issued_at"`
}

// ArtifactRef points at the scannable artifact, encoded verbatim into the QR image.
type ArtifactRef string

type TypeOption struct {
	Value   Type   `json:"value"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

// TypeOptions lists the selectable document types in display order.
func TypeOptions() []TypeOption {
	labels := map[Type]string{
		TypePayroll:         "Payroll",
		TypeMemorandum:      "Memorandum",
		TypePurchaseRequest: "Purchase Request",
		TypeVoucherBilling:  "Voucher Billing",
	}
	options := make([]TypeOption, 0, len(AllTypes))
	for _, t := range AllTypes {
		options = append(options, TypeOption{Value: t, Label: labels[t], Default: t == InitialType})
	}
	return options
}
