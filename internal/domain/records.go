// Package domain defines the core entities of the networth dashboard BFA.
// These models are independent of the Record Store and represent the
// canonical data structures used by the aggregator, synchronizer and handlers.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The Record Store and the dashboard both speak plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ============================================================
// Identifiers & dates
// ============================================================

// RecordID is the opaque identifier assigned by the Record Store.
// The Record Store may key records by integer or string; both decode here.
type RecordID string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

func (id RecordID) String() string { return string(id) }

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
}

// Date is a calendar date. The time-of-day and zone of the source value are
// discarded once the calendar day has been read.
type Date struct {
	time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads YYYY-MM-DD or a timestamp, keeping the calendar day as written.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return NewDate(y, m, d), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// MonthAbbrev returns the locale-independent short month name ("Jan".."Dec").
func (d Date) MonthAbbrev() string {
	return d.Month().String()[:3]
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON encodes the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON decodes YYYY-MM-DD or RFC 3339 strings.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ============================================================
// Transactions
// ============================================================

// TransactionType discriminates income from expense.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// TransactionRecord is a single income or expense entry as served by the Record Store.
type TransactionRecord struct {
	ID          RecordID        `json:"id"`
	Date        Date            `json:"date"`
	Type        TransactionType `json:"transaction_type"`
	Category    string          `json:"transaction_category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ============================================================
// Assets & liabilities
// ============================================================

// AssetLiabilityType discriminates assets from liabilities.
type AssetLiabilityType string

const (
	KindAsset     AssetLiabilityType = "Asset"
	KindLiability AssetLiabilityType = "Liability"
)

// Valid reports whether t is a known asset/liability type.
func (t AssetLiabilityType) Valid() bool {
	return t == KindAsset || t == KindLiability
}

// AssetLiabilityRecord is a balance-sheet entry as served by the Record Store.
type AssetLiabilityRecord struct {
	ID          RecordID           `json:"id"`
	Type        AssetLiabilityType `json:"type"`
	Category    string             `json:"category"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
	Date        Date               `json:"date"`
}
