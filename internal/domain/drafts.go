package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Drafts (records before the Record Store assigns an id)
// ============================================================

// DraftKind names the record collection a draft belongs to.
type DraftKind string

const (
	DraftTransaction    DraftKind = "transaction"
	DraftAssetLiability DraftKind = "asset_liability"
)

// Draft is a record submitted for creation. Implemented only by
// TransactionDraft and AssetLiabilityDraft.
type Draft interface {
	Kind() DraftKind
	Validate() error
	sealed()
}

// TransactionDraft carries the fields of a new transaction.
type TransactionDraft struct {
	Type        TransactionType `json:"transaction_type"`
	Category    string          `json:"transaction_category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
}

func (TransactionDraft) Kind() DraftKind { return DraftTransaction }
func (TransactionDraft) sealed()         {}

// Validate checks the draft against the category table.
func (d TransactionDraft) Validate() error {
	if !d.Type.Valid() {
		return &ErrValidation{Field: "transaction_type", Message: fmt.Sprintf("must be %q or %q", TransactionIncome, TransactionExpense)}
	}
	if err := validateCommon(d.Category, "transaction_category", TransactionCategories(d.Type), d.Amount, d.Date); err != nil {
		return err
	}
	return nil
}

// AssetLiabilityDraft carries the fields of a new asset or liability.
type AssetLiabilityDraft struct {
	Type        AssetLiabilityType `json:"type"`
	Category    string             `json:"category"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
	Date        Date               `json:"date"`
}

func (AssetLiabilityDraft) Kind() DraftKind { return DraftAssetLiability }
func (AssetLiabilityDraft) sealed()         {}

// Validate checks the draft against the category table.
func (d AssetLiabilityDraft) Validate() error {
	if !d.Type.Valid() {
		return &ErrValidation{Field: "type", Message: fmt.Sprintf("must be %q or %q", KindAsset, KindLiability)}
	}
	return validateCommon(d.Category, "category", AssetLiabilityCategories(d.Type), d.Amount, d.Date)
}

func validateCommon(category, categoryField string, allowed []string, amount decimal.Decimal, date Date) error {
	if strings.TrimSpace(category) == "" {
		return &ErrValidation{Field: categoryField, Message: "required"}
	}
	if !contains(allowed, category) {
		return &ErrValidation{Field: categoryField, Message: fmt.Sprintf("unknown category %q", category)}
	}
	if amount.IsNegative() {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if date.IsZero() {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	return nil
}
