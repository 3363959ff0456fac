package domain

// ============================================================
// Category enumeration
// ============================================================

// Categories is the single list of categories offered by the input forms.
// Draft validation reads it; the aggregator does not, so records carrying
// any other category string still form their own bucket.
type Categories struct {
	Income    []string `json:"income"`
	Expense   []string `json:"expense"`
	Asset     []string `json:"asset"`
	Liability []string `json:"liability"`
}

var defaultCategories = Categories{
	Income: []string{
		"Salary", "Bonus", "Rental", "Freelance", "Investment", "Other",
	},
	Expense: []string{
		"Rent", "Food", "Utilities", "Transport", "Entertainment", "Healthcare", "Shopping", "Other",
	},
	Asset: []string{
		"Cash", "Savings", "Investments", "Real Estate", "Vehicles", "Other Assets",
	},
	Liability: []string{
		"Personal Loans", "Credit Card Debt", "Mortgage", "Car Loans", "Student Loans", "Other Debts",
	},
}

// AllCategories returns a copy of the category table.
func AllCategories() Categories {
	return Categories{
		Income:    append([]string(nil), defaultCategories.Income...),
		Expense:   append([]string(nil), defaultCategories.Expense...),
		Asset:     append([]string(nil), defaultCategories.Asset...),
		Liability: append([]string(nil), defaultCategories.Liability...),
	}
}

// TransactionCategories returns the categories allowed for a transaction type.
func TransactionCategories(t TransactionType) []string {
	switch t {
	case TransactionIncome:
		return defaultCategories.Income
	case TransactionExpense:
		return defaultCategories.Expense
	}
	return nil
}

// AssetLiabilityCategories returns the categories allowed for an asset/liability type.
func AssetLiabilityCategories(t AssetLiabilityType) []string {
	switch t {
	case KindAsset:
		return defaultCategories.Asset
	case KindLiability:
		return defaultCategories.Liability
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
