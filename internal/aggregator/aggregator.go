// Package aggregator turns the raw record collections into dashboard metrics.
//
// ComputeMetrics is pure: no I/O, no retained state, no validation. Input
// records are trusted to be well formed; the Record Store and the input
// forms are responsible for that.
package aggregator

import (
	"github.com/boddenberg/networth-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ComputeMetrics builds the full Metrics value from both collections.
// Neither slice needs to be sorted and either may be nil.
func ComputeMetrics(transactions []domain.TransactionRecord, assetsLiabilities []domain.AssetLiabilityRecord) domain.Metrics {
	m := domain.EmptyMetrics()

	m.TotalIncome = sumTransactions(transactions, domain.TransactionIncome)
	m.TotalExpenses = sumTransactions(transactions, domain.TransactionExpense)
	m.TotalAssets = sumAssetsLiabilities(assetsLiabilities, domain.KindAsset)
	m.TotalLiabilities = sumAssetsLiabilities(assetsLiabilities, domain.KindLiability)
	m.NetWorth = m.TotalAssets.Sub(m.TotalLiabilities)

	m.MonthlyData = monthlyTrend(transactions)
	m.ExpensesByCategory = expensesByCategory(transactions)

	return m
}

func sumTransactions(transactions []domain.TransactionRecord, t domain.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if tx.Type == t {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

func sumAssetsLiabilities(items []domain.AssetLiabilityRecord, t domain.AssetLiabilityType) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Type == t {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// monthlyTrend buckets transactions by month abbreviation, ignoring the year.
// Buckets appear in the order their month is first seen in the input.
func monthlyTrend(transactions []domain.TransactionRecord) []domain.MonthlyPoint {
	points := []domain.MonthlyPoint{}
	index := make(map[string]int)

	for _, tx := range transactions {
		if !tx.Type.Valid() {
			continue
		}
		month := tx.Date.MonthAbbrev()
		i, ok := index[month]
		if !ok {
			i = len(points)
			index[month] = i
			points = append(points, domain.MonthlyPoint{
				Month:    month,
				Income:   decimal.Zero,
				Expenses: decimal.Zero,
			})
		}

		switch tx.Type {
		case domain.TransactionIncome:
			points[i].Income = points[i].Income.Add(tx.Amount)
		case domain.TransactionExpense:
			points[i].Expenses = points[i].Expenses.Add(tx.Amount)
		}
	}
	return points
}

// expensesByCategory groups expense amounts by category in first-seen order.
// Categories are not checked against the category table.
func expensesByCategory(transactions []domain.TransactionRecord) []domain.CategoryAmount {
	out := []domain.CategoryAmount{}
	index := make(map[string]int)

	for _, tx := range transactions {
		if tx.Type != domain.TransactionExpense {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, domain.CategoryAmount{Category: tx.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	return out
}
