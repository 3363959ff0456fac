package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Dashboard metrics
// ============================================================

// MonthlyPoint is the income/expense total of one month bucket.
type MonthlyPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// CategoryAmount is the expense total of one category.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Metrics is the dashboard summary derived from the two record collections.
// It is always rebuilt from scratch; nothing in it survives a recomputation.
type Metrics struct {
	TotalIncome        decimal.Decimal  `json:"totalIncome"`
	TotalExpenses      decimal.Decimal  `json:"totalExpenses"`
	TotalAssets        decimal.Decimal  `json:"totalAssets"`
	TotalLiabilities   decimal.Decimal  `json:"totalLiabilities"`
	NetWorth           decimal.Decimal  `json:"netWorth"`
	MonthlyData        []MonthlyPoint   `json:"monthlyData"`
	ExpensesByCategory []CategoryAmount `json:"expensesByCategory"`
}

// EmptyMetrics returns all-zero metrics with empty, non-nil sequences.
func EmptyMetrics() Metrics {
	return Metrics{
		TotalIncome:        decimal.Zero,
		TotalExpenses:      decimal.Zero,
		TotalAssets:        decimal.Zero,
		TotalLiabilities:   decimal.Zero,
		NetWorth:           decimal.Zero,
		MonthlyData:        []MonthlyPoint{},
		ExpensesByCategory: []CategoryAmount{},
	}
}

// Equal compares two Metrics numerically, field by field and in order.
func (m Metrics) Equal(o Metrics) bool {
	if !m.TotalIncome.Equal(o.TotalIncome) ||
		!m.TotalExpenses.Equal(o.TotalExpenses) ||
		!m.TotalAssets.Equal(o.TotalAssets) ||
		!m.TotalLiabilities.Equal(o.TotalLiabilities) ||
		!m.NetWorth.Equal(o.NetWorth) {
		return false
	}
	if len(m.MonthlyData) != len(o.MonthlyData) || len(m.ExpensesByCategory) != len(o.ExpensesByCategory) {
		return false
	}
	for i, p := range m.MonthlyData {
		q := o.MonthlyData[i]
		if p.Month != q.Month || !p.Income.Equal(q.Income) || !p.Expenses.Equal(q.Expenses) {
			return false
		}
	}
	for i, c := range m.ExpensesByCategory {
		d := o.ExpensesByCategory[i]
		if c.Category != d.Category || !c.Amount.Equal(d.Amount) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no slices with m.
func (m Metrics) Clone() Metrics {
	out := m
	out.MonthlyData = append([]MonthlyPoint{}, m.MonthlyData...)
	out.ExpensesByCategory = append([]CategoryAmount{}, m.ExpensesByCategory...)
	return out
}

// ============================================================
// Synchronizer state
// ============================================================

// SyncPhase is the state of a session's synchronizer.
type SyncPhase string

const (
	PhaseIdle       SyncPhase = "idle"
	PhaseMutating   SyncPhase = "mutating"
	PhaseRefreshing SyncPhase = "refreshing"
)

// SyncStatus is the synchronizer's view of its own state.
type SyncStatus struct {
	Phase         SyncPhase  `json:"phase"`
	InFlight      int        `json:"inFlight"`
	Loaded        bool       `json:"loaded"`
	LastRefreshAt *time.Time `json:"lastRefreshAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// DashboardStatus is returned by GET /v1/dashboard/status: the sync state
// plus who the dashboard belongs to, for the UI header.
type DashboardStatus struct {
	SyncStatus
	Subject   string     `json:"subject,omitempty"`
	Name      string     `json:"name,omitempty"`
	ExpiresAt *time.Time `json:"sessionExpiresAt,omitempty"`
}

// EventType tells subscribers what a MetricsEvent carries.
type EventType string

const (
	EventMetrics EventType = "metrics"
	EventError   EventType = "error"
)

// MetricsEvent is delivered to subscribers on every publish or failure.
// On failure Metrics still holds the last published value.
type MetricsEvent struct {
	Type      EventType `json:"type"`
	Metrics   Metrics   `json:"metrics"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncStats is returned by GET /v1/dashboard/stats.
type SyncStats struct {
	Refreshes         int64   `json:"refreshes"`
	Publishes         int64   `json:"publishes"`
	StoreErrors       int64   `json:"storeErrors"`
	ActiveSessions    int64   `json:"activeSessions"`
	PublishedNetWorth float64 `json:"publishedNetWorth"`
}
