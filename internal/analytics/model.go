package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is a count grouped by a status-like label.
type Bucket struct {
	Label string          `json:"label"`
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// LeadStats summarises visible leads.
type LeadStats struct {
	Total    int      `json:"total"`
	ByStatus []Bucket `json:"by_status"`
}

// PipelineStats summarises visible deals.
type PipelineStats struct {
	OpenCount     int             `json:"open_count"`
	OpenValue     decimal.Decimal `json:"open_value"`
	WeightedValue decimal.Decimal `json:"weighted_value"`
	WonCount      int             `json:"won_count"`
	WonValue      decimal.Decimal `json:"won_value"`
	ByStage       []Bucket        `json:"by_stage"`
}

// ActivityStats counts open work.
type ActivityStats struct {
	Pending  int `json:"pending"`
	Overdue  int `json:"overdue"`
	DueToday int `json:"due_today"`
}

// InvoiceStats summarises receivables.
type InvoiceStats struct {
	Invoiced     decimal.Decimal `json:"invoiced"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	OverdueCount int             `json:"overdue_count"`
	ByStatus     []Bucket        `json:"by_status"`
}

// QuotationStats summarises quotations and how many were won.
type QuotationStats struct {
	ByStatus       []Bucket        `json:"by_status"`
	AcceptanceRate decimal.Decimal `json:"acceptance_rate"`
}

// RevenuePoint is the sum of payments received in one month.
type RevenuePoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// Dashboard is the payload of GET /analytics/dashboard.
type Dashboard struct {
	Leads       LeadStats      `json:"leads"`
	Deals       PipelineStats  `json:"deals"`
	Activities  ActivityStats  `json:"activities"`
	Invoices    InvoiceStats   `json:"invoices"`
	Quotations  QuotationStats `json:"quotations"`
	Revenue     []RevenuePoint `json:"revenue"`
	GeneratedAt time.Time      `json:"generated_at"`
}
