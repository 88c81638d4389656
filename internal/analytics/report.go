package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
)

// ErrUnavailable is returned by a provider that cannot be reached or answers unusably
var ErrUnavailable = errors.New("analytics provider unavailable")

// Input is everything a provider needs to analyze one tenant
type Input struct {
	Tenant *database.Tenant
	Ledger []*database.Transaction
	Now    time.Time
}

// Provider computes analytics for a tenant ledger
type Provider interface {
	Name() string
	Compute(ctx context.Context, in Input) (*Report, error)
}

// Report holds one payload per result kind. Kinds a provider did not compute are nil.
type Report struct {
	Provider  string     `json:"provider"`
	Mock      bool       `json:"mock"`
	KPI       *KPI       `json:"kpi,omitempty"`
	Pareto    *Pareto    `json:"pareto,omitempty"`
	Inventory *Inventory `json:"inventory,omitempty"`
	Alerts    *Alerts    `json:"alerts,omitempty"`
	PeakTimes *PeakTimes `json:"peak_times,omitempty"`
}

// Payloads returns the computed payloads keyed by result kind, in publishing order
func (r *Report) Payloads() []Payload {
	var out []Payload
	if r.KPI != nil {
		out = append(out, Payload{Kind: database.KindKPI, Value: r.KPI})
	}
	if r.Pareto != nil {
		out = append(out, Payload{Kind: database.KindPareto, Value: r.Pareto})
	}
	if r.Alerts != nil {
		out = append(out, Payload{Kind: database.KindAlert, Value: r.Alerts})
	}
	if r.Inventory != nil {
		out = append(out, Payload{Kind: database.KindInventory, Value: r.Inventory})
	}
	if r.PeakTimes != nil {
		out = append(out, Payload{Kind: database.KindPeakTimes, Value: r.PeakTimes})
	}
	return out
}

// Payload is one result kind and its value
type Payload struct {
	Kind  database.ResultKind
	Value any
}

// KPI aggregates
type KPI struct {
	TotalRevenue      float64    `json:"total_revenue"`
	TotalTransactions int        `json:"total_transactions"`
	AvgTransaction    float64    `json:"avg_transaction"`
	TotalQuantity     float64    `json:"total_quantity"`
	Currency          string     `json:"currency"`
	PeriodStart       *time.Time `json:"period_start,omitempty"`
	PeriodEnd         *time.Time `json:"period_end,omitempty"`
	Mock              bool       `json:"mock"`
}

// ParetoProduct is one ranked product
type ParetoProduct struct {
	Rank            int     `json:"rank"`
	ProductID       string  `json:"product_id"`
	Revenue         float64 `json:"revenue"`
	Share           float64 `json:"share"`
	CumulativeShare float64 `json:"cumulative_share"`
}

// Pareto is the leading set of products carrying the target revenue share
type Pareto struct {
	Mode           string          `json:"mode"`
	Threshold      float64         `json:"threshold"`
	TargetShare    float64         `json:"target_share"`
	TotalRevenue   float64         `json:"total_revenue"`
	TotalProducts  int             `json:"total_products"`
	ProductsNeeded int             `json:"products_needed"`
	Cap            int             `json:"cap"`
	Truncated      bool            `json:"truncated"`
	Products       []ParetoProduct `json:"products"`
	Mock           bool            `json:"mock"`
}

// ProductActivity is the sales recency of one product
type ProductActivity struct {
	ProductID         string    `json:"product_id"`
	LastSale          time.Time `json:"last_sale"`
	DaysSinceLastSale int       `json:"days_since_last_sale"`
	TotalQuantity     float64   `json:"total_quantity"`
	TotalRevenue      float64   `json:"total_revenue"`
	DeadStock         bool      `json:"dead_stock"`
}

// Inventory lists every product by recency
type Inventory struct {
	AsOf           time.Time         `json:"as_of"`
	DeadStockDays  int               `json:"dead_stock_days"`
	DeadStockCount int               `json:"dead_stock_count"`
	Products       []ProductActivity `json:"products"`
}

// Alert is one actionable finding
type Alert struct {
	Type              string `json:"type"`
	Severity          string `json:"severity"`
	ProductID         string `json:"product_id"`
	DaysSinceLastSale int    `json:"days_since_last_sale"`
	Message           string `json:"message"`
}

// Alerts groups the alerts of one analysis
type Alerts struct {
	Count  int     `json:"count"`
	Alerts []Alert `json:"alerts"`
}

// Bucket is one histogram bin
type Bucket struct {
	Index        int     `json:"index"`
	Label        string  `json:"label"`
	Transactions int     `json:"transactions"`
	Revenue      float64 `json:"revenue"`
}

// PeakTimes histograms by hour of day and day of week (0 is Monday)
type PeakTimes struct {
	ByHour            []Bucket `json:"by_hour"`
	ByWeekday         []Bucket `json:"by_weekday"`
	TimedTransactions int      `json:"timed_transactions"`
	PeakHour          *int     `json:"peak_hour"`
	PeakWeekday       *int     `json:"peak_weekday"`
}
