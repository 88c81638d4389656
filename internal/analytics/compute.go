package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
)

const shareEpsilon = 1e-9

// ComputeKPI aggregates revenue, count and quantity. An empty ledger averages to zero.
func ComputeKPI(ledger []*database.Transaction, currency string) *KPI {
	k := &KPI{Currency: currency, TotalTransactions: len(ledger)}
	for _, t := range ledger {
		k.TotalRevenue += t.Revenue
		k.TotalQuantity += t.Quantity
		if k.PeriodStart == nil || t.Date.Before(*k.PeriodStart) {
			d := t.Date
			k.PeriodStart = &d
		}
		if k.PeriodEnd == nil || t.Date.After(*k.PeriodEnd) {
			d := t.Date
			k.PeriodEnd = &d
		}
	}
	if k.TotalTransactions > 0 {
		k.AvgTransaction = k.TotalRevenue / float64(k.TotalTransactions)
	}
	return k
}

type productTotal struct {
	id      string
	revenue float64
}

// rankProducts sums revenue per product, ordered by revenue descending then product ascending
func rankProducts(ledger []*database.Transaction) ([]productTotal, float64) {
	sums := make(map[string]float64)
	for _, t := range ledger {
		sums[t.ProductID] += t.Revenue
	}
	ranked := make([]productTotal, 0, len(sums))
	var total float64
	for id, rev := range sums {
		ranked = append(ranked, productTotal{id: id, revenue: rev})
		total += rev
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].revenue != ranked[j].revenue {
			return ranked[i].revenue > ranked[j].revenue
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked, total
}

// TargetShare converts a tenant threshold into the cumulative share the leading set must reach
func TargetShare(threshold float64, mode cnst.ParetoMode) float64 {
	if mode == cnst.ParetoHead {
		return threshold
	}
	return 1 - threshold
}

// ComputePareto reports the smallest leading set of products whose revenue share
// reaches the target, capped at maxProducts entries
func ComputePareto(ledger []*database.Transaction, threshold float64, mode cnst.ParetoMode, maxProducts int) *Pareto {
	if mode != cnst.ParetoHead {
		mode = cnst.ParetoTail
	}
	ranked, total := rankProducts(ledger)
	p := &Pareto{
		Mode:          string(mode),
		Threshold:     threshold,
		TargetShare:   TargetShare(threshold, mode),
		TotalRevenue:  total,
		TotalProducts: len(ranked),
		Cap:           maxProducts,
		Products:      []ParetoProduct{},
	}

	products := rankedShares(ranked, total)
	if total > 0 {
		p.ProductsNeeded = len(products)
		for i, pp := range products {
			if pp.CumulativeShare+shareEpsilon >= p.TargetShare {
				p.ProductsNeeded = i + 1
				break
			}
		}
	}

	n := p.ProductsNeeded
	if total <= 0 {
		n = len(products)
	}
	if maxProducts > 0 && n > maxProducts {
		n = maxProducts
		p.Truncated = p.ProductsNeeded > maxProducts
	}
	p.Products = products[:n]
	return p
}

func rankedShares(ranked []productTotal, total float64) []ParetoProduct {
	out := make([]ParetoProduct, len(ranked))
	var cum float64
	for i, r := range ranked {
		var share float64
		if total > 0 {
			share = r.revenue / total
		}
		cum += share
		out[i] = ParetoProduct{
			Rank:            i + 1,
			ProductID:       r.id,
			Revenue:         r.revenue,
			Share:           roundShare(share),
			CumulativeShare: roundShare(cum),
		}
	}
	return out
}

// roundShare keeps shares stable across summation orders
func roundShare(v float64) float64 {
	return math.Round(v*1e12) / 1e12
}

// InventoryAsOf returns the reference date for recency: the latest ledger date, or now
func InventoryAsOf(ledger []*database.Transaction, reference string, now time.Time) time.Time {
	if reference == "now" || len(ledger) == 0 {
		return now
	}
	latest := ledger[0].Date
	for _, t := range ledger[1:] {
		if t.Date.After(latest) {
			latest = t.Date
		}
	}
	return latest
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeInventory flags products whose last sale is older than deadStockDays
func ComputeInventory(ledger []*database.Transaction, asOf time.Time, deadStockDays int) *Inventory {
	byProduct := make(map[string]*ProductActivity)
	for _, t := range ledger {
		pa, ok := byProduct[t.ProductID]
		if !ok {
			pa = &ProductActivity{ProductID: t.ProductID, LastSale: t.Date}
			byProduct[t.ProductID] = pa
		}
		if t.Date.After(pa.LastSale) {
			pa.LastSale = t.Date
		}
		pa.TotalQuantity += t.Quantity
		pa.TotalRevenue += t.Revenue
	}

	inv := &Inventory{AsOf: asOf, DeadStockDays: deadStockDays, Products: make([]ProductActivity, 0, len(byProduct))}
	ref := dayOf(asOf)
	for _, pa := range byProduct {
		days := int(ref.Sub(dayOf(pa.LastSale)).Hours() / 24)
		if days < 0 {
			days = 0
		}
		pa.DaysSinceLastSale = days
		pa.DeadStock = days > deadStockDays
		if pa.DeadStock {
			inv.DeadStockCount++
		}
		inv.Products = append(inv.Products, *pa)
	}
	sort.Slice(inv.Products, func(i, j int) bool {
		a, b := inv.Products[i], inv.Products[j]
		if a.DaysSinceLastSale != b.DaysSinceLastSale {
			return a.DaysSinceLastSale > b.DaysSinceLastSale
		}
		return a.ProductID < b.ProductID
	})
	return inv
}

// DeadStockAlerts turns dead stock candidates into alerts
func DeadStockAlerts(inv *Inventory) *Alerts {
	a := &Alerts{Alerts: []Alert{}}
	for _, p := range inv.Products {
		if !p.DeadStock {
			continue
		}
		severity := "medium"
		if p.DaysSinceLastSale > 2*inv.DeadStockDays {
			severity = "high"
		}
		a.Alerts = append(a.Alerts, Alert{
			Type:              "dead_stock",
			Severity:          severity,
			ProductID:         p.ProductID,
			DaysSinceLastSale: p.DaysSinceLastSale,
			Message:           fmt.Sprintf("%s has not sold in %d days", p.ProductID, p.DaysSinceLastSale),
		})
	}
	a.Count = len(a.Alerts)
	return a
}

var weekdayLabels = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ComputePeakTimes buckets transactions by hour (when known) and weekday
func ComputePeakTimes(ledger []*database.Transaction) *PeakTimes {
	pt := &PeakTimes{ByHour: make([]Bucket, 24), ByWeekday: make([]Bucket, 7)}
	for h := range pt.ByHour {
		pt.ByHour[h] = Bucket{Index: h, Label: fmt.Sprintf("%02d:00", h)}
	}
	for d := range pt.ByWeekday {
		pt.ByWeekday[d] = Bucket{Index: d, Label: weekdayLabels[d]}
	}

	for _, t := range ledger {
		wd := t.Weekday
		if wd < 0 || wd > 6 {
			wd = (int(t.Date.Weekday()) + 6) % 7
		}
		pt.ByWeekday[wd].Transactions++
		pt.ByWeekday[wd].Revenue += t.Revenue
		if t.Hour != nil && *t.Hour >= 0 && *t.Hour < 24 {
			pt.ByHour[*t.Hour].Transactions++
			pt.ByHour[*t.Hour].Revenue += t.Revenue
			pt.TimedTransactions++
		}
	}

	if pt.TimedTransactions > 0 {
		h := argmax(pt.ByHour)
		pt.PeakHour = &h
	}
	if len(ledger) > 0 {
		d := argmax(pt.ByWeekday)
		pt.PeakWeekday = &d
	}
	return pt
}

// argmax returns the busiest bucket, the lowest index on ties
func argmax(buckets []Bucket) int {
	best := 0
	for i, b := range buckets {
		if b.Transactions > buckets[best].Transactions {
			best = i
		}
	}
	return best
}
