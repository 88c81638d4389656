package analytics

import (
	"context"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"golang.org/x/sync/errgroup"
)

// Options tune the in-process computations
type Options struct {
	ParetoCap          int
	InventoryReference string // ledger or now
}

// LocalProvider computes every result kind in process
type LocalProvider struct {
	opts Options
}

func NewLocalProvider(opts Options) *LocalProvider {
	if opts.ParetoCap <= 0 {
		opts.ParetoCap = 5
	}
	if opts.InventoryReference == "" {
		opts.InventoryReference = "ledger"
	}
	return &LocalProvider{opts: opts}
}

func (p *LocalProvider) Name() string { return string(cnst.AnalyticsLocal) }

// Compute runs the four independent computations concurrently
func (p *LocalProvider) Compute(ctx context.Context, in Input) (*Report, error) {
	tenant := in.Tenant
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	paretoCap := p.opts.ParetoCap
	if tenant.ParetoCap > 0 {
		paretoCap = tenant.ParetoCap
	}

	rep := &Report{Provider: p.Name()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.KPI = ComputeKPI(in.Ledger, tenant.Currency)
		return ctx.Err()
	})
	g.Go(func() error {
		rep.Pareto = ComputePareto(in.Ledger, tenant.ParetoThreshold, cnst.ParetoMode(tenant.ParetoMode), paretoCap)
		return ctx.Err()
	})
	g.Go(func() error {
		asOf := InventoryAsOf(in.Ledger, p.opts.InventoryReference, now)
		inv := ComputeInventory(in.Ledger, asOf, tenant.DeadStockDays)
		rep.Inventory = inv
		rep.Alerts = DeadStockAlerts(inv)
		return ctx.Err()
	})
	g.Go(func() error {
		rep.PeakTimes = ComputePeakTimes(in.Ledger)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}
