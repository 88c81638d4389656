package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"go.uber.org/zap"
)

// FallbackProducts is the size of the top products list in the reduced fallback
const FallbackProducts = 5

// Engine runs the configured provider and absorbs its failures into the fallback
type Engine struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an engine. A nil provider always yields the fallback.
func NewEngine(provider Provider, logger *zap.Logger) *Engine {
	return &Engine{
		provider: provider,
		logger:   logger.Named("analytics.engine"),
		now:      time.Now,
	}
}

// NewProvider builds the provider selected by configuration; "none" returns nil
func NewProvider(cfg config.AnalyticsConfig, logger *zap.Logger) Provider {
	switch cnst.AnalyticsProviderType(cfg.Provider) {
	case cnst.AnalyticsHTTP:
		return NewHTTPProvider(cfg.HTTP, logger)
	case cnst.AnalyticsNone:
		return nil
	default:
		return NewLocalProvider(Options{ParetoCap: cfg.ParetoCap, InventoryReference: cfg.InventoryReference})
	}
}

// Compute analyzes a tenant ledger. Provider errors produce the reduced
// fallback flagged as mock; only cancellation of ctx is returned as an error.
func (e *Engine) Compute(ctx context.Context, tenant *database.Tenant, ledger []*database.Transaction) (*Report, error) {
	in := Input{Tenant: tenant, Ledger: ledger, Now: e.now()}
	if e.provider == nil {
		return Fallback(in), nil
	}

	rep, err := e.provider.Compute(ctx, in)
	if err == nil {
		return rep, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}

	e.logger.Warn("analytics provider failed, using fallback",
		zap.String("provider", e.provider.Name()),
		zap.Uint("tenant_id", tenant.ID),
		zap.Error(err))
	return Fallback(in), nil
}

// Fallback computes the reduced deterministic report: KPI and top products by revenue
func Fallback(in Input) *Report {
	kpi := ComputeKPI(in.Ledger, in.Tenant.Currency)
	kpi.Mock = true

	ranked, total := rankProducts(in.Ledger)
	products := rankedShares(ranked, total)
	if len(products) > FallbackProducts {
		products = products[:FallbackProducts]
	}
	pareto := &Pareto{
		Mode:          "top_revenue",
		TotalRevenue:  total,
		TotalProducts: len(ranked),
		Cap:           FallbackProducts,
		Products:      products,
		Mock:          true,
	}
	pareto.ProductsNeeded = len(products)

	return &Report{
		Provider: "fallback",
		Mock:     true,
		KPI:      kpi,
		Pareto:   pareto,
	}
}
