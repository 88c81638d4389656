package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/pkg/trace"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HTTPProvider delegates the analysis to an external service. Every failure,
// including an incomplete answer, is reported as ErrUnavailable.
type HTTPProvider struct {
	client *http.Client
	url    string
	apiKey string
	paths  config.AnalyticsJSONPaths
	logger *zap.Logger
}

func NewHTTPProvider(cfg config.AnalyticsHTTPConfig, logger *zap.Logger) *HTTPProvider {
	paths := cfg.Paths
	if paths.KPI == "" {
		paths.KPI = "kpi"
	}
	if paths.Pareto == "" {
		paths.Pareto = "pareto"
	}
	if paths.Inventory == "" {
		paths.Inventory = "inventory"
	}
	if paths.Alerts == "" {
		paths.Alerts = "alerts"
	}
	if paths.PeakTimes == "" {
		paths.PeakTimes = "peak_times"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		paths:  paths,
		logger: logger.Named("analytics.http"),
	}
}

func (p *HTTPProvider) Name() string { return string(cnst.AnalyticsHTTP) }

type requestTenant struct {
	ID              uint    `json:"id"`
	Currency        string  `json:"currency"`
	ParetoThreshold float64 `json:"pareto_threshold"`
	ParetoMode      string  `json:"pareto_mode"`
	ParetoCap       int     `json:"pareto_cap"`
	DeadStockDays   int     `json:"dead_stock_days"`
}

type requestBody struct {
	Tenant       requestTenant           `json:"tenant"`
	AsOf         time.Time               `json:"as_of"`
	Transactions []*database.Transaction `json:"transactions"`
}

func (p *HTTPProvider) Compute(ctx context.Context, in Input) (rep *Report, err error) {
	scope := trace.Tracer(cnst.TraceAnalytics).Start(ctx, cnst.SpanProviderRequest).
		WithAttrs(attribute.String(cnst.AttrProviderURL, p.url))
	defer func() {
		scope.Fail(err)
		scope.End()
	}()
	ctx = scope.Ctx

	body, err := json.Marshal(requestBody{
		Tenant: requestTenant{
			ID:              in.Tenant.ID,
			Currency:        in.Tenant.Currency,
			ParetoThreshold: in.Tenant.ParetoThreshold,
			ParetoMode:      in.Tenant.ParetoMode,
			ParetoCap:       in.Tenant.ParetoCap,
			DeadStockDays:   in.Tenant.DeadStockDays,
		},
		AsOf:         in.Now,
		Transactions: in.Ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	scope.WithAttrs(attribute.Int(cnst.AttrHTTPStatus, resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: response is not json", ErrUnavailable)
	}

	rep = &Report{Provider: p.Name()}
	fields := []struct {
		path   string
		target any
	}{
		{p.paths.KPI, &rep.KPI},
		{p.paths.Pareto, &rep.Pareto},
		{p.paths.Inventory, &rep.Inventory},
		{p.paths.Alerts, &rep.Alerts},
		{p.paths.PeakTimes, &rep.PeakTimes},
	}
	for _, f := range fields {
		res := gjson.GetBytes(data, f.path)
		if !res.Exists() || !res.IsObject() {
			return nil, fmt.Errorf("%w: response has no object at %q", ErrUnavailable, f.path)
		}
		if err := json.Unmarshal([]byte(res.Raw), f.target); err != nil {
			return nil, fmt.Errorf("%w: decode %q: %v", ErrUnavailable, f.path, err)
		}
	}

	p.logger.Debug("analytics computed by provider", zap.Uint("tenant_id", in.Tenant.ID), zap.Int("transactions", len(in.Ledger)))
	return rep, nil
}
