package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPProvider(t *testing.T) {
	var got requestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{
			"kpi":{"total_revenue":42,"total_transactions":2,"avg_transaction":21,"currency":"CLP"},
			"pareto":{"mode":"tail","products":[{"rank":1,"product_id":"x","revenue":42,"share":1,"cumulative_share":1}]},
			"inventory":{"dead_stock_days":30,"products":[]},
			"alerts":{"count":0,"alerts":[]},
			"peak_times":{"by_hour":[],"by_weekday":[]}
		}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.AnalyticsHTTPConfig{
		URL:    srv.URL,
		APIKey: "secret",
		Paths: config.AnalyticsJSONPaths{
			KPI:       "data.kpi",
			Pareto:    "data.pareto",
			Inventory: "data.inventory",
			Alerts:    "data.alerts",
			PeakTimes: "data.peak_times",
		},
	}, zap.NewNop())

	rep, err := p.Compute(context.Background(), Input{Tenant: testTenant(), Ledger: sampleLedger(), Now: day(2024, 3, 1)})
	require.NoError(t, err)
	assert.Equal(t, "http", rep.Provider)
	assert.Equal(t, 42.0, rep.KPI.TotalRevenue)
	assert.Equal(t, "x", rep.Pareto.Products[0].ProductID)
	assert.Equal(t, uint(1), got.Tenant.ID)
	assert.Len(t, got.Transactions, 7)
}

func TestHTTPProviderUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "incomplete", status: http.StatusOK, body: `{"kpi":{},"pareto":{}}`},
		{name: "wrong shape", status: http.StatusOK, body: `{"kpi":1,"pareto":{},"inventory":{},"alerts":{},"peak_times":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewHTTPProvider(config.AnalyticsHTTPConfig{URL: srv.URL}, zap.NewNop())
			_, err := p.Compute(context.Background(), Input{Tenant: testTenant(), Now: time.Now()})
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		p := NewHTTPProvider(config.AnalyticsHTTPConfig{URL: url, Timeout: time.Second}, zap.NewNop())
		_, err := p.Compute(context.Background(), Input{Tenant: testTenant(), Now: time.Now()})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestEngineFallsBackOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewEngine(NewHTTPProvider(config.AnalyticsHTTPConfig{URL: srv.URL}, zap.NewNop()), zap.NewNop())
	rep, err := e.Compute(context.Background(), testTenant(), sampleLedger())
	require.NoError(t, err)
	assert.True(t, rep.Mock)
	assert.Equal(t, "fallback", rep.Provider)
}
