package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trogers1052/portfolio-analytics/internal/compute"
	"github.com/trogers1052/portfolio-analytics/internal/database"
	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/pricing"
)

type riskCall struct {
	symbol, benchmark string
	start, end        time.Time
	riskFreeRate      float64
}

type mockAnalytics struct {
	mu sync.Mutex

	attribution *models.PortfolioAttribution
	snapshot    *models.RiskSnapshot
	err         error

	periodReturns []float64
	riskCalls     []riskCall
}

func (m *mockAnalytics) Attribute(ctx context.Context, holdings []models.Holding, periodReturn float64) (*models.PortfolioAttribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periodReturns = append(m.periodReturns, periodReturn)
	if m.err != nil {
		return nil, m.err
	}
	return &models.PortfolioAttribution{TotalValue: float64(len(holdings))}, nil
}

func (m *mockAnalytics) PortfolioAttribution(ctx context.Context, periodReturn float64) (*models.PortfolioAttribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periodReturns = append(m.periodReturns, periodReturn)
	return m.attribution, m.err
}

func (m *mockAnalytics) SymbolRisk(ctx context.Context, symbol, benchmark string, start, end time.Time, riskFreeRate float64) (*models.RiskSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riskCalls = append(m.riskCalls, riskCall{symbol, benchmark, start, end, riskFreeRate})
	return m.snapshot, m.err
}

func newTestServer(t *testing.T, analytics Analytics) http.Handler {
	t.Helper()
	h := NewHandler(analytics, compute.NewDispatcher(nil, compute.Options{}), Defaults{
		Benchmark:    "SPY",
		LookbackDays: 365,
		RiskFreeRate: 0.0001,
	}, zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC) }
	return SetupRoutes(h)
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func atmCall() map[string]interface{} {
	return map[string]interface{}{
		"spot_price":     100.0,
		"strike_price":   100.0,
		"time_to_expiry": 1.0,
		"volatility":     0.2,
		"risk_free_rate": 0.05,
		"option_type":    "call",
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "unloaded", body["compute_state"])
	assert.Equal(t, compute.ReferenceName, body["compute_backend"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})
	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionGreeks(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	t.Run("prices an at the money call", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", atmCall())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var g models.GreeksResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
		assert.InDelta(t, 10.4506, g.BlackScholesPrice, 1e-3)
		assert.InDelta(t, 0.6368, g.Delta, 1e-3)
	})

	t.Run("zero expiry is rejected", func(t *testing.T) {
		c := atmCall()
		c["time_to_expiry"] = 0.0
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("zero volatility is rejected", func(t *testing.T) {
		c := atmCall()
		c["volatility"] = 0.0
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative spot is invalid input", func(t *testing.T) {
		c := atmCall()
		c["spot_price"] = -1.0
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "spot_price")
	})

	t.Run("unknown option type is invalid input", func(t *testing.T) {
		c := atmCall()
		c["option_type"] = "straddle"
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/greeks", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOptionChain(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	req := atmCall()
	req["strikes"] = []float64{90, 100, 110}
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/chain", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entries []pricing.ChainEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, pricing.MoneynessITM, entries[0].Moneyness)
	assert.Equal(t, pricing.MoneynessATM, entries[1].Moneyness)
	assert.Equal(t, pricing.MoneynessOTM, entries[2].Moneyness)

	t.Run("strikes are required", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/chain", atmCall())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestImpliedVolatility(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	t.Run("recovers the pricing volatility", func(t *testing.T) {
		req := atmCall()
		req["premium"] = 10.4506
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/implied-volatility", req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]float64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.InDelta(t, 0.2, body["implied_volatility"], 1e-3)
	})

	t.Run("unreachable premium is unprocessable", func(t *testing.T) {
		req := atmCall()
		req["premium"] = 500.0
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/implied-volatility", req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("zero premium is invalid input", func(t *testing.T) {
		req := atmCall()
		req["premium"] = 0.0
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/options/implied-volatility", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func sampleHoldings() []models.Holding {
	return []models.Holding{
		{Symbol: "AAPL", Quantity: 100, AverageCost: 150, CurrentPrice: 178.5, CurrentValue: 17850, UnrealizedPnl: 2850, Sector: "Technology", AssetClass: models.AssetClassEquity},
		{Symbol: "XOM", Quantity: 50, AverageCost: 110, CurrentPrice: 99, CurrentValue: 4950, UnrealizedPnl: -550, Sector: "Energy", AssetClass: models.AssetClassEquity},
		{Symbol: "BND", Quantity: 40, AverageCost: 75, CurrentPrice: 75, CurrentValue: 3000, AssetClass: models.AssetClassETF},
	}
}

func TestAttributionEndpoints(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	t.Run("holdings are attributed in input order", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/holdings",
			map[string]interface{}{"holdings": sampleHoldings()})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var records []models.AttributionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 3)
		assert.Equal(t, "AAPL", records[0].Key)
		assert.InDelta(t, 17850.0/25800*100, records[0].Weight, 1e-9)
		assert.InDelta(t, 19, records[0].Return, 1e-9)
	})

	t.Run("records can be sorted", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/holdings", map[string]interface{}{
			"holdings": sampleHoldings(),
			"sort_by":  "return",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var records []models.AttributionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 3)
		assert.Equal(t, []string{"XOM", "BND", "AAPL"}, []string{records[0].Key, records[1].Key, records[2].Key})
	})

	t.Run("sectors respect the filter", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/sectors", map[string]interface{}{
			"holdings": sampleHoldings(),
			"filter":   map[string]interface{}{"sectors": []string{"Technology", "Uncategorized"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var records []models.AttributionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.Equal(t, "Technology", records[0].Key)
		assert.Equal(t, models.UncategorizedSector, records[1].Key)
		assert.InDelta(t, 100, records[0].Weight+records[1].Weight, 1e-9)
	})

	t.Run("asset classes group etfs separately", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/asset-classes",
			map[string]interface{}{"holdings": sampleHoldings()})
		require.Equal(t, http.StatusOK, rec.Code)

		var records []models.AttributionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.Equal(t, 2, records[0].HoldingsCount)
	})

	t.Run("negative value is invalid input", func(t *testing.T) {
		bad := sampleHoldings()
		bad[0].CurrentValue = -1
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/holdings",
			map[string]interface{}{"holdings": bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAttributionSummary(t *testing.T) {
	analytics := &mockAnalytics{}
	srv := newTestServer(t, analytics)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/summary", map[string]interface{}{
		"holdings":      sampleHoldings(),
		"period_return": 12.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{12.5}, analytics.periodReturns)

	var result models.PortfolioAttribution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3.0, result.TotalValue)
}

func TestBrinson(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/brinson", map[string]float64{
		"portfolio_weight": 0.333,
		"benchmark_weight": 0.25,
		"portfolio_return": 7.777,
		"benchmark_return": 5.555,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BrinsonResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0.46, result.Allocation)
	assert.Equal(t, 0.74, result.Selection)
	assert.Equal(t, 0.18, result.Interaction)
	assert.Equal(t, 1.39, result.Total)
}

func TestBenchmarkReturn(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/attribution/benchmark-return?annualized_return=10&period=2y", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Period          string  `json:"period"`
		BenchmarkReturn float64 `json:"benchmark_return"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2y", body.Period)
	assert.InDelta(t, 20, body.BenchmarkReturn, 1e-9)

	t.Run("unknown period", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/attribution/benchmark-return?annualized_return=10&period=7y", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing return", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/attribution/benchmark-return", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBenchmarkComparison(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	t.Run("explicit portfolio return", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/benchmark-comparison", map[string]interface{}{
			"holdings":          sampleHoldings(),
			"portfolio_return":  15,
			"annualized_return": 5,
			"period":            "1y",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var c models.BenchmarkComparison
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
		assert.InDelta(t, 5, c.BenchmarkReturn, 1e-9)
		assert.InDelta(t, 10, c.ExcessReturn, 1e-9)
		assert.InDelta(t, 200, c.ExcessReturnPercent, 1e-9)
		require.Len(t, c.SectorOutperformance, 1)
		assert.Equal(t, "Technology", c.SectorOutperformance[0].Key)
		assert.Equal(t, "AAPL", c.SectorOutperformance[0].TopHolding)
		require.Len(t, c.SectorUnderperformance, 2)
		assert.Equal(t, models.UncategorizedSector, c.SectorUnderperformance[0].Key)
		assert.Equal(t, "Energy", c.SectorUnderperformance[1].Key)
	})

	t.Run("portfolio return defaults to total contribution", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/benchmark-comparison", map[string]interface{}{
			"holdings":          sampleHoldings(),
			"annualized_return": 0,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var c models.BenchmarkComparison
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
		expected := (17850*19.0 + 4950*-10.0) / 25800
		assert.InDelta(t, expected, c.PortfolioReturn, 1e-9)
		assert.Equal(t, "1y", c.Period)
		assert.Equal(t, 0.0, c.ExcessReturnPercent)
	})

	t.Run("unknown period", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/attribution/benchmark-comparison", map[string]interface{}{
			"holdings": sampleHoldings(),
			"period":   "7y",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRiskMetrics(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{})

	t.Run("computes all five statistics", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/risk/metrics", map[string]interface{}{
			"portfolio_returns": []float64{0.01, -0.02, 0.03, 0.01},
			"benchmark_returns": []float64{0.01, -0.02, 0.03, 0.01},
			"values":            []float64{100, 101, 99, 102, 103},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var m models.RiskMetrics
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
		assert.InDelta(t, 1, m.Correlation, 1e-9)
		assert.InDelta(t, 1, m.Beta, 1e-9)
		assert.InDelta(t, 2.0/101, m.MaxDrawdown, 1e-9)
	})

	t.Run("mismatched lengths are invalid input", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/risk/metrics", map[string]interface{}{
			"portfolio_returns": []float64{0.01, -0.02, 0.03},
			"benchmark_returns": []float64{0.01, -0.02},
			"values":            []float64{100, 101},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPortfolioAttribution(t *testing.T) {
	t.Run("returns the stored portfolio", func(t *testing.T) {
		analytics := &mockAnalytics{attribution: &models.PortfolioAttribution{TotalValue: 25800}}
		srv := newTestServer(t, analytics)

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/portfolio/attribution?period_return=4.5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []float64{4.5}, analytics.periodReturns)

		var result models.PortfolioAttribution
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 25800.0, result.TotalValue)
	})

	t.Run("bad period return", func(t *testing.T) {
		srv := newTestServer(t, &mockAnalytics{})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/portfolio/attribution?period_return=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service failure is a server error", func(t *testing.T) {
		srv := newTestServer(t, &mockAnalytics{err: errors.New("db down")})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/portfolio/attribution", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSymbolRisk(t *testing.T) {
	t.Run("defaults fill in benchmark period and rate", func(t *testing.T) {
		analytics := &mockAnalytics{snapshot: &models.RiskSnapshot{Symbol: "AAPL", Benchmark: "SPY"}}
		srv := newTestServer(t, analytics)

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/risk/AAPL", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, analytics.riskCalls, 1)
		call := analytics.riskCalls[0]
		assert.Equal(t, "AAPL", call.symbol)
		assert.Equal(t, "SPY", call.benchmark)
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), call.end)
		assert.Equal(t, time.Date(2025, 10, 19, 0, 0, 0, 0, time.UTC), call.start)
		assert.Equal(t, 0.0001, call.riskFreeRate)
	})

	t.Run("query parameters override the defaults", func(t *testing.T) {
		analytics := &mockAnalytics{snapshot: &models.RiskSnapshot{Symbol: "MSFT"}}
		srv := newTestServer(t, analytics)

		rec := doRequest(t, srv, http.MethodGet,
			"/api/v1/risk/MSFT?benchmark=QQQ&from=2026-01-01&to=2026-03-31&risk_free_rate=0.0002", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		call := analytics.riskCalls[0]
		assert.Equal(t, "QQQ", call.benchmark)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), call.start)
		assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), call.end)
		assert.Equal(t, 0.0002, call.riskFreeRate)
	})

	t.Run("bad dates are rejected", func(t *testing.T) {
		srv := newTestServer(t, &mockAnalytics{})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/risk/AAPL?from=01/01/2026", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	errCases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", models.InvalidInputf("returns: need at least 2 values, got 1"), http.StatusBadRequest},
		{"not found", fmt.Errorf("risk snapshot: %w", database.ErrNotFound), http.StatusNotFound},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.name+" maps to status", func(t *testing.T) {
			srv := newTestServer(t, &mockAnalytics{err: tc.err})
			rec := doRequest(t, srv, http.MethodGet, "/api/v1/risk/AAPL", nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
