package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trogers1052/portfolio-analytics/internal/attribution"
	"github.com/trogers1052/portfolio-analytics/internal/compute"
	"github.com/trogers1052/portfolio-analytics/internal/database"
	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/pricing"
)

const dateLayout = "2006-01-02"

// Analytics is the service behind the portfolio endpoints
type Analytics interface {
	Attribute(ctx context.Context, holdings []models.Holding, periodReturn float64) (*models.PortfolioAttribution, error)
	PortfolioAttribution(ctx context.Context, periodReturn float64) (*models.PortfolioAttribution, error)
	SymbolRisk(ctx context.Context, symbol, benchmark string, start, end time.Time, riskFreeRate float64) (*models.RiskSnapshot, error)
}

// Defaults fill in query parameters the caller leaves out
type Defaults struct {
	Benchmark    string
	LookbackDays int
	RiskFreeRate float64
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analytics  Analytics
	dispatcher *compute.Dispatcher
	defaults   Defaults
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(analytics Analytics, dispatcher *compute.Dispatcher, defaults Defaults, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		analytics:  analytics,
		dispatcher: dispatcher,
		defaults:   defaults,
		logger:     logger,
		now:        time.Now,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "healthy",
		"compute_state":   h.dispatcher.State().String(),
		"compute_backend": h.dispatcher.BackendName(),
	})
}

// OptionGreeks handles POST /options/greeks
func (h *Handler) OptionGreeks(w http.ResponseWriter, r *http.Request) {
	var c models.OptionContract
	if !decodeBody(w, r, &c) {
		return
	}
	if c.TimeToExpiry <= 0 || c.Volatility <= 0 {
		http.Error(w, "time_to_expiry and volatility must be positive", http.StatusBadRequest)
		return
	}

	result, err := pricing.PriceAndGreeks(c)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// OptionChain handles POST /options/chain
func (h *Handler) OptionChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		models.OptionContract
		Strikes []float64 `json:"strikes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Strikes) == 0 {
		http.Error(w, "strikes are required", http.StatusBadRequest)
		return
	}
	if req.TimeToExpiry <= 0 || req.Volatility <= 0 {
		http.Error(w, "time_to_expiry and volatility must be positive", http.StatusBadRequest)
		return
	}

	entries, err := pricing.ChainGreeks(req.OptionContract, req.Strikes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ImpliedVolatility handles POST /options/implied-volatility
func (h *Handler) ImpliedVolatility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		models.OptionContract
		Premium float64 `json:"premium"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	iv, err := pricing.ImpliedVolatility(req.Premium, req.OptionContract)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"implied_volatility": iv})
}

type attributionRequest struct {
	Holdings     []models.Holding   `json:"holdings"`
	PeriodReturn float64            `json:"period_return"`
	SortBy       string             `json:"sort_by,omitempty"`
	Descending   bool               `json:"descending,omitempty"`
	Filter       attribution.Filter `json:"filter"`
}

type recordsFunc func(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)

func (h *Handler) attributionRecords(w http.ResponseWriter, r *http.Request, fn recordsFunc) {
	var req attributionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	holdings := attribution.FilterHoldings(req.Holdings, req.Filter)
	records, err := fn(r.Context(), holdings, attribution.TotalValue(holdings))
	if err != nil {
		h.respondError(w, err)
		return
	}

	records = attribution.WithContributionPercent(records, req.PeriodReturn)
	if req.SortBy != "" {
		records = attribution.SortRecords(records, attribution.SortField(req.SortBy), req.Descending)
	}
	respondJSON(w, http.StatusOK, records)
}

// HoldingAttribution handles POST /attribution/holdings
func (h *Handler) HoldingAttribution(w http.ResponseWriter, r *http.Request) {
	h.attributionRecords(w, r, h.dispatcher.HoldingAttribution)
}

// SectorAttribution handles POST /attribution/sectors
func (h *Handler) SectorAttribution(w http.ResponseWriter, r *http.Request) {
	h.attributionRecords(w, r, h.dispatcher.SectorAttribution)
}

// AssetClassAttribution handles POST /attribution/asset-classes
func (h *Handler) AssetClassAttribution(w http.ResponseWriter, r *http.Request) {
	h.attributionRecords(w, r, h.dispatcher.AssetClassAttribution)
}

// AttributionSummary handles POST /attribution/summary
func (h *Handler) AttributionSummary(w http.ResponseWriter, r *http.Request) {
	var req attributionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.analytics.Attribute(r.Context(), attribution.FilterHoldings(req.Holdings, req.Filter), req.PeriodReturn)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Brinson handles POST /attribution/brinson. Effects are rounded to 2 decimals.
func (h *Handler) Brinson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortfolioWeight float64 `json:"portfolio_weight"`
		BenchmarkWeight float64 `json:"benchmark_weight"`
		PortfolioReturn float64 `json:"portfolio_return"`
		BenchmarkReturn float64 `json:"benchmark_return"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.dispatcher.BrinsonFachler(r.Context(), req.PortfolioWeight, req.BenchmarkWeight, req.PortfolioReturn, req.BenchmarkReturn)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.BrinsonResult{
		Allocation:  round2(result.Allocation),
		Selection:   round2(result.Selection),
		Interaction: round2(result.Interaction),
		Total:       round2(result.Total),
	})
}

// BenchmarkReturn handles GET /attribution/benchmark-return?annualized_return=&period=
func (h *Handler) BenchmarkReturn(w http.ResponseWriter, r *http.Request) {
	annualised, err := strconv.ParseFloat(r.URL.Query().Get("annualized_return"), 64)
	if err != nil {
		http.Error(w, "annualized_return must be a number", http.StatusBadRequest)
		return
	}
	period := attribution.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = attribution.Period1Y
	}
	if !period.Valid() {
		http.Error(w, "unknown period "+string(period), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"period":           period,
		"benchmark_return": attribution.BenchmarkReturn(annualised, period),
	})
}

// BenchmarkComparison handles POST /attribution/benchmark-comparison. The
// portfolio return defaults to the summed contribution of the holdings.
func (h *Handler) BenchmarkComparison(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Holdings         []models.Holding   `json:"holdings"`
		PortfolioReturn  *float64           `json:"portfolio_return,omitempty"`
		AnnualizedReturn float64            `json:"annualized_return"`
		Period           attribution.Period `json:"period"`
		Filter           attribution.Filter `json:"filter"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Period == "" {
		req.Period = attribution.Period1Y
	}
	if !req.Period.Valid() {
		http.Error(w, "unknown period "+string(req.Period), http.StatusBadRequest)
		return
	}

	holdings := attribution.FilterHoldings(req.Holdings, req.Filter)
	sectors, err := h.dispatcher.SectorAttribution(r.Context(), holdings, attribution.TotalValue(holdings))
	if err != nil {
		h.respondError(w, err)
		return
	}

	portfolioReturn := 0.0
	if req.PortfolioReturn != nil {
		portfolioReturn = *req.PortfolioReturn
	} else {
		for _, s := range sectors {
			portfolioReturn += s.Contribution
		}
	}
	respondJSON(w, http.StatusOK, attribution.CompareToBenchmark(portfolioReturn, req.AnnualizedReturn, req.Period, sectors))
}

// RiskMetrics handles POST /risk/metrics
func (h *Handler) RiskMetrics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortfolioReturns []float64 `json:"portfolio_returns"`
		BenchmarkReturns []float64 `json:"benchmark_returns"`
		Values           []float64 `json:"values"`
		RiskFreeRate     *float64  `json:"risk_free_rate,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rf := h.defaults.RiskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	metrics, err := h.dispatcher.RiskMetrics(r.Context(), req.PortfolioReturns, req.BenchmarkReturns, req.Values, rf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

// PortfolioAttribution handles GET /portfolio/attribution
func (h *Handler) PortfolioAttribution(w http.ResponseWriter, r *http.Request) {
	periodReturn := 0.0
	if v := r.URL.Query().Get("period_return"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "period_return must be a number", http.StatusBadRequest)
			return
		}
		periodReturn = parsed
	}

	result, err := h.analytics.PortfolioAttribution(r.Context(), periodReturn)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SymbolRisk handles GET /risk/{symbol}?benchmark=&from=&to=&risk_free_rate=
func (h *Handler) SymbolRisk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	q := r.URL.Query()

	benchmark := q.Get("benchmark")
	if benchmark == "" {
		benchmark = h.defaults.Benchmark
	}

	end := h.now().UTC().Truncate(24 * time.Hour)
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "to must be a YYYY-MM-DD date", http.StatusBadRequest)
			return
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -h.defaults.LookbackDays)
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "from must be a YYYY-MM-DD date", http.StatusBadRequest)
			return
		}
		start = parsed
	}

	rf := h.defaults.RiskFreeRate
	if v := q.Get("risk_free_rate"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "risk_free_rate must be a number", http.StatusBadRequest)
			return
		}
		rf = parsed
	}

	snapshot, err := h.analytics.SymbolRisk(r.Context(), symbol, benchmark, start, end, rf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pricing.ErrNoConvergence):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, database.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("Request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
