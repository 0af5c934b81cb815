package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Options
	api.HandleFunc("/options/greeks", handler.OptionGreeks).Methods("POST")
	api.HandleFunc("/options/chain", handler.OptionChain).Methods("POST")
	api.HandleFunc("/options/implied-volatility", handler.ImpliedVolatility).Methods("POST")

	// Attribution over holdings supplied in the request
	api.HandleFunc("/attribution/holdings", handler.HoldingAttribution).Methods("POST")
	api.HandleFunc("/attribution/sectors", handler.SectorAttribution).Methods("POST")
	api.HandleFunc("/attribution/asset-classes", handler.AssetClassAttribution).Methods("POST")
	api.HandleFunc("/attribution/summary", handler.AttributionSummary).Methods("POST")
	api.HandleFunc("/attribution/brinson", handler.Brinson).Methods("POST")
	api.HandleFunc("/attribution/benchmark-return", handler.BenchmarkReturn).Methods("GET")
	api.HandleFunc("/attribution/benchmark-comparison", handler.BenchmarkComparison).Methods("POST")

	// Risk
	api.HandleFunc("/risk/metrics", handler.RiskMetrics).Methods("POST")
	api.HandleFunc("/risk/{symbol}", handler.SymbolRisk).Methods("GET")

	// Stored portfolio
	api.HandleFunc("/portfolio/attribution", handler.PortfolioAttribution).Methods("GET")

	return r
}
