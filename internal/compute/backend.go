// Package compute routes risk and attribution calculations to an
// accelerated backend when one loads, and to the reference implementation
// otherwise.
package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// Backend is an implementation of the dispatchable operations
type Backend interface {
	Name() string

	Correlation(x, y []float64) (float64, error)
	Beta(portfolio, benchmark []float64) (float64, error)
	SharpeRatio(returns []float64, riskFreeRate float64) (float64, error)
	MaxDrawdown(values []float64) (float64, error)
	StandardDeviation(returns []float64) (float64, error)

	HoldingAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	SectorAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	AssetClassAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn float64) (models.BrinsonResult, error)
}

// Loader produces the accelerated backend. It is called at most once per
// Dispatcher.
type Loader func(ctx context.Context) (Backend, error)

var (
	// ErrBackendDisabled is returned by loaders switched off in configuration
	ErrBackendDisabled = errors.New("accelerated backend disabled")

	// ErrNoLoader is recorded when a Dispatcher is built without a Loader
	ErrNoLoader = errors.New("no accelerated backend loader configured")
)

// BackendError records why the dispatcher fell back to the reference path
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("compute backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// State of the dispatcher's backend handle
type State int32

const (
	StateUnloaded State = iota
	StateReady
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateReady:
		return "ready"
	case StateFallback:
		return "fallback"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
