package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// DefaultLoadTimeout bounds how long the first call waits for the loader
const DefaultLoadTimeout = 5 * time.Second

const loadKey = "load"

// Options configures a Dispatcher
type Options struct {
	LoadTimeout time.Duration
	Logger      *zap.Logger
	Registerer  prometheus.Registerer
}

// Dispatcher owns the accelerated backend handle. The first call loads it;
// any load or execution failure moves the dispatcher permanently to the
// reference backend. Backend failures are never returned to callers.
type Dispatcher struct {
	loader      Loader
	reference   Backend
	loadTimeout time.Duration
	logger      *zap.Logger
	metrics     *metrics

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	backend Backend
	failure error
}

// NewDispatcher creates a dispatcher in the Unloaded state
func NewDispatcher(loader Loader, opts Options) *Dispatcher {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	d := &Dispatcher{
		loader:      loader,
		reference:   Reference{},
		loadTimeout: opts.LoadTimeout,
		logger:      opts.Logger,
		metrics:     newMetrics(opts.Registerer),
	}
	d.metrics.state.Set(float64(StateUnloaded))
	return d
}

// State returns the current backend state
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Failure returns the recorded cause of the fallback, or nil
func (d *Dispatcher) Failure() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.failure
}

// BackendName is the name of the backend calls are currently routed to
func (d *Dispatcher) BackendName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state == StateReady {
		return d.backend.Name()
	}
	return d.reference.Name()
}

// Ensure resolves the backend, loading it if this is the first call.
// Concurrent callers share a single in-flight load.
func (d *Dispatcher) Ensure(ctx context.Context) State {
	if s := d.State(); s != StateUnloaded {
		return s
	}
	d.group.Do(loadKey, func() (interface{}, error) {
		if d.State() == StateUnloaded {
			d.load(ctx)
		}
		return nil, nil
	})
	return d.State()
}

type loadResult struct {
	backend Backend
	err     error
}

func (d *Dispatcher) load(ctx context.Context) {
	if d.loader == nil {
		d.fallback(loadKey, reasonDisabled, ErrNoLoader)
		return
	}

	// the load outlives a single caller's cancellation but not the timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.loadTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan loadResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- loadResult{err: fmt.Errorf("%w: %v", errLoadPanic, r)}
			}
		}()
		b, err := d.loader(ctx)
		if err == nil && b == nil {
			err = errors.New("loader returned no backend")
		}
		done <- loadResult{backend: b, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err == nil:
			d.ready(res.backend, time.Since(start))
		case errors.Is(res.err, ErrBackendDisabled):
			d.fallback(loadKey, reasonDisabled, res.err)
		case errors.Is(res.err, errLoadPanic):
			d.fallback(loadKey, reasonLoadPanic, res.err)
		default:
			d.fallback(loadKey, reasonLoadError, res.err)
		}
	case <-ctx.Done():
		d.fallback(loadKey, reasonLoadTimeout, fmt.Errorf("timed out after %s: %w", d.loadTimeout, ctx.Err()))
	}
}

var errLoadPanic = errors.New("loader panicked")

func (d *Dispatcher) ready(b Backend, took time.Duration) {
	d.mu.Lock()
	d.state = StateReady
	d.backend = b
	d.mu.Unlock()

	d.metrics.state.Set(float64(StateReady))
	d.logger.Info("Compute backend ready",
		zap.String("backend", b.Name()),
		zap.Duration("load_time", took))
}

// fallback moves to the reference backend. Only the first failure is kept.
func (d *Dispatcher) fallback(op, reason string, err error) {
	d.mu.Lock()
	if d.state == StateFallback {
		d.mu.Unlock()
		return
	}
	failure := &BackendError{Op: op, Err: err}
	d.state = StateFallback
	d.backend = nil
	d.failure = failure
	d.mu.Unlock()

	d.metrics.state.Set(float64(StateFallback))
	d.metrics.fallbacks.WithLabelValues(reason).Inc()

	log := d.logger.Warn
	if reason == reasonDisabled {
		log = d.logger.Info
	}
	log("Compute backend unavailable, using reference implementation",
		zap.String("op", op),
		zap.String("reason", reason),
		zap.Error(err))
}

func (d *Dispatcher) accelerated(ctx context.Context) Backend {
	if d.Ensure(ctx) != StateReady {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.backend
}

// dispatch runs fn on the accelerated backend when ready. Input errors are
// returned as is; any other failure falls back and reruns fn on the
// reference backend.
func dispatch[T any](ctx context.Context, d *Dispatcher, op string, fn func(Backend) (T, error)) (T, error) {
	if b := d.accelerated(ctx); b != nil {
		v, panicked, err := invoke(b, fn)
		switch {
		case err == nil:
			d.metrics.calls.WithLabelValues(op, pathAccelerated).Inc()
			return v, nil
		case errors.Is(err, models.ErrInvalidInput):
			return v, err
		case panicked:
			d.fallback(op, reasonExecPanic, err)
		default:
			d.fallback(op, reasonExecError, err)
		}
	}
	d.metrics.calls.WithLabelValues(op, pathReference).Inc()
	return fn(d.reference)
}

func invoke[T any](b Backend, fn func(Backend) (T, error)) (v T, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			panicked = true
		}
	}()
	v, err = fn(b)
	return v, false, err
}

// Correlation dispatches the Pearson correlation of x and y
func (d *Dispatcher) Correlation(ctx context.Context, x, y []float64) (float64, error) {
	return dispatch(ctx, d, "correlation", func(b Backend) (float64, error) {
		return b.Correlation(x, y)
	})
}

func (d *Dispatcher) Beta(ctx context.Context, portfolio, benchmark []float64) (float64, error) {
	return dispatch(ctx, d, "beta", func(b Backend) (float64, error) {
		return b.Beta(portfolio, benchmark)
	})
}

func (d *Dispatcher) SharpeRatio(ctx context.Context, returns []float64, riskFreeRate float64) (float64, error) {
	return dispatch(ctx, d, "sharpe_ratio", func(b Backend) (float64, error) {
		return b.SharpeRatio(returns, riskFreeRate)
	})
}

func (d *Dispatcher) MaxDrawdown(ctx context.Context, values []float64) (float64, error) {
	return dispatch(ctx, d, "max_drawdown", func(b Backend) (float64, error) {
		return b.MaxDrawdown(values)
	})
}

func (d *Dispatcher) StandardDeviation(ctx context.Context, returns []float64) (float64, error) {
	return dispatch(ctx, d, "standard_deviation", func(b Backend) (float64, error) {
		return b.StandardDeviation(returns)
	})
}

func (d *Dispatcher) HoldingAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return dispatch(ctx, d, "holding_attribution", func(b Backend) ([]models.AttributionRecord, error) {
		return b.HoldingAttribution(holdings, totalValue)
	})
}

func (d *Dispatcher) SectorAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return dispatch(ctx, d, "sector_attribution", func(b Backend) ([]models.AttributionRecord, error) {
		return b.SectorAttribution(holdings, totalValue)
	})
}

func (d *Dispatcher) AssetClassAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return dispatch(ctx, d, "asset_class_attribution", func(b Backend) ([]models.AttributionRecord, error) {
		return b.AssetClassAttribution(holdings, totalValue)
	})
}

func (d *Dispatcher) BrinsonFachler(ctx context.Context, portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn float64) (models.BrinsonResult, error) {
	return dispatch(ctx, d, "brinson_fachler", func(b Backend) (models.BrinsonResult, error) {
		return b.BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn)
	})
}

// RiskMetrics computes all five statistics. Correlation, beta, Sharpe ratio
// and standard deviation use the return series; max drawdown uses values.
func (d *Dispatcher) RiskMetrics(ctx context.Context, portfolio, benchmark, values []float64, riskFreeRate float64) (models.RiskMetrics, error) {
	var m models.RiskMetrics
	var err error
	if m.Correlation, err = d.Correlation(ctx, portfolio, benchmark); err != nil {
		return m, err
	}
	if m.Beta, err = d.Beta(ctx, portfolio, benchmark); err != nil {
		return m, err
	}
	if m.SharpeRatio, err = d.SharpeRatio(ctx, portfolio, riskFreeRate); err != nil {
		return m, err
	}
	if m.MaxDrawdown, err = d.MaxDrawdown(ctx, values); err != nil {
		return m, err
	}
	if m.StandardDeviation, err = d.StandardDeviation(ctx, portfolio); err != nil {
		return m, err
	}
	return m, nil
}
