// Package resolver owns the active symbol: it validates selections against
// the allowlist, falls back to the default pair, and remounts the chart.
package resolver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alim08/cryptotrader/pkg/catalog"
	"github.com/alim08/cryptotrader/pkg/chart"
	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
	"go.uber.org/zap"
)

var (
	// ErrInvalidSymbol marks a selection that is not in the allowlist.
	ErrInvalidSymbol = errors.New("symbol not in allowlist")
	// ErrChartLoad marks a chart embed that failed to initialize.
	ErrChartLoad = errors.New("chart failed to load")
	// ErrChartUnavailable is returned when even the default symbol cannot be
	// charted. The active symbol is still the default.
	ErrChartUnavailable = errors.New("chart unavailable for default symbol")
)

// maxAttempts bounds resolution to the chosen symbol plus one fallback.
const maxAttempts = 2

// State of the resolver. Resolving is only observable from inside a resolution.
type State int

const (
	Resolving State = iota
	Resolved
)

func (s State) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "resolving"
}

// Result describes one resolution.
type Result struct {
	// Accepted is false when the selection was ignored (not a USDT pair).
	Accepted bool
	// Symbol is the active symbol after the call.
	Symbol string
	// Fallback is the reason the default was substituted, nil otherwise.
	Fallback error
}

// Resolver is the active-symbol state machine.
type Resolver struct {
	mu        sync.Mutex
	catalog   *catalog.Catalog
	mounter   chart.Mounter
	active    string
	state     State
	handle    *chart.Handle
	listeners []func(symbol string)
	log       *zap.Logger
}

// New returns a resolver positioned on the default symbol. Call Start to
// perform the first resolution and mount the chart.
func New(cat *catalog.Catalog, mounter chart.Mounter) *Resolver {
	return &Resolver{
		catalog: cat,
		mounter: mounter,
		active:  catalog.DefaultSymbol,
		state:   Resolving,
		log:     logger.Named("resolver"),
	}
}

// OnResolved registers fn to run after every successful resolution.
func (r *Resolver) OnResolved(fn func(symbol string)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Start resolves the default symbol, as on first mount.
func (r *Resolver) Start() (Result, error) {
	return r.resolve(catalog.DefaultSymbol)
}

// Select handles a user click. Symbols not ending in USDT are ignored.
func (r *Resolver) Select(symbol string) (Result, error) {
	if !catalog.IsQuotePair(symbol) {
		metrics.SymbolSelections.WithLabelValues("ignored").Inc()
		r.log.Debug("ignoring non-USDT selection", zap.String("symbol", symbol))
		return Result{Accepted: false, Symbol: r.Active()}, nil
	}
	return r.resolve(catalog.Normalize(symbol))
}

// UpdateAllowlist swaps the catalog and re-resolves the active symbol,
// which falls back to the default if it was removed.
func (r *Resolver) UpdateAllowlist(cat *catalog.Catalog) (Result, error) {
	r.mu.Lock()
	r.catalog = cat
	current := r.active
	r.mu.Unlock()
	return r.resolve(current)
}

// Active is the current active symbol.
func (r *Resolver) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// State is the current resolver state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Chart returns the mounted chart handle, if any.
func (r *Resolver) Chart() (chart.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return chart.Handle{}, false
	}
	return *r.handle, true
}

// Allowlist is the catalog currently in force.
func (r *Resolver) Allowlist() *catalog.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog
}

func (r *Resolver) resolve(candidate string) (Result, error) {
	r.mu.Lock()
	r.state = Resolving

	var fallback error
	mounted := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !r.catalog.Contains(candidate) {
			err := fmt.Errorf("%w: %s", ErrInvalidSymbol, candidate)
			r.log.Warn("invalid symbol, falling back", zap.String("symbol", candidate))
			metrics.SymbolFallbacks.WithLabelValues("invalid_symbol").Inc()
			if fallback == nil {
				fallback = err
			}
			candidate = catalog.DefaultSymbol
			continue
		}

		if r.handle != nil {
			r.mounter.Unmount(*r.handle)
			r.handle = nil
		}
		h, err := r.mounter.Mount(chart.NewConfig(candidate))
		metrics.ChartMounts.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			r.log.Warn("chart load failed, falling back",
				zap.String("symbol", candidate), zap.Error(err))
			metrics.SymbolFallbacks.WithLabelValues("chart_load").Inc()
			if fallback == nil {
				fallback = fmt.Errorf("%w: %v", ErrChartLoad, err)
			}
			if candidate == catalog.DefaultSymbol {
				break
			}
			candidate = catalog.DefaultSymbol
			continue
		}
		r.handle = &h
		mounted = true
		break
	}

	if !mounted {
		candidate = catalog.DefaultSymbol
	}
	r.active = candidate
	r.state = Resolved
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	outcome := "accepted"
	if fallback != nil {
		outcome = "fallback"
	}
	metrics.SymbolSelections.WithLabelValues(outcome).Inc()
	r.log.Info("active symbol resolved", zap.String("symbol", candidate), zap.Bool("chart", mounted))

	for _, fn := range listeners {
		fn(candidate)
	}

	res := Result{Accepted: true, Symbol: candidate, Fallback: fallback}
	if !mounted {
		return res, ErrChartUnavailable
	}
	return res, nil
}
