package search

import (
	"sync"
	"time"

	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/scheduler"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet window before a keystroke triggers a recompute.
const DefaultDebounce = 300 * time.Millisecond

// Source supplies the snapshot to filter.
type Source interface {
	Snapshot() []models.TickerRecord
}

// Engine holds the search state: the echoed query and the last computed
// results. Results may lag the query while a debounce window is open.
type Engine struct {
	mu       sync.Mutex
	source   Source
	debounce *scheduler.Debouncer
	query    string
	results  []models.TickerRecord
	onChange func(query string, results []models.TickerRecord)
	closed   bool
}

// NewEngine builds an engine over src. A zero delay uses DefaultDebounce.
func NewEngine(src Source, sched scheduler.Scheduler, delay time.Duration) *Engine {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if sched == nil {
		sched = scheduler.Real{}
	}
	return &Engine{
		source:   src,
		debounce: scheduler.NewDebouncer(sched, delay),
		results:  []models.TickerRecord{},
	}
}

// OnChange registers the callback run after every recompute.
func (e *Engine) OnChange(fn func(query string, results []models.TickerRecord)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// SetQuery records q immediately and schedules a debounced recompute, which
// uses whatever query is current when the window closes.
func (e *Engine) SetQuery(q string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.query = q
	e.mu.Unlock()

	e.debounce.Trigger(func() { e.recompute("debounce") })
}

// Refresh recomputes now with the current query.
func (e *Engine) Refresh() {
	e.recompute("snapshot")
}

// Query is the raw query as typed.
func (e *Engine) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Results returns a copy of the last computed results.
func (e *Engine) Results() []models.TickerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TickerRecord, len(e.results))
	copy(out, e.results)
	return out
}

// Close cancels any pending recompute; later calls are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.debounce.Stop()
}

func (e *Engine) recompute(trigger string) {
	start := time.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	q := e.query
	res := Filter(e.source.Snapshot(), q)
	e.results = res
	fn := e.onChange
	e.mu.Unlock()

	metrics.FilterLatency.Observe(time.Since(start).Seconds())
	metrics.FilterRecomputes.WithLabelValues(trigger).Inc()
	logger.Log.Debug("filter recomputed",
		zap.String("trigger", trigger), zap.String("query", q), zap.Int("results", len(res)))

	if fn != nil {
		out := make([]models.TickerRecord, len(res))
		copy(out, res)
		fn(q, out)
	}
}
