package feed

import (
    "context"
    "errors"
    "time"

    "go.uber.org/zap"

    "github.com/alim08/cryptotrader/pkg/logger"
    "github.com/alim08/cryptotrader/pkg/metrics"
    "github.com/alim08/cryptotrader/pkg/models"
)

// DefaultInterval is the refresh period of the ticker poll.
const DefaultInterval = 30 * time.Second

// Sink receives the outcome of each fetch and owns the loading/error flag
// shown alongside the list.
type Sink interface {
    ApplySnapshot(records []models.TickerRecord)
    ApplyFeedError(err error)
}

// Poller fetches immediately and then on every tick. A failed tick keeps
// the previous snapshot; the next tick retries.
type Poller struct {
    fetcher  Fetcher
    sink     Sink
    interval time.Duration
}

// NewPoller returns a poller that reports to sink.
func NewPoller(f Fetcher, sink Sink, interval time.Duration) *Poller {
    if interval <= 0 {
        interval = DefaultInterval
    }
    return &Poller{
        fetcher:  f,
        sink:     sink,
        interval: interval,
    }
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
    logger.Log.Info("starting ticker poll", zap.Duration("interval", p.interval))
    ticker := time.NewTicker(p.interval)
    defer ticker.Stop()

    p.Poll(ctx)
    for {
        select {
        case <-ctx.Done():
            logger.Log.Info("ticker poll stopped")
            return
        case <-ticker.C:
            p.Poll(ctx)
        }
    }
}

// Poll performs one fetch and delivers the result. A response that arrives
// after ctx is canceled is dropped without touching the sink.
func (p *Poller) Poll(ctx context.Context) error {
    start := time.Now()
    records, err := p.fetcher.Fetch(ctx)
    metrics.IngestLatency.Observe(time.Since(start).Seconds())

    if ctx.Err() != nil {
        metrics.IngestDiscarded.Inc()
        logger.Log.Debug("discarding late feed response", zap.Error(ctx.Err()))
        return ctx.Err()
    }

    if err != nil {
        metrics.IngestErrors.WithLabelValues(reason(err)).Inc()
        logger.Log.Warn("ticker fetch failed", zap.Error(err))
        p.sink.ApplyFeedError(err)
        return err
    }

    metrics.IngestCounter.Inc()
    metrics.SnapshotSize.Set(float64(len(records)))
    p.sink.ApplySnapshot(records)
    return nil
}

func reason(err error) string {
    var se *StatusError
    if errors.As(err, &se) {
        return "status"
    }
    return "fetch"
}
