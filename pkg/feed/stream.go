package feed

import (
    "context"
    "errors"
    "fmt"

    "github.com/cenkalti/backoff/v4"
    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "github.com/alim08/cryptotrader/pkg/logger"
    "github.com/alim08/cryptotrader/pkg/metrics"
    "github.com/alim08/cryptotrader/pkg/models"
)

// StreamReader consumes a websocket that pushes whole ticker arrays and
// reconnects with exponential backoff until ctx is canceled.
type StreamReader struct {
    URL    string
    Sink   Sink
    Dialer *websocket.Dialer
    // NewBackOff overrides the reconnect policy.
    NewBackOff func() backoff.BackOff
}

// NewStreamReader returns a reader using the default dialer.
func NewStreamReader(url string, sink Sink) *StreamReader {
    return &StreamReader{URL: url, Sink: sink, Dialer: websocket.DefaultDialer}
}

// Run blocks until ctx is canceled or the backoff policy gives up. Every
// dial or read failure is reported to the sink as ErrFeedUnavailable.
func (r *StreamReader) Run(ctx context.Context) error {
    exp := backoff.NewExponentialBackOff()
    exp.MaxElapsedTime = 0
    var policy backoff.BackOff = exp
    if r.NewBackOff != nil {
        policy = r.NewBackOff()
    }
    bo := backoff.WithContext(policy, ctx)

    err := backoff.Retry(func() error {
        logger.Log.Info("dialing ticker stream", zap.String("url", r.URL))
        conn, _, err := r.Dialer.DialContext(ctx, r.URL, nil)
        if err != nil {
            if ctx.Err() != nil {
                return backoff.Permanent(ctx.Err())
            }
            logger.Log.Warn("ws dial error", zap.Error(err))
            metrics.IngestErrors.WithLabelValues("dial").Inc()
            r.Sink.ApplyFeedError(fmt.Errorf("%w: %v", ErrFeedUnavailable, err))
            return err
        }
        defer conn.Close()

        done := make(chan struct{})
        defer close(done)
        go func() {
            select {
            case <-ctx.Done():
                conn.Close()
            case <-done:
            }
        }()

        for {
            var batch []models.TickerRecord
            if err := conn.ReadJSON(&batch); err != nil {
                if ctx.Err() != nil {
                    return backoff.Permanent(ctx.Err())
                }
                logger.Log.Warn("ws read error", zap.Error(err))
                metrics.IngestErrors.WithLabelValues("read").Inc()
                r.Sink.ApplyFeedError(fmt.Errorf("%w: %v", ErrFeedUnavailable, err))
                return err
            }
            if ctx.Err() != nil {
                metrics.IngestDiscarded.Inc()
                return backoff.Permanent(ctx.Err())
            }
            // a healthy connection starts the next failure streak from scratch
            bo.Reset()
            metrics.IngestCounter.Inc()
            metrics.SnapshotSize.Set(float64(len(batch)))
            r.Sink.ApplySnapshot(batch)
        }
    }, bo)

    if err != nil && !errors.Is(err, context.Canceled) {
        logger.Log.Error("ticker stream stopped", zap.Error(err))
        return err
    }
    return nil
}
