package redisclient

import (
  "context"
  "encoding/json"
  "time"

  "github.com/go-redis/redis/v8"

  "github.com/alim08/cryptotrader/pkg/catalog"
  "github.com/alim08/cryptotrader/pkg/chart"
  "github.com/alim08/cryptotrader/pkg/models"
)

// Keys and channels written by Publisher.
const (
  QuoteKeyPrefix = "quotes:latest:"
  TickerChannel  = "tickers:pubsub"
  TradeStream    = "trades:stream"
  ChartChannel   = "chart:mount"
)

// Publisher mirrors engine events into Redis: the latest quote per USDT
// market, a snapshot notice, the trade stream and chart mounts.
type Publisher struct {
  client *Client
  now    func() time.Time
}

// NewPublisher wraps c.
func NewPublisher(c *Client) *Publisher {
  return &Publisher{client: c, now: time.Now}
}

type snapshotNotice struct {
  Markets int   `json:"markets"`
  TsMs    int64 `json:"ts_ms"`
}

// PublishSnapshot updates quotes:latest:<market> for every USDT market and
// announces the refresh on tickers:pubsub, in one pipeline.
func (p *Publisher) PublishSnapshot(ctx context.Context, records []models.TickerRecord) error {
  at := p.now()
  payload, err := json.Marshal(snapshotNotice{Markets: len(records), TsMs: at.UTC().UnixMilli()})
  if err != nil {
    return err
  }
  return p.client.Pipelined(ctx, "snapshot", func(pipe redis.Pipeliner) {
    for _, r := range records {
      if !catalog.IsQuotePair(r.Market) {
        continue
      }
      pipe.HSet(ctx, QuoteKeyPrefix+r.Market, Fields(r.ToMap(at))...)
    }
    pipe.Publish(ctx, TickerChannel, payload)
  })
}

// PublishTrade appends the transaction to trades:stream.
func (p *Publisher) PublishTrade(ctx context.Context, tx models.Transaction) error {
  return p.client.AddToStream(ctx, TradeStream, tx.ToMap())
}

// PublishChart announces a mounted chart config on chart:mount.
func (p *Publisher) PublishChart(ctx context.Context, cfg chart.Config) error {
  payload, err := json.Marshal(cfg)
  if err != nil {
    return err
  }
  return p.client.Publish(ctx, ChartChannel, payload)
}
