package redisclient

import (
  "context"
  "errors"
  "fmt"
  "sort"
  "sync/atomic"
  "time"

  "github.com/cenkalti/backoff/v4"
  "github.com/go-redis/redis/v8"
  "go.uber.org/zap"

  "github.com/alim08/cryptotrader/pkg/logger"
  "github.com/alim08/cryptotrader/pkg/metrics"
)

var (
  ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

const (
  breakerThreshold = 5
  breakerCooldown  = 30 * time.Second
)

// breaker states
const (
  stateClosed int32 = iota
  stateOpen
  stateHalfOpen
)

type Client struct {
  rdb *redis.Client
  // Circuit breaker state
  failureCount int64
  lastFailure  int64
  state        int32
  now          func() time.Time
}

// New parses redisURL and constructs a Client with pool and timeout defaults.
func New(redisURL string) (*Client, error) {
  opt, err := redis.ParseURL(redisURL)
  if err != nil {
    return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
  }
  opt.PoolSize = 10
  opt.MinIdleConns = 2
  opt.MaxRetries = 3
  opt.DialTimeout = 5 * time.Second
  opt.ReadTimeout = 3 * time.Second
  opt.WriteTimeout = 3 * time.Second
  opt.IdleTimeout = 5 * time.Minute
  return wrap(redis.NewClient(opt)), nil
}

func wrap(rdb *redis.Client) *Client {
  return &Client{rdb: rdb, now: time.Now}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
  return c.withMetrics("ping", func() error {
    return c.rdb.Ping(ctx).Err()
  })
}

// withMetrics wraps operations with metrics collection
func (c *Client) withMetrics(operation string, fn func() error) error {
  start := time.Now()
  err := fn()
  duration := time.Since(start).Seconds()

  metrics.RedisOperationDuration.WithLabelValues(operation, metrics.Status(err)).Observe(duration)
  if err != nil {
    metrics.RedisErrors.WithLabelValues(operation).Inc()
  }
  return err
}

// allow reports whether a call may go through. An open breaker lets a single
// probe through once the cooldown has passed.
func (c *Client) allow() bool {
  if atomic.LoadInt32(&c.state) != stateOpen {
    return true
  }
  last := time.Unix(atomic.LoadInt64(&c.lastFailure), 0)
  if c.now().Sub(last) < breakerCooldown {
    return false
  }
  return atomic.CompareAndSwapInt32(&c.state, stateOpen, stateHalfOpen)
}

// record updates the breaker after a call.
func (c *Client) record(err error) {
  if err != nil {
    n := atomic.AddInt64(&c.failureCount, 1)
    atomic.StoreInt64(&c.lastFailure, c.now().Unix())
    if n >= breakerThreshold || atomic.LoadInt32(&c.state) == stateHalfOpen {
      if atomic.SwapInt32(&c.state, stateOpen) != stateOpen {
        logger.Log.Warn("circuit breaker opened", zap.Int64("failures", n))
      }
    }
    return
  }
  atomic.StoreInt64(&c.failureCount, 0)
  atomic.StoreInt32(&c.state, stateClosed)
}

// retry runs op with a short per-attempt timeout and up to 3 retries.
func (c *Client) retry(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
  if !c.allow() {
    return ErrCircuitBreakerOpen
  }
  attempt := func() error {
    actx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    err := op(actx)
    c.record(err)
    if errors.Is(err, ErrCircuitBreakerOpen) {
      return backoff.Permanent(err)
    }
    return err
  }
  bo := backoff.NewExponentialBackOff()
  bo.InitialInterval = 10 * time.Millisecond
  return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
}

// AddToStream appends into a Redis Stream with retry/backoff
func (c *Client) AddToStream(ctx context.Context, stream string, values map[string]interface{}) error {
  return c.withMetrics("xadd", func() error {
    return c.retry(ctx, 100*time.Millisecond, func(ctx context.Context) error {
      return c.rdb.XAdd(ctx, &redis.XAddArgs{
        Stream: stream,
        Values: Fields(values),
      }).Err()
    })
  })
}

// Publish wraps rdb.Publish with a short timeout. It is not retried.
func (c *Client) Publish(ctx context.Context, channel string, msg interface{}) error {
  return c.withMetrics("publish", func() error {
    if !c.allow() {
      return ErrCircuitBreakerOpen
    }
    ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
    defer cancel()
    err := c.rdb.Publish(ctx, channel, msg).Err()
    c.record(err)
    return err
  })
}

// HSet sets a hash with retry
func (c *Client) HSet(ctx context.Context, key string, values map[string]interface{}) error {
  return c.withMetrics("hset", func() error {
    return c.retry(ctx, 100*time.Millisecond, func(ctx context.Context) error {
      return c.rdb.HSet(ctx, key, Fields(values)...).Err()
    })
  })
}

// Pipelined runs fn inside a pipeline under the breaker and retry policy.
func (c *Client) Pipelined(ctx context.Context, operation string, fn func(redis.Pipeliner)) error {
  return c.withMetrics(operation, func() error {
    return c.retry(ctx, 250*time.Millisecond, func(ctx context.Context) error {
      _, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
        fn(p)
        return nil
      })
      return err
    })
  })
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
  return c.rdb.Close()
}

// Fields flattens a map into key/value pairs in key order, so commands are
// deterministic.
func Fields(m map[string]interface{}) []interface{} {
  keys := make([]string, 0, len(m))
  for k := range m {
    keys = append(keys, k)
  }
  sort.Strings(keys)
  out := make([]interface{}, 0, 2*len(keys))
  for _, k := range keys {
    out = append(out, k, m[k])
  }
  return out
}
