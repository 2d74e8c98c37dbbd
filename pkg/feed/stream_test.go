package feed

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/cenkalti/backoff/v4"
    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestStreamReader_DeliversBatchesAndStopsOnCancel(t *testing.T) {
    upgrader := websocket.Upgrader{}
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        defer conn.Close()
        conn.WriteMessage(websocket.TextMessage,
            []byte(`[{"market":"BTCUSDT","last_price":"1","bid":"1","ask":"2"}]`))
        conn.WriteMessage(websocket.TextMessage,
            []byte(`[{"market":"ETHUSDT","last_price":2,"bid":1,"ask":3}]`))
        // hold the connection open until the client goes away
        conn.ReadMessage()
    }))
    defer srv.Close()

    sink := &recordingSink{}
    r := NewStreamReader("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
    r.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }

    ctx, cancel := context.WithCancel(context.Background())
    errc := make(chan error, 1)
    go func() { errc <- r.Run(ctx) }()

    assert.Eventually(t, func() bool {
        n, _ := sink.counts()
        return n == 2
    }, time.Second, 5*time.Millisecond)

    cancel()
    select {
    case err := <-errc:
        require.NoError(t, err)
    case <-time.After(2 * time.Second):
        t.Fatal("stream reader did not stop")
    }

    sink.mu.Lock()
    defer sink.mu.Unlock()
    assert.Equal(t, "BTCUSDT", sink.snapshots[0][0].Market)
    assert.Equal(t, "ETHUSDT", sink.snapshots[1][0].Market)
}

func TestStreamReader_RefusedUpgradeReportsFeedError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "maintenance", http.StatusServiceUnavailable)
    }))
    defer srv.Close()

    sink := &recordingSink{}
    r := NewStreamReader("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
    r.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(20 * time.Millisecond) }

    ctx, cancel := context.WithCancel(context.Background())
    errc := make(chan error, 1)
    go func() { errc <- r.Run(ctx) }()

    assert.Eventually(t, func() bool {
        _, n := sink.counts()
        return n >= 2
    }, time.Second, 5*time.Millisecond, "every failed dial is reported")
    cancel()
    require.NoError(t, <-errc)

    sink.mu.Lock()
    defer sink.mu.Unlock()
    assert.Empty(t, sink.snapshots)
    assert.ErrorIs(t, sink.errs[0], ErrFeedUnavailable)
}

func TestStreamReader_DroppedConnectionReportsFeedError(t *testing.T) {
    upgrader := websocket.Upgrader{}
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        conn.WriteMessage(websocket.TextMessage,
            []byte(`[{"market":"BTCUSDT","last_price":1,"bid":1,"ask":2}]`))
        conn.Close()
    }))
    defer srv.Close()

    sink := &recordingSink{}
    r := NewStreamReader("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
    r.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }

    ctx, cancel := context.WithCancel(context.Background())
    errc := make(chan error, 1)
    go func() { errc <- r.Run(ctx) }()

    assert.Eventually(t, func() bool {
        snaps, errs := sink.counts()
        return snaps == 1 && errs == 1
    }, time.Second, 5*time.Millisecond)
    cancel()
    require.NoError(t, <-errc)

    sink.mu.Lock()
    defer sink.mu.Unlock()
    assert.ErrorIs(t, sink.errs[0], ErrFeedUnavailable)
}

type countingBackOff struct {
    backoff.BackOff
    mu     sync.Mutex
    resets int
}

func (b *countingBackOff) Reset() {
    b.mu.Lock()
    b.resets++
    b.mu.Unlock()
    b.BackOff.Reset()
}

func (b *countingBackOff) count() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.resets
}

func TestStreamReader_ResetsBackOffAfterHealthyBatch(t *testing.T) {
    upgrader := websocket.Upgrader{}
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        defer conn.Close()
        for i := 0; i < 3; i++ {
            conn.WriteMessage(websocket.TextMessage,
                []byte(`[{"market":"BTCUSDT","last_price":1,"bid":1,"ask":2}]`))
        }
        conn.ReadMessage()
    }))
    defer srv.Close()

    policy := &countingBackOff{BackOff: backoff.NewConstantBackOff(10 * time.Millisecond)}
    sink := &recordingSink{}
    r := NewStreamReader("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
    r.NewBackOff = func() backoff.BackOff { return policy }

    ctx, cancel := context.WithCancel(context.Background())
    errc := make(chan error, 1)
    go func() { errc <- r.Run(ctx) }()

    assert.Eventually(t, func() bool {
        n, _ := sink.counts()
        return n == 3
    }, time.Second, 5*time.Millisecond)
    cancel()
    require.NoError(t, <-errc)

    // one reset when the retry loop starts, then one per delivered batch
    assert.Equal(t, 4, policy.count())
}
