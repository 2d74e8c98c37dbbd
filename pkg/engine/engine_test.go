package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alim08/cryptotrader/pkg/catalog"
	"github.com/alim08/cryptotrader/pkg/chart"
	"github.com/alim08/cryptotrader/pkg/feed"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/resolver"
	"github.com/alim08/cryptotrader/pkg/scheduler"
)

type fakePublisher struct {
	mu        sync.Mutex
	snapshots int
	trades    []models.Transaction
	charts    []chart.Config
}

func (p *fakePublisher) PublishSnapshot(context.Context, []models.TickerRecord) error {
	p.mu.Lock()
	p.snapshots++
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishTrade(_ context.Context, tx models.Transaction) error {
	p.mu.Lock()
	p.trades = append(p.trades, tx)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishChart(_ context.Context, cfg chart.Config) error {
	p.mu.Lock()
	p.charts = append(p.charts, cfg)
	p.mu.Unlock()
	return errors.New("bus down")
}

func sampleSnapshot() []models.TickerRecord {
	return []models.TickerRecord{
		models.NewTickerRecord("BTCUSDT", 100.5, 100, 101),
		models.NewTickerRecord("ETHUSDT", 3000, 2999, 3001),
		models.NewTickerRecord("BTCINR", 5000000, 4999999, 5000001),
		models.NewTickerRecord("SOLUSDT", 150, 149.5, 150.5),
	}
}

func newController(t *testing.T, opts ...Option) (*Controller, *scheduler.Manual, *fakePublisher) {
	t.Helper()
	m := scheduler.NewManual()
	pub := &fakePublisher{}
	c := New(append([]Option{WithScheduler(m), WithPublisher(pub)}, opts...)...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c, m, pub
}

func TestController_InitialState(t *testing.T) {
	c, _, pub := newController(t)
	s := c.State()
	assert.True(t, s.Loading)
	assert.Equal(t, "BTCUSDT", s.ActiveSymbol)
	require.NotNil(t, s.Chart)
	assert.Equal(t, "BINANCE:BTCUSDT", s.Chart.Symbol)
	assert.Equal(t, "1000", s.Wallet.Balance.String())
	assert.Len(t, pub.charts, 1, "chart mount published even when the bus errors")
}

func TestController_SnapshotFlow(t *testing.T) {
	c, m, pub := newController(t)

	var seen []State
	cancel := c.Subscribe(func(s State) { seen = append(seen, s) })
	defer cancel()

	c.ApplySnapshot(sampleSnapshot())
	s := c.State()
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Len(t, s.Results, 3, "non-USDT markets are filtered out")
	require.NotNil(t, s.ActiveTicker)
	assert.Equal(t, 100.5, s.ActiveTicker.Last())
	assert.Equal(t, 1, pub.snapshots)
	require.NotEmpty(t, seen)

	c.SetQuery("eth")
	s = c.State()
	assert.Equal(t, "eth", s.Query)
	assert.Len(t, s.Results, 3)
	m.Advance(300 * time.Millisecond)
	s = c.State()
	require.Len(t, s.Results, 1)
	assert.Equal(t, "ETHUSDT", s.Results[0].Market)

	c.ApplySnapshot(sampleSnapshot()[:1])
	assert.Empty(t, c.State().Results, "new snapshot is filtered with the current query")
}

func TestController_FeedErrorKeepsSnapshot(t *testing.T) {
	c, _, _ := newController(t)
	c.ApplySnapshot(sampleSnapshot())
	c.ApplyFeedError(&feed.StatusError{Code: 502})

	s := c.State()
	assert.Equal(t, feed.UserMessage, s.Error)
	assert.False(t, s.Loading)
	assert.Len(t, s.Results, 3)

	c.ApplySnapshot(sampleSnapshot())
	assert.Empty(t, c.State().Error)
}

func TestController_StreamOutageShowsBanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _, _ := newController(t)
	r := feed.NewStreamReader("ws"+strings.TrimPrefix(srv.URL, "http"), c)
	r.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		s := c.State()
		return s.Error == feed.UserMessage && !s.Loading
	}, time.Second, 5*time.Millisecond, "first failed dial ends loading and raises the banner")
	cancel()
	require.NoError(t, <-errc)
}

func TestController_SelectSymbolClearsInputs(t *testing.T) {
	c, _, pub := newController(t)
	c.ApplySnapshot(sampleSnapshot())
	c.OpenTradingPanel(models.Sell)
	c.SetAmount("3")
	c.SetPrice("10")

	res, err := c.SelectSymbol("BTCINR")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	s := c.State()
	assert.Equal(t, "3", s.Panel.Amount, "ignored selection leaves inputs alone")
	assert.Equal(t, "BTCUSDT", s.ActiveSymbol)

	_, err = c.SelectSymbol("ETHUSDT")
	require.NoError(t, err)
	s = c.State()
	assert.Equal(t, "ETHUSDT", s.ActiveSymbol)
	assert.Empty(t, s.Panel.Amount)
	assert.Empty(t, s.Panel.Price)
	assert.True(t, s.Panel.Open)
	assert.Len(t, pub.charts, 2)

	res, err = c.SelectSymbol("NOPEUSDT")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Fallback, resolver.ErrInvalidSymbol)
	assert.Equal(t, "BTCUSDT", c.State().ActiveSymbol)
}

func TestController_ConfirmTrade(t *testing.T) {
	c, _, pub := newController(t)
	c.ApplySnapshot(sampleSnapshot())

	c.OpenTradingPanel(models.Buy)
	c.SetAmount("10")
	c.SetPrice("200")
	_, err := c.ConfirmTrade()
	require.Error(t, err)
	s := c.State()
	assert.Equal(t, &Notice{Kind: NoticeError, Message: "Insufficient funds"}, s.Notice)
	assert.True(t, s.Panel.Open, "rejection keeps the panel")
	assert.Equal(t, "1000", s.Wallet.Balance.String())

	c.SetAmount("2")
	c.SetPrice("100")
	tx, err := c.ConfirmTrade()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", tx.Symbol)

	s = c.State()
	assert.Equal(t, &Notice{Kind: NoticeSuccess, Message: "Successfully bought 2 BTCUSDT"}, s.Notice)
	assert.False(t, s.Panel.Open)
	assert.Empty(t, s.Panel.Amount)
	assert.Equal(t, "800", s.Wallet.Balance.String())
	assert.Nil(t, s.Transactions, "history hidden until toggled")
	require.Len(t, pub.trades, 1)

	assert.True(t, c.ToggleTransactions())
	s = c.State()
	require.Len(t, s.Transactions, 1)
	assert.Equal(t, tx.ID, s.Transactions[0].ID)
	assert.False(t, c.ToggleTransactions())
}

func TestController_InvalidTradeInput(t *testing.T) {
	c, _, _ := newController(t)
	c.OpenTradingPanel(models.Sell)
	c.SetAmount("abc")
	c.SetPrice("1")
	_, err := c.ConfirmTrade()
	require.Error(t, err)
	assert.Equal(t, "Please enter valid amount and price", c.State().Notice.Message)
	assert.Empty(t, c.Transactions())
}

func TestController_OrderBook(t *testing.T) {
	c, _, _ := newController(t)
	_, err := c.OrderBook()
	assert.ErrorIs(t, err, ErrNoTicker)

	c.ApplySnapshot(sampleSnapshot())
	b, err := c.OrderBook()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", b.Market)
	assert.Equal(t, 101.0, b.Asks[0].Price)
	assert.Equal(t, 100.5, b.Current.Price)
}

func TestController_UpdateAllowlist(t *testing.T) {
	c, _, _ := newController(t)
	_, err := c.SelectSymbol("SOLUSDT")
	require.NoError(t, err)

	narrowed, err := catalog.New("ETHUSDT")
	require.NoError(t, err)
	_, err = c.UpdateAllowlist(narrowed)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", c.State().ActiveSymbol)
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *stubFetcher) Fetch(context.Context) ([]models.TickerRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return sampleSnapshot(), nil
}

func TestController_StartPollsAndCloseDiscards(t *testing.T) {
	f := &stubFetcher{}
	c := New(WithFetcher(f), WithPollInterval(time.Hour), WithScheduler(scheduler.NewManual()))
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return !c.State().Loading }, time.Second, 5*time.Millisecond)
	c.Close()

	calls := 0
	c.Subscribe(func(State) { calls++ })
	c.ApplySnapshot(nil)
	assert.Len(t, c.State().Results, 3, "snapshot after close is discarded")
	assert.Zero(t, calls)
}

func TestController_UnsupportedChartFallsBackToDefault(t *testing.T) {
	c, _, _ := newController(t,
		WithMounter(chart.NewSurface(chart.WithLoadCheck(chart.RejectSymbols("ETHUSDT")))))
	c.ApplySnapshot(sampleSnapshot())

	res, err := c.SelectSymbol("ETHUSDT")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Fallback, resolver.ErrChartLoad)
	s := c.State()
	assert.Equal(t, "BTCUSDT", s.ActiveSymbol)
	require.NotNil(t, s.Chart)
	assert.Equal(t, "BINANCE:BTCUSDT", s.Chart.Symbol)
}
