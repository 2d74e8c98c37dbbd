// Package engine is the application controller. It owns every piece of
// client state and is the only thing callers mutate; reads go through State
// and Subscribe.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alim08/cryptotrader/pkg/catalog"
	"github.com/alim08/cryptotrader/pkg/chart"
	"github.com/alim08/cryptotrader/pkg/feed"
	"github.com/alim08/cryptotrader/pkg/ledger"
	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/orderbook"
	"github.com/alim08/cryptotrader/pkg/resolver"
	"github.com/alim08/cryptotrader/pkg/scheduler"
	"github.com/alim08/cryptotrader/pkg/search"
	"github.com/alim08/cryptotrader/pkg/store"
)

// ErrNoTicker is returned by OrderBook when the active symbol has no quote
// in the current snapshot.
var ErrNoTicker = errors.New("no ticker for active symbol")

const publishTimeout = 2 * time.Second

// Publisher mirrors engine events to an external bus.
type Publisher interface {
	PublishSnapshot(ctx context.Context, records []models.TickerRecord) error
	PublishTrade(ctx context.Context, tx models.Transaction) error
	PublishChart(ctx context.Context, cfg chart.Config) error
}

// Notice kinds.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice is a one-line user-facing message.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Panel is the trading panel: closed, or open for one side with the raw
// text the user typed.
type Panel struct {
	Open   bool             `json:"open"`
	Type   models.TradeType `json:"type"`
	Amount string           `json:"amount"`
	Price  string           `json:"price"`
}

// State is a read-only copy of everything the UI renders.
type State struct {
	Query            string                `json:"query"`
	Results          []models.TickerRecord `json:"results"`
	ActiveSymbol     string                `json:"active_symbol"`
	ActiveTicker     *models.TickerRecord  `json:"active_ticker,omitempty"`
	Chart            *chart.Config         `json:"chart,omitempty"`
	Panel            Panel                 `json:"panel"`
	Wallet           ledger.Wallet         `json:"wallet"`
	ShowTransactions bool                  `json:"show_transactions"`
	Transactions     []models.Transaction  `json:"transactions,omitempty"`
	Loading          bool                  `json:"loading"`
	Error            string                `json:"error,omitempty"`
	Notice           *Notice               `json:"notice,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Controller wires the store, search, resolver, ledger and feed together.
type Controller struct {
	store    *store.Store
	search   *search.Engine
	resolver *resolver.Resolver
	ledger   *ledger.Ledger

	fetcher      feed.Fetcher
	pollInterval time.Duration
	publisher    Publisher
	log          *zap.Logger

	mu      sync.Mutex
	panel   Panel
	showTx  bool
	loading bool
	feedErr string
	notice  *Notice
	subs    map[int]func(State)
	nextSub int
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type options struct {
	fetcher      feed.Fetcher
	pollInterval time.Duration
	debounce     time.Duration
	scheduler    scheduler.Scheduler
	catalog      *catalog.Catalog
	mounter      chart.Mounter
	ledger       *ledger.Ledger
	publisher    Publisher
}

// Option configures a Controller.
type Option func(*options)

// WithFetcher sets the snapshot source. Without one Start does not poll.
func WithFetcher(f feed.Fetcher) Option { return func(o *options) { o.fetcher = f } }

func WithPollInterval(d time.Duration) Option { return func(o *options) { o.pollInterval = d } }

func WithDebounce(d time.Duration) Option { return func(o *options) { o.debounce = d } }

func WithScheduler(s scheduler.Scheduler) Option { return func(o *options) { o.scheduler = s } }

func WithCatalog(c *catalog.Catalog) Option { return func(o *options) { o.catalog = c } }

func WithMounter(m chart.Mounter) Option { return func(o *options) { o.mounter = m } }

func WithLedger(l *ledger.Ledger) Option { return func(o *options) { o.ledger = l } }

// WithPublisher mirrors snapshots, trades and chart mounts to p.
func WithPublisher(p Publisher) Option { return func(o *options) { o.publisher = p } }

// New builds a controller. Nothing runs until Start.
func New(opts ...Option) *Controller {
	o := options{
		pollInterval: feed.DefaultInterval,
		debounce:     search.DefaultDebounce,
		scheduler:    scheduler.Real{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.catalog == nil {
		o.catalog = catalog.Default()
	}
	if o.mounter == nil {
		o.mounter = chart.NewSurface()
	}
	if o.ledger == nil {
		o.ledger = ledger.New()
	}

	st := store.New()
	c := &Controller{
		store:        st,
		search:       search.NewEngine(st, o.scheduler, o.debounce),
		resolver:     resolver.New(o.catalog, o.mounter),
		ledger:       o.ledger,
		fetcher:      o.fetcher,
		pollInterval: o.pollInterval,
		publisher:    o.publisher,
		log:          logger.Named("engine"),
		loading:      true,
		subs:         make(map[int]func(State)),
		ctx:          context.Background(),
	}
	c.search.OnChange(func(string, []models.TickerRecord) { c.notify() })
	c.resolver.OnResolved(c.onResolved)
	return c
}

// Start resolves the default symbol and, if a fetcher is configured, starts
// the poller. Calling it twice is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.mu.Unlock()

	if _, err := c.resolver.Start(); err != nil {
		c.log.Warn("default chart unavailable", zap.Error(err))
	}

	if c.fetcher != nil {
		p := feed.NewPoller(c.fetcher, c, c.pollInterval)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			p.Run(runCtx)
		}()
	}
	c.notify()
	return nil
}

// Close stops polling and any pending search recompute. Results arriving
// afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	c.subs = map[int]func(State){}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.search.Close()
	c.wg.Wait()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ApplySnapshot implements feed.Sink.
func (c *Controller) ApplySnapshot(records []models.TickerRecord) {
	if c.isClosed() {
		return
	}
	c.store.ReplaceSnapshot(records)
	c.mu.Lock()
	c.loading = false
	c.feedErr = ""
	c.mu.Unlock()

	c.search.Refresh()
	c.publish("snapshot", func(ctx context.Context, p Publisher) error {
		return p.PublishSnapshot(ctx, records)
	})
}

// ApplyFeedError implements feed.Sink. The previous snapshot stays visible.
func (c *Controller) ApplyFeedError(err error) {
	if c.isClosed() {
		return
	}
	c.mu.Lock()
	c.loading = false
	c.feedErr = feed.UserMessage
	c.mu.Unlock()
	c.log.Debug("feed error applied", zap.Error(err))
	c.notify()
}

// SetQuery echoes q now and refreshes results after the debounce window.
func (c *Controller) SetQuery(q string) {
	c.search.SetQuery(q)
	c.notify()
}

// SelectSymbol forwards a click to the resolver. Non-USDT symbols are
// ignored and leave every piece of state untouched.
func (c *Controller) SelectSymbol(symbol string) (resolver.Result, error) {
	res, err := c.resolver.Select(symbol)
	if !res.Accepted {
		return res, nil
	}
	if err != nil {
		c.log.Warn("symbol resolved without chart", zap.String("symbol", res.Symbol), zap.Error(err))
	}
	return res, err
}

func (c *Controller) onResolved(symbol string) {
	c.mu.Lock()
	c.panel.Amount = ""
	c.panel.Price = ""
	c.mu.Unlock()

	if h, ok := c.resolver.Chart(); ok {
		cfg := h.Config
		c.publish("chart", func(ctx context.Context, p Publisher) error {
			return p.PublishChart(ctx, cfg)
		})
	}
	c.notify()
}

// OpenTradingPanel shows the panel for one side.
func (c *Controller) OpenTradingPanel(typ models.TradeType) {
	c.mu.Lock()
	c.panel.Open = true
	c.panel.Type = typ
	c.notice = nil
	c.mu.Unlock()
	c.notify()
}

// CloseTradingPanel hides the panel and discards typed input.
func (c *Controller) CloseTradingPanel() {
	c.mu.Lock()
	c.panel = Panel{}
	c.mu.Unlock()
	c.notify()
}

// SetAmount stores the raw amount text. It is parsed only on confirm.
func (c *Controller) SetAmount(text string) {
	c.mu.Lock()
	c.panel.Amount = text
	c.mu.Unlock()
	c.notify()
}

// SetPrice stores the raw price text. It is parsed only on confirm.
func (c *Controller) SetPrice(text string) {
	c.mu.Lock()
	c.panel.Price = text
	c.mu.Unlock()
	c.notify()
}

// ConfirmTrade submits the panel's input for the active symbol. On success
// the panel closes and a confirmation notice is set; on rejection the panel
// stays as it was and an error notice carries the reason.
func (c *Controller) ConfirmTrade() (models.Transaction, error) {
	c.mu.Lock()
	panel := c.panel
	c.mu.Unlock()

	typ := panel.Type
	if typ == "" {
		typ = models.Buy
	}
	_, tx, err := c.ledger.ConfirmTrade(typ, c.resolver.Active(), panel.Amount, panel.Price)

	c.mu.Lock()
	if err != nil {
		c.notice = &Notice{Kind: NoticeError, Message: ledger.Message(err)}
	} else {
		c.panel = Panel{}
		c.notice = &Notice{Kind: NoticeSuccess, Message: ledger.Confirmation(tx)}
	}
	c.mu.Unlock()

	if err == nil {
		c.publish("trade", func(ctx context.Context, p Publisher) error {
			return p.PublishTrade(ctx, tx)
		})
	}
	c.notify()
	return tx, err
}

// ToggleTransactions flips history visibility and returns the new value.
func (c *Controller) ToggleTransactions() bool {
	c.mu.Lock()
	c.showTx = !c.showTx
	v := c.showTx
	c.mu.Unlock()
	c.notify()
	return v
}

// DismissNotice clears the current notice.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	c.notice = nil
	c.mu.Unlock()
	c.notify()
}

// UpdateAllowlist swaps the catalog and re-resolves the active symbol.
func (c *Controller) UpdateAllowlist(cat *catalog.Catalog) (resolver.Result, error) {
	return c.resolver.UpdateAllowlist(cat)
}

// Wallet returns the current balance.
func (c *Controller) Wallet() ledger.Wallet { return c.ledger.Wallet() }

// Transactions returns the history regardless of visibility.
func (c *Controller) Transactions() []models.Transaction { return c.ledger.Transactions() }

// Snapshot returns the raw unfiltered snapshot.
func (c *Controller) Snapshot() []models.TickerRecord { return c.store.Snapshot() }

// Allowlist returns the catalog in force.
func (c *Controller) Allowlist() *catalog.Catalog { return c.resolver.Allowlist() }

// OrderBook synthesizes the ladder for the active symbol.
func (c *Controller) OrderBook() (orderbook.Book, error) {
	sym := c.resolver.Active()
	rec, ok := c.store.Lookup(sym)
	if !ok {
		return orderbook.Book{Market: sym}, ErrNoTicker
	}
	return orderbook.Build(rec), nil
}

// State returns a consistent copy of the UI state.
func (c *Controller) State() State {
	active := c.resolver.Active()
	s := State{
		Query:        c.search.Query(),
		Results:      c.search.Results(),
		ActiveSymbol: active,
		Wallet:       c.ledger.Wallet(),
		UpdatedAt:    c.store.UpdatedAt(),
	}
	if rec, ok := c.store.Lookup(active); ok {
		s.ActiveTicker = &rec
	}
	if h, ok := c.resolver.Chart(); ok {
		cfg := h.Config
		s.Chart = &cfg
	}

	c.mu.Lock()
	s.Panel = c.panel
	s.ShowTransactions = c.showTx
	s.Loading = c.loading
	s.Error = c.feedErr
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	c.mu.Unlock()

	if s.ShowTransactions {
		s.Transactions = c.ledger.Transactions()
	}
	return s
}

// Subscribe registers fn for state changes. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if c.closed || len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	s := c.State()
	for _, fn := range fns {
		fn(s)
	}
}

func (c *Controller) publish(kind string, fn func(context.Context, Publisher) error) {
	if c.publisher == nil {
		return
	}
	c.mu.Lock()
	parent := c.ctx
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, publishTimeout)
	defer cancel()
	if err := fn(ctx, c.publisher); err != nil {
		c.log.Warn("publish failed", zap.String("kind", kind), zap.Error(err))
	}
}
