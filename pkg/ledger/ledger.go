// Package ledger holds the simulated USDT wallet and the capped trade history.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/validation"
)

const (
	DefaultStartingBalance = 1000
	DefaultHistoryLimit    = 50
)

var (
	ErrInvalidTradeInput = errors.New("invalid trade input")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Message returns the text shown to the user for a rejected trade.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTradeInput):
		return "Please enter valid amount and price"
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient funds"
	case err != nil:
		return err.Error()
	}
	return ""
}

// Confirmation returns the notice shown after a trade, e.g.
// "Successfully bought 2 BTCUSDT".
func Confirmation(tx models.Transaction) string {
	verb := "bought"
	if tx.Type == models.Sell {
		verb = "sold"
	}
	return fmt.Sprintf("Successfully %s %s %s", verb, tx.Amount.String(), tx.Symbol)
}

// Wallet is the single-currency balance.
type Wallet struct {
	Balance decimal.Decimal
}

// MarshalJSON writes the balance as a JSON number.
func (w Wallet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BalanceUSDT float64 `json:"balance_usdt"`
	}{w.Balance.InexactFloat64()})
}

type tradeRequest struct {
	Type   string  `validate:"required,oneof=buy sell"`
	Symbol string  `validate:"required"`
	Amount float64 `validate:"gt=0"`
	Price  float64 `validate:"gt=0"`
}

// Ledger applies trades atomically: a rejected trade leaves no trace.
type Ledger struct {
	mu      sync.Mutex
	wallet  Wallet
	history []models.Transaction
	limit   int
	now     func() time.Time
	newID   func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithStartingBalance(b decimal.Decimal) Option {
	return func(l *Ledger) { l.wallet.Balance = b }
}

func WithHistoryLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// New returns a ledger with the default 1000 USDT balance and a 50 entry history.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		wallet: Wallet{Balance: decimal.NewFromInt(DefaultStartingBalance)},
		limit:  DefaultHistoryLimit,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	metrics.WalletBalance.Set(l.wallet.Balance.InexactFloat64())
	return l
}

func parseQuantity(text string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ConfirmTrade validates and applies one trade. Buys debit the balance and
// must be covered by it; sells credit it without any holdings check.
func (l *Ledger) ConfirmTrade(typ models.TradeType, symbol, amountText, priceText string) (Wallet, models.Transaction, error) {
	amount, okAmount := parseQuantity(amountText)
	price, okPrice := parseQuantity(priceText)
	req := tradeRequest{
		Type:   string(typ),
		Symbol: symbol,
		Amount: amount.InexactFloat64(),
		Price:  price.InexactFloat64(),
	}
	if verrs := validation.ValidateStruct(req); verrs != nil || !okAmount || !okPrice {
		l.reject(typ, "invalid_input")
		if verrs != nil {
			return l.Wallet(), models.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTradeInput, verrs)
		}
		return l.Wallet(), models.Transaction{}, ErrInvalidTradeInput
	}

	total := amount.Mul(price)

	l.mu.Lock()
	if typ == models.Buy && total.GreaterThan(l.wallet.Balance) {
		w := l.wallet
		l.mu.Unlock()
		l.reject(typ, "insufficient_funds")
		return w, models.Transaction{}, fmt.Errorf("%w: total %s exceeds balance %s",
			ErrInsufficientFunds, total.StringFixed(2), w.Balance.StringFixed(2))
	}

	if typ == models.Buy {
		l.wallet.Balance = l.wallet.Balance.Sub(total)
	} else {
		l.wallet.Balance = l.wallet.Balance.Add(total)
	}
	tx := models.Transaction{
		ID:        l.newID(),
		Type:      typ,
		Symbol:    symbol,
		Amount:    amount,
		Price:     price,
		Timestamp: l.now().UTC().Format(models.TimestampLayout),
	}
	l.history = append([]models.Transaction{tx}, l.history...)
	if len(l.history) > l.limit {
		l.history = l.history[:l.limit]
	}
	w := l.wallet
	l.mu.Unlock()

	metrics.TradesTotal.WithLabelValues(string(typ), "accepted").Inc()
	metrics.WalletBalance.Set(w.Balance.InexactFloat64())
	logger.Log.Info("trade confirmed",
		zap.String("id", tx.ID),
		zap.String("type", string(typ)),
		zap.String("symbol", symbol),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()),
		zap.String("balance", w.Balance.StringFixed(2)),
	)
	return w, tx, nil
}

func (l *Ledger) reject(typ models.TradeType, reason string) {
	metrics.TradesTotal.WithLabelValues(string(typ), reason).Inc()
	logger.Log.Debug("trade rejected", zap.String("type", string(typ)), zap.String("reason", reason))
}

// Wallet returns the current balance.
func (l *Ledger) Wallet() Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallet
}

// Transactions returns the history, most recent first.
func (l *Ledger) Transactions() []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction(nil), l.history...)
}
