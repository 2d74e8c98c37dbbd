package models

import (
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "github.com/shopspring/decimal"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// TradeType is the side of a simulated trade.
type TradeType string

const (
    Buy  TradeType = "buy"
    Sell TradeType = "sell"
)

// ParseTradeType accepts "buy" or "sell" in any case.
func ParseTradeType(s string) (TradeType, error) {
    switch TradeType(strings.ToLower(strings.TrimSpace(s))) {
    case Buy:
        return Buy, nil
    case Sell:
        return Sell, nil
    }
    return "", fmt.Errorf("unknown trade type %q", s)
}

// Transaction is an immutable record of a confirmed simulated trade.
type Transaction struct {
    ID        string
    Type      TradeType
    Symbol    string
    Amount    decimal.Decimal
    Price     decimal.Decimal
    Timestamp string
}

// Total is amount times price.
func (t Transaction) Total() decimal.Decimal {
    return t.Amount.Mul(t.Price)
}

// Time parses Timestamp; zero on malformed input.
func (t Transaction) Time() time.Time {
    ts, err := time.Parse(TimestampLayout, t.Timestamp)
    if err != nil {
        return time.Time{}
    }
    return ts
}

// Summary renders the history line, e.g. "BUY BTCUSDT 2 @ $100.00".
func (t Transaction) Summary() string {
    return fmt.Sprintf("%s %s %s @ $%s",
        strings.ToUpper(string(t.Type)), t.Symbol, t.Amount.String(), t.Price.StringFixed(2))
}

type transactionJSON struct {
    ID        string    `json:"id"`
    Type      TradeType `json:"type"`
    Symbol    string    `json:"symbol"`
    Amount    float64   `json:"amount"`
    Price     float64   `json:"price"`
    Timestamp string    `json:"timestamp"`
}

// MarshalJSON writes amount and price as JSON numbers.
func (t Transaction) MarshalJSON() ([]byte, error) {
    return json.Marshal(transactionJSON{
        ID:        t.ID,
        Type:      t.Type,
        Symbol:    t.Symbol,
        Amount:    t.Amount.InexactFloat64(),
        Price:     t.Price.InexactFloat64(),
        Timestamp: t.Timestamp,
    })
}

// ToMap converts the transaction to a map for the trades stream.
func (t Transaction) ToMap() map[string]interface{} {
    return map[string]interface{}{
        "id":        t.ID,
        "type":      string(t.Type),
        "symbol":    t.Symbol,
        "amount":    t.Amount.String(),
        "price":     t.Price.String(),
        "timestamp": t.Timestamp,
    }
}
