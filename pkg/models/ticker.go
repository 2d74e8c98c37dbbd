package models

import (
    "fmt"
    "time"
)

// TickerRecord is one market's quote as delivered by the ticker feed.
// Unknown provider fields are ignored.
type TickerRecord struct {
    Market    string  `json:"market"`
    LastPrice Number  `json:"last_price"`
    Bid       Number  `json:"bid"`
    Ask       Number  `json:"ask"`
    Volume    *Number `json:"volume,omitempty"`
    High      *Number `json:"high,omitempty"`
    Low       *Number `json:"low,omitempty"`
    Change24h *Number `json:"change_24_hour,omitempty"`
    Timestamp *Number `json:"timestamp,omitempty"`
}

// NewTickerRecord builds a record from plain floats.
func NewTickerRecord(market string, last, bid, ask float64) TickerRecord {
    return TickerRecord{
        Market:    market,
        LastPrice: NewNumber(last),
        Bid:       NewNumber(bid),
        Ask:       NewNumber(ask),
    }
}

// Last, BidPrice and AskPrice never return NaN.
func (r TickerRecord) Last() float64     { return r.LastPrice.Float() }
func (r TickerRecord) BidPrice() float64 { return r.Bid.Float() }
func (r TickerRecord) AskPrice() float64 { return r.Ask.Float() }

// Inverted reports a crossed quote (ask below bid), shown with a negative marker.
func (r TickerRecord) Inverted() bool {
    return r.AskPrice() < r.BidPrice()
}

// DisplayPrice is the list-item price text, "0.00" for garbage input.
func (r TickerRecord) DisplayPrice() string { return FormatPrice(r.Last()) }

// ToMap converts the record to a map for the latest-quote hash.
func (r TickerRecord) ToMap(at time.Time) map[string]interface{} {
    return map[string]interface{}{
        "last_price": fmt.Sprintf("%.8f", r.Last()),
        "bid":        fmt.Sprintf("%.8f", r.BidPrice()),
        "ask":        fmt.Sprintf("%.8f", r.AskPrice()),
        "ts_ms":      at.UTC().UnixMilli(),
    }
}
