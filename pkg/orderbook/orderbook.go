// Package orderbook synthesizes a display-only depth ladder around a quote.
package orderbook

import "github.com/alim08/cryptotrader/pkg/models"

// Depth is the number of levels on each side.
const Depth = 5

const (
	stepFraction  = 0.001
	askBaseAmount = 0.5
	askStepAmount = 0.1
	bidBaseAmount = 0.7
	bidStepAmount = 0.15
	currentAmount = 0.5
)

// Level is one row of the ladder.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Total  float64 `json:"total"`
}

// Book is the synthesized ladder: asks ascending away from the ask, the
// current row at the last price, bids descending away from the bid.
type Book struct {
	Market  string  `json:"market"`
	Asks    []Level `json:"asks"`
	Current Level   `json:"current"`
	Bids    []Level `json:"bids"`
}

func level(price, amount float64) Level {
	return Level{Price: price, Amount: amount, Total: price * amount}
}

// Build derives the ladder from a single record. It is pure and has no
// relation to real market depth.
func Build(rec models.TickerRecord) Book {
	ask, bid, last := rec.AskPrice(), rec.BidPrice(), rec.Last()
	b := Book{
		Market:  rec.Market,
		Asks:    make([]Level, Depth),
		Bids:    make([]Level, Depth),
		Current: level(last, currentAmount),
	}
	for i := 0; i < Depth; i++ {
		f := float64(i)
		b.Asks[i] = level(ask*(1+f*stepFraction), askBaseAmount+f*askStepAmount)
		b.Bids[i] = level(bid*(1-f*stepFraction), bidBaseAmount+f*bidStepAmount)
	}
	return b
}
