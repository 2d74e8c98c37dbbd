package feed

import (
    "context"
    "fmt"

    "github.com/adshao/go-binance/v2"

    "github.com/alim08/cryptotrader/pkg/models"
)

// BinanceFetcher builds snapshots from Binance's public book-ticker and price
// endpoints. No API key is needed.
type BinanceFetcher struct {
    client *binance.Client
}

// NewBinanceFetcher returns a public-data client. A non-empty baseURL
// overrides the API host.
func NewBinanceFetcher(baseURL string) *BinanceFetcher {
    c := binance.NewClient("", "")
    if baseURL != "" {
        c.BaseURL = baseURL
    }
    return &BinanceFetcher{client: c}
}

// Fetch implements Fetcher. Records follow the book-ticker order; markets
// missing from the price list get a last price of zero.
func (f *BinanceFetcher) Fetch(ctx context.Context) ([]models.TickerRecord, error) {
    books, err := f.client.NewListBookTickersService().Do(ctx)
    if err != nil {
        return nil, fmt.Errorf("%w: book tickers: %v", ErrFeedUnavailable, err)
    }
    prices, err := f.client.NewListPricesService().Do(ctx)
    if err != nil {
        return nil, fmt.Errorf("%w: prices: %v", ErrFeedUnavailable, err)
    }

    last := make(map[string]string, len(prices))
    for _, p := range prices {
        last[p.Symbol] = p.Price
    }

    out := make([]models.TickerRecord, 0, len(books))
    for _, b := range books {
        out = append(out, models.TickerRecord{
            Market:    b.Symbol,
            LastPrice: models.NumberFromString(last[b.Symbol]),
            Bid:       models.NumberFromString(b.BidPrice),
            Ask:       models.NumberFromString(b.AskPrice),
        })
    }
    return out, nil
}
