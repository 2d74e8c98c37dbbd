// Package feed pulls whole ticker snapshots from a market data source and
// hands them to a Sink.
package feed

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/alim08/cryptotrader/pkg/models"
)

// DefaultURL is the public ticker endpoint.
const DefaultURL = "https://api.coindcx.com/exchange/ticker"

// ErrFeedUnavailable covers every fetch failure: transport, status or decode.
var ErrFeedUnavailable = errors.New("feed unavailable")

// UserMessage is the banner shown while the feed is failing.
const UserMessage = "Failed to load cryptocurrency data. Please try again."

// StatusError is returned for a non-2xx response.
type StatusError struct {
    Code int
}

func (e *StatusError) Error() string {
    return fmt.Sprintf("feed returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrFeedUnavailable }

// Fetcher returns one complete snapshot.
type Fetcher interface {
    Fetch(ctx context.Context) ([]models.TickerRecord, error)
}

// HTTPFetcher GETs a JSON array of ticker records.
type HTTPFetcher struct {
    URL    string
    Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a 5s timeout and a small idle pool.
func NewHTTPFetcher(url string) *HTTPFetcher {
    if url == "" {
        url = DefaultURL
    }
    return &HTTPFetcher{
        URL: url,
        Client: &http.Client{
            Timeout: 5 * time.Second,
            Transport: &http.Transport{
                MaxIdleConns:        10,
                MaxIdleConnsPerHost: 5,
                IdleConnTimeout:     30 * time.Second,
            },
        },
    }
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]models.TickerRecord, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
    }
    req.Header.Set("Accept", "application/json")

    resp, err := f.Client.Do(req)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        return nil, &StatusError{Code: resp.StatusCode}
    }

    var batch []models.TickerRecord
    if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
        return nil, fmt.Errorf("%w: decode: %v", ErrFeedUnavailable, err)
    }
    return batch, nil
}
