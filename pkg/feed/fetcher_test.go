package feed

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestHTTPFetcher_DecodesMixedPayload(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`[
            {"market":"BTCUSDT","last_price":"61234.50","bid":61200,"ask":"61260","volume":"12.5"},
            {"market":"ETHINR","last_price":250000.1,"bid":null,"ask":"x"},
            {"market":"SOLUSDT","last_price":"n/a","bid":1,"ask":2,"extra":{"nested":true}}
        ]`))
    }))
    defer srv.Close()

    recs, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
    require.NoError(t, err)
    require.Len(t, recs, 3)

    assert.Equal(t, "BTCUSDT", recs[0].Market)
    assert.Equal(t, 61234.5, recs[0].Last())
    assert.Equal(t, "61234.50", recs[0].LastPrice.Text())
    assert.Equal(t, 61260.0, recs[0].AskPrice())

    assert.Zero(t, recs[1].BidPrice())
    assert.Zero(t, recs[1].AskPrice())

    assert.Zero(t, recs[2].Last(), "garbage price reads as zero")
    assert.Equal(t, "0.00", recs[2].DisplayPrice())
}

func TestHTTPFetcher_Non2xx(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusServiceUnavailable)
    }))
    defer srv.Close()

    _, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
    assert.ErrorIs(t, err, ErrFeedUnavailable)
    var se *StatusError
    require.ErrorAs(t, err, &se)
    assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestHTTPFetcher_BadJSON(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`{"not":"an array"}`))
    }))
    defer srv.Close()

    _, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
    assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestHTTPFetcher_TransportError(t *testing.T) {
    srv := httptest.NewServer(http.NotFoundHandler())
    url := srv.URL
    srv.Close()

    _, err := NewHTTPFetcher(url).Fetch(context.Background())
    assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestNewHTTPFetcher_DefaultURL(t *testing.T) {
    assert.Equal(t, DefaultURL, NewHTTPFetcher("").URL)
}

func TestBinanceFetcher_JoinsBookAndPrice(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/api/v3/ticker/bookTicker", func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`[
            {"symbol":"BTCUSDT","bidPrice":"100.0","bidQty":"1","askPrice":"101.0","askQty":"2"},
            {"symbol":"ETHBTC","bidPrice":"0.05","bidQty":"1","askPrice":"0.051","askQty":"2"}
        ]`))
    })
    mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`[{"symbol":"BTCUSDT","price":"100.5"}]`))
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    recs, err := NewBinanceFetcher(srv.URL).Fetch(context.Background())
    require.NoError(t, err)
    require.Len(t, recs, 2)
    assert.Equal(t, "BTCUSDT", recs[0].Market)
    assert.Equal(t, 100.5, recs[0].Last())
    assert.Equal(t, 100.0, recs[0].BidPrice())
    assert.Equal(t, 101.0, recs[0].AskPrice())
    assert.Zero(t, recs[1].Last())
}

func TestBinanceFetcher_Error(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTeapot)
        w.Write([]byte(`{"code":-1,"msg":"nope"}`))
    }))
    defer srv.Close()

    _, err := NewBinanceFetcher(srv.URL).Fetch(context.Background())
    assert.ErrorIs(t, err, ErrFeedUnavailable)
}
