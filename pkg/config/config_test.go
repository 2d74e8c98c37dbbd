package config

import (
    "errors"
    "os"
    "path/filepath"
    "reflect"
    "testing"
    "time"

    "github.com/alim08/cryptotrader/pkg/validation"
)

func TestLoad_Defaults(t *testing.T) {
    cfg, err := load(nil)
    if err != nil {
        t.Fatalf("expected no error, got %v", err)
    }
    if cfg.Feed.URL != "https://api.coindcx.com/exchange/ticker" {
        t.Errorf("Feed.URL = %q", cfg.Feed.URL)
    }
    if cfg.Feed.PollInterval != 30*time.Second {
        t.Errorf("PollInterval = %v", cfg.Feed.PollInterval)
    }
    if cfg.SearchDebounce != 300*time.Millisecond {
        t.Errorf("SearchDebounce = %v", cfg.SearchDebounce)
    }
    if cfg.StartingBalance != 1000 || cfg.HistoryLimit != 50 {
        t.Errorf("ledger defaults = %v/%d", cfg.StartingBalance, cfg.HistoryLimit)
    }
    if cfg.RedisURL != "" {
        t.Errorf("RedisURL should be optional, got %q", cfg.RedisURL)
    }
}

func TestLoad_EnvOverrides(t *testing.T) {
    t.Setenv("REDIS_URL", "redis://localhost:6379/0")
    t.Setenv("FEED_POLL_INTERVAL", "5s")
    t.Setenv("PORT", "9000")
    t.Setenv("ALLOWED_SYMBOLS", " btcusdt, ETHUSDT ,")
    t.Setenv("CHART_UNSUPPORTED", "lunausdt")

    cfg, err := load([]string{"-test.v", "-test.run=TestLoad"})
    if err != nil {
        t.Fatalf("expected no error, got %v", err)
    }
    if cfg.RedisURL != "redis://localhost:6379/0" {
        t.Errorf("RedisURL = %q", cfg.RedisURL)
    }
    if cfg.Feed.PollInterval != 5*time.Second {
        t.Errorf("PollInterval = %v", cfg.Feed.PollInterval)
    }
    if cfg.HTTPPort != 9000 {
        t.Errorf("HTTPPort = %d", cfg.HTTPPort)
    }
    want := []string{"BTCUSDT", "ETHUSDT"}
    if !reflect.DeepEqual(cfg.AllowedSymbols, want) {
        t.Errorf("AllowedSymbols = %v; want %v", cfg.AllowedSymbols, want)
    }
    if !reflect.DeepEqual(cfg.ChartUnsupported, []string{"LUNAUSDT"}) {
        t.Errorf("ChartUnsupported = %v", cfg.ChartUnsupported)
    }
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
    path := filepath.Join(t.TempDir(), "trader.yaml")
    yml := []byte(`
feed:
  source: websocket
  url: ws://file-feed
  poll_interval: 10s
history_limit: 20
port: 7000
`)
    if err := os.WriteFile(path, yml, 0o600); err != nil {
        t.Fatal(err)
    }
    t.Setenv("CONFIG_FILE", path)
    t.Setenv("PORT", "7100")

    cfg, err := load([]string{"-port", "7200"})
    if err != nil {
        t.Fatalf("expected no error, got %v", err)
    }
    if cfg.Feed.Source != SourceWebsocket || cfg.Feed.URL != "ws://file-feed" {
        t.Errorf("Feed = %+v", cfg.Feed)
    }
    if cfg.Feed.PollInterval != 10*time.Second {
        t.Errorf("PollInterval = %v", cfg.Feed.PollInterval)
    }
    if cfg.HistoryLimit != 20 {
        t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
    }
    if cfg.HTTPPort != 7200 {
        t.Errorf("HTTPPort = %d; flag should win", cfg.HTTPPort)
    }
}

func TestLoad_InvalidEnv(t *testing.T) {
    t.Setenv("PORT", "eighty")
    if _, err := load(nil); err == nil {
        t.Fatal("expected error for non-numeric PORT")
    }
}

func TestLoad_ValidationErrors(t *testing.T) {
    t.Setenv("FEED_SOURCE", "carrier-pigeon")
    t.Setenv("ALLOWED_SYMBOLS", "BTCINR")

    _, err := load(nil)
    var verrs validation.ValidationErrors
    if !errors.As(err, &verrs) {
        t.Fatalf("expected ValidationErrors, got %v", err)
    }
    if len(verrs) != 2 {
        t.Errorf("got %d errors: %v", len(verrs), verrs)
    }
}

func TestLoad_WebsocketNeedsWSURL(t *testing.T) {
    t.Setenv("FEED_SOURCE", "websocket")
    if _, err := load(nil); err == nil {
        t.Fatal("expected error for http URL with websocket source")
    }
}

func TestSplitAndTrim(t *testing.T) {
    in := " a , ,b ,c"
    got := splitAndTrim(in, ",")
    want := []string{"a", "b", "c"}
    if !reflect.DeepEqual(got, want) {
        t.Errorf("splitAndTrim = %v; want %v", got, want)
    }
}
