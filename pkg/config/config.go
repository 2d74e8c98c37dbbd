package config

import (
    "flag"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "github.com/alim08/cryptotrader/pkg/validation"
)

// Feed sources.
const (
    SourceHTTP      = "http"
    SourceBinance   = "binance"
    SourceWebsocket = "websocket"
)

type Feed struct {
    URL          string        `yaml:"url"`
    Source       string        `yaml:"source" validate:"oneof=http binance websocket"`
    PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

type Config struct {
    Feed             Feed          `yaml:"feed"`
    SearchDebounce   time.Duration `yaml:"search_debounce" validate:"gt=0"`
    StartingBalance  float64       `yaml:"starting_balance" validate:"gte=0"`
    HistoryLimit     int           `yaml:"history_limit" validate:"gt=0"`
    AllowedSymbols   []string      `yaml:"allowed_symbols" validate:"dive,usdtpair"`
    // ChartUnsupported lists pairs the chart vendor cannot render; selecting
    // one falls back to the default symbol.
    ChartUnsupported []string      `yaml:"chart_unsupported" validate:"dive,usdtpair"`
    RedisURL         string        `yaml:"redis_url"`
    HTTPPort         int           `yaml:"port" validate:"gt=0,lte=65535"`
    MetricsPort      int           `yaml:"metrics_port" validate:"gt=0,lte=65535"`
}

// Default returns the built-in settings.
func Default() *Config {
    return &Config{
        Feed: Feed{
            URL:          "https://api.coindcx.com/exchange/ticker",
            Source:       SourceHTTP,
            PollInterval: 30 * time.Second,
        },
        SearchDebounce:  300 * time.Millisecond,
        StartingBalance: 1000,
        HistoryLimit:    50,
        HTTPPort:        8080,
        MetricsPort:     8082,
    }
}

// Load builds the config from defaults, an optional YAML file, environment
// variables and finally explicitly set flags, each layer overriding the last.
// Flags come from a local FlagSet with -test.* args stripped.
func Load() (*Config, error) {
    return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
    // 1. Build a fresh FlagSet so we don't collide with `go test` flags
    fs := flag.NewFlagSet("config", flag.ContinueOnError)
    configFile := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file")
    redisURL := fs.String("redis", "", "Redis connection URL")
    httpPort := fs.Int("port", 0, "HTTP listen port")
    metricsPort := fs.Int("metrics-port", 0, "Metrics server port")
    feedURL := fs.String("feed", "", "Ticker feed URL")

    // 2. Filter out any -test.* args before parsing
    var appArgs []string
    for _, arg := range args {
        if strings.HasPrefix(arg, "-test.") {
            continue
        }
        appArgs = append(appArgs, arg)
    }
    if err := fs.Parse(appArgs); err != nil {
        return nil, err
    }

    cfg := Default()

    // 3. YAML file
    if *configFile != "" {
        if err := cfg.loadFile(*configFile); err != nil {
            return nil, err
        }
    }

    // 4. Environment
    if err := cfg.loadEnv(); err != nil {
        return nil, err
    }

    // 5. Flags the user actually passed
    fs.Visit(func(f *flag.Flag) {
        switch f.Name {
        case "redis":
            cfg.RedisURL = *redisURL
        case "port":
            cfg.HTTPPort = *httpPort
        case "metrics-port":
            cfg.MetricsPort = *metricsPort
        case "feed":
            cfg.Feed.URL = *feedURL
        }
    })

    // 6. Validate
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

// Validate checks field ranges and that a websocket source has a ws URL.
func (c *Config) Validate() error {
    if verrs := validation.ValidateStruct(c); verrs != nil {
        return verrs
    }
    if c.Feed.Source == SourceWebsocket &&
        !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
        return fmt.Errorf("websocket feed needs a ws:// or wss:// URL, got %q", c.Feed.URL)
    }
    if c.Feed.Source == SourceHTTP && c.Feed.URL == "" {
        return fmt.Errorf("missing required config: FEED_URL or -feed")
    }
    return nil
}

func (c *Config) loadFile(path string) error {
    b, err := os.ReadFile(path)
    if err != nil {
        return fmt.Errorf("read config file: %w", err)
    }
    if err := yaml.Unmarshal(b, c); err != nil {
        return fmt.Errorf("parse config file %s: %w", path, err)
    }
    return nil
}

func (c *Config) loadEnv() error {
    if v := os.Getenv("FEED_URL"); v != "" {
        c.Feed.URL = v
    }
    if v := os.Getenv("FEED_SOURCE"); v != "" {
        c.Feed.Source = strings.ToLower(v)
    }
    if v := os.Getenv("REDIS_URL"); v != "" {
        c.RedisURL = v
    }
    if v := os.Getenv("ALLOWED_SYMBOLS"); v != "" {
        c.AllowedSymbols = nil
        for _, s := range splitAndTrim(v, ",") {
            c.AllowedSymbols = append(c.AllowedSymbols, strings.ToUpper(s))
        }
    }
    if v := os.Getenv("CHART_UNSUPPORTED"); v != "" {
        c.ChartUnsupported = nil
        for _, s := range splitAndTrim(v, ",") {
            c.ChartUnsupported = append(c.ChartUnsupported, strings.ToUpper(s))
        }
    }

    var err error
    if c.Feed.PollInterval, err = durationEnv("FEED_POLL_INTERVAL", c.Feed.PollInterval); err != nil {
        return err
    }
    if c.SearchDebounce, err = durationEnv("SEARCH_DEBOUNCE", c.SearchDebounce); err != nil {
        return err
    }
    if c.HTTPPort, err = intEnv("PORT", c.HTTPPort); err != nil {
        return err
    }
    if c.MetricsPort, err = intEnv("METRICS_PORT", c.MetricsPort); err != nil {
        return err
    }
    if c.HistoryLimit, err = intEnv("HISTORY_LIMIT", c.HistoryLimit); err != nil {
        return err
    }
    if v := os.Getenv("STARTING_BALANCE"); v != "" {
        f, err := strconv.ParseFloat(v, 64)
        if err != nil {
            return fmt.Errorf("invalid STARTING_BALANCE env var: %v", err)
        }
        c.StartingBalance = f
    }
    return nil
}

// splitAndTrim splits s on sep, trims spaces, and drops empty entries.
func splitAndTrim(s, sep string) []string {
    parts := []string{}
    for _, p := range strings.Split(s, sep) {
        if t := strings.TrimSpace(p); t != "" {
            parts = append(parts, t)
        }
    }
    return parts
}

func intEnv(key string, def int) (int, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return 0, fmt.Errorf("invalid %s env var: %v", key, err)
    }
    return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
    v := os.Getenv(key)
    if v == "" {
        return def, nil
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return 0, fmt.Errorf("invalid %s env var: %v", key, err)
    }
    return d, nil
}
