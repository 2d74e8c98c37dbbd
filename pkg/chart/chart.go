// Package chart models the third-party chart embed as a mount point the
// engine configures but never renders.
package chart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alim08/cryptotrader/pkg/logger"
	"go.uber.org/zap"
)

// VendorPrefix qualifies symbols for the chart vendor's exchange feed.
const VendorPrefix = "BINANCE:"

// ErrLoadFailed is returned when the embed fails to initialize.
var ErrLoadFailed = errors.New("chart embed failed to load")

// Config is the one-way configuration pushed to the widget.
type Config struct {
	Symbol            string `json:"symbol"`
	Interval          string `json:"interval"`
	Timezone          string `json:"timezone"`
	Theme             string `json:"theme"`
	Style             string `json:"style"`
	Locale            string `json:"locale"`
	Autosize          bool   `json:"autosize"`
	HideTopToolbar    bool   `json:"hide_top_toolbar"`
	HideSideToolbar   bool   `json:"hide_side_toolbar"`
	AllowSymbolChange bool   `json:"allow_symbol_change"`
	SaveImage         bool   `json:"save_image"`
}

// NewConfig returns the fixed display configuration for a normalized symbol.
func NewConfig(symbol string) Config {
	return Config{
		Symbol:            VendorPrefix + symbol,
		Interval:          "D",
		Timezone:          "Etc/UTC",
		Theme:             "dark",
		Style:             "1",
		Locale:            "en",
		Autosize:          true,
		HideTopToolbar:    false,
		HideSideToolbar:   true,
		AllowSymbolChange: false,
		SaveImage:         false,
	}
}

// Handle identifies one mounted embed.
type Handle struct {
	ID     uint64
	Config Config
}

// Mounter is the rendering collaborator: the engine computes a Config and
// asks the mounter to show it.
type Mounter interface {
	Mount(cfg Config) (Handle, error)
	Unmount(h Handle)
}

// Surface is the in-process mount point. It holds at most one embed:
// mounting clears whatever was there and creates a fresh one.
type Surface struct {
	mu        sync.Mutex
	seq       uint64
	current   *Handle
	loadCheck func(Config) error
}

// Option configures a Surface.
type Option func(*Surface)

// WithLoadCheck installs a probe run before each mount; an error from it is
// reported as a load failure.
func WithLoadCheck(fn func(Config) error) Option {
	return func(s *Surface) { s.loadCheck = fn }
}

// RejectSymbols is a load check failing for symbols the chart vendor cannot
// render. Symbols are compared without the vendor prefix, case-insensitively.
func RejectSymbols(symbols ...string) func(Config) error {
	blocked := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			blocked[s] = struct{}{}
		}
	}
	return func(cfg Config) error {
		if _, ok := blocked[strings.TrimPrefix(cfg.Symbol, VendorPrefix)]; ok {
			return fmt.Errorf("symbol %s not supported by chart vendor", cfg.Symbol)
		}
		return nil
	}
}

// NewSurface returns an empty mount point.
func NewSurface(opts ...Option) *Surface {
	s := &Surface{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Mount implements Mounter.
func (s *Surface) Mount(cfg Config) (Handle, error) {
	s.mu.Lock()
	s.current = nil
	if s.loadCheck != nil {
		if err := s.loadCheck(cfg); err != nil {
			s.mu.Unlock()
			return Handle{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, cfg.Symbol, err)
		}
	}
	s.seq++
	h := Handle{ID: s.seq, Config: cfg}
	s.current = &h
	s.mu.Unlock()

	logger.Log.Debug("chart mounted", zap.Uint64("handle", h.ID), zap.String("symbol", cfg.Symbol))
	return h, nil
}

// Unmount implements Mounter. Unmounting a stale handle is a no-op.
func (s *Surface) Unmount(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == h.ID {
		s.current = nil
	}
}

// Current returns the mounted embed, if any.
func (s *Surface) Current() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Handle{}, false
	}
	return *s.current, true
}
