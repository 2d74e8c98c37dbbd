// Package catalog holds the allowlist of tradable pairs and the symbol normalizer.
package catalog

import (
	"sort"
	"strings"

	"github.com/alim08/cryptotrader/pkg/validation"
)

// DefaultSymbol is the fallback pair. Every Catalog contains it.
const DefaultSymbol = "BTCUSDT"

// builtin is the set of pairs the chart vendor is known to carry.
var builtin = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"ADAUSDT", "DOGEUSDT", "TRXUSDT", "DOTUSDT", "MATICUSDT",
	"LTCUSDT", "AVAXUSDT", "LINKUSDT", "ATOMUSDT", "UNIUSDT",
	"XLMUSDT", "ETCUSDT", "FILUSDT", "NEARUSDT", "APTUSDT",
	"ARBUSDT", "OPUSDT", "SHIBUSDT", "PEPEUSDT", "TONUSDT",
}

// Normalize trims and uppercases a symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(validation.SanitizeString(symbol))
}

// IsQuotePair reports whether the raw symbol ends with the USDT suffix.
// The check is case-sensitive: it runs before normalization.
func IsQuotePair(symbol string) bool {
	return strings.HasSuffix(symbol, validation.QuoteSuffix)
}

// Catalog is an immutable allowlist of known pairs, safe for concurrent reads.
type Catalog struct {
	symbols map[string]struct{}
}

// New builds a catalog from the given pairs. Entries are normalized; any
// entry that is not a well-formed USDT pair fails the whole call.
func New(symbols ...string) (*Catalog, error) {
	c := &Catalog{symbols: make(map[string]struct{}, len(symbols)+1)}
	var errs validation.ValidationErrors
	for _, s := range symbols {
		n := Normalize(s)
		if verr := validation.ValidateVar("symbol", n, "required,usdtpair"); verr != nil {
			errs = append(errs, verr...)
			continue
		}
		c.symbols[n] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	c.symbols[DefaultSymbol] = struct{}{}
	return c, nil
}

// Default returns a catalog of the built-in pairs.
func Default() *Catalog {
	c, err := New(builtin...)
	if err != nil {
		panic("catalog: builtin list invalid: " + err.Error())
	}
	return c
}

// Contains reports membership of an already-normalized symbol.
func (c *Catalog) Contains(symbol string) bool {
	_, ok := c.symbols[symbol]
	return ok
}

// Symbols returns the allowlist sorted.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len is the number of known pairs.
func (c *Catalog) Len() int {
	return len(c.symbols)
}
