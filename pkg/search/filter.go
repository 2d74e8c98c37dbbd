// Package search derives the bounded, feed-ordered ticker list shown to the user.
package search

import (
	"strings"

	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/validation"
)

const (
	// UnfilteredLimit caps the list when the query is blank.
	UnfilteredLimit = 100
	// FilteredLimit caps the list when a query is set.
	FilteredLimit = 50
)

// Filter keeps USDT-quoted markets only. A blank query returns the first
// UnfilteredLimit of them. Otherwise a record matches when its lowercased
// market contains the lowercased query, or the received text of last_price
// contains the raw query; the first FilteredLimit matches are returned.
// Feed order is preserved.
func Filter(snapshot []models.TickerRecord, query string) []models.TickerRecord {
	out := make([]models.TickerRecord, 0, capFor(query))

	if strings.TrimSpace(query) == "" {
		for _, r := range snapshot {
			if !strings.HasSuffix(r.Market, validation.QuoteSuffix) {
				continue
			}
			out = append(out, r)
			if len(out) == UnfilteredLimit {
				break
			}
		}
		return out
	}

	lq := strings.ToLower(query)
	for _, r := range snapshot {
		if !strings.HasSuffix(r.Market, validation.QuoteSuffix) {
			continue
		}
		if strings.Contains(strings.ToLower(r.Market), lq) ||
			strings.Contains(r.LastPrice.Text(), query) {
			out = append(out, r)
			if len(out) == FilteredLimit {
				break
			}
		}
	}
	return out
}

func capFor(query string) int {
	if strings.TrimSpace(query) == "" {
		return UnfilteredLimit
	}
	return FilteredLimit
}
