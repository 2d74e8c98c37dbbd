package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alim08/cryptotrader/pkg/models"
	"github.com/alim08/cryptotrader/pkg/scheduler"
	"github.com/alim08/cryptotrader/pkg/store"
)

func newEngine(t *testing.T) (*Engine, *store.Store, *scheduler.Manual) {
	t.Helper()
	st := store.New()
	st.ReplaceSnapshot([]models.TickerRecord{
		models.NewTickerRecord("BTCUSDT", 61234.5, 61200, 61260),
		models.NewTickerRecord("ETHUSDT", 3012.25, 3010, 3015),
		models.NewTickerRecord("SOLUSDT", 142.1, 142, 142.2),
	})
	m := scheduler.NewManual()
	e := NewEngine(st, m, 300*time.Millisecond)
	t.Cleanup(e.Close)
	return e, st, m
}

func markets(recs []models.TickerRecord) []string {
	out := []string{}
	for _, r := range recs {
		out = append(out, r.Market)
	}
	return out
}

func TestEngine_QueryEchoesImmediatelyResultsDebounced(t *testing.T) {
	e, _, m := newEngine(t)
	e.Refresh()
	require.Len(t, e.Results(), 3)

	e.SetQuery("e")
	assert.Equal(t, "e", e.Query())
	assert.Len(t, e.Results(), 3, "results stay stale inside the window")
	assert.Equal(t, 1, m.Pending())

	m.Advance(299 * time.Millisecond)
	assert.Len(t, e.Results(), 3)

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"ETHUSDT"}, markets(e.Results()))
	assert.Equal(t, 0, m.Pending())
}

func TestEngine_BurstCollapsesToLatestQuery(t *testing.T) {
	e, _, m := newEngine(t)
	var recomputes []string
	e.OnChange(func(q string, _ []models.TickerRecord) { recomputes = append(recomputes, q) })

	for _, q := range []string{"s", "so", "sol"} {
		e.SetQuery(q)
		m.Advance(100 * time.Millisecond)
	}
	m.Advance(time.Second)

	assert.Equal(t, []string{"sol"}, recomputes)
	assert.Equal(t, []string{"SOLUSDT"}, markets(e.Results()))
}

func TestEngine_RefreshUsesCurrentQueryAndSnapshot(t *testing.T) {
	e, st, m := newEngine(t)
	e.SetQuery("btc")
	m.Advance(time.Second)
	require.Equal(t, []string{"BTCUSDT"}, markets(e.Results()))

	st.ReplaceSnapshot([]models.TickerRecord{
		models.NewTickerRecord("BTCUSDT", 1, 1, 1),
		models.NewTickerRecord("BTCDOMUSDT", 2, 2, 2),
	})
	e.Refresh()
	assert.Equal(t, []string{"BTCUSDT", "BTCDOMUSDT"}, markets(e.Results()))
}

func TestEngine_CloseCancelsPendingRecompute(t *testing.T) {
	e, _, m := newEngine(t)
	called := false
	e.OnChange(func(string, []models.TickerRecord) { called = true })

	e.SetQuery("eth")
	e.Close()
	m.Advance(time.Second)
	assert.False(t, called)

	e.Refresh()
	assert.False(t, called, "refresh after close is ignored")
	assert.Equal(t, 0, m.Pending())
}
