package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_RunsInDueOrder(t *testing.T) {
	m := NewManual()
	var order []int
	m.Schedule(func() { order = append(order, 2) }, 20*time.Millisecond)
	m.Schedule(func() { order = append(order, 1) }, 10*time.Millisecond)
	h := m.Schedule(func() { order = append(order, 3) }, 10*time.Millisecond)

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel(), "second cancel is a no-op")
	assert.Equal(t, 2, m.Pending())

	m.Advance(5 * time.Millisecond)
	assert.Empty(t, order)

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 0, m.Pending())
}

func TestReal_Cancel(t *testing.T) {
	var ran int32
	h := Real{}.Schedule(func() { atomic.StoreInt32(&ran, 1) }, time.Hour)
	assert.True(t, h.Cancel())

	done := make(chan struct{})
	Real{}.Schedule(func() { close(done) }, time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real scheduler never fired")
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	m := NewManual()
	d := NewDebouncer(m, 300*time.Millisecond)

	var calls []string
	for _, q := range []string{"b", "bt", "btc"} {
		q := q
		d.Trigger(func() { calls = append(calls, q) })
		m.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, m.Pending(), "replaced triggers are canceled")
	assert.Empty(t, calls)

	m.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"btc"}, calls)
	assert.Equal(t, 0, m.Pending())
}

func TestDebouncer_StopPreventsLateCall(t *testing.T) {
	m := NewManual()
	d := NewDebouncer(m, 300*time.Millisecond)
	called := false
	d.Trigger(func() { called = true })
	d.Stop()
	m.Advance(time.Second)
	assert.False(t, called)

	d.Trigger(func() { called = true })
	m.Advance(time.Second)
	assert.False(t, called, "trigger after stop must be ignored")
}
