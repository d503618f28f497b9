package persistence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mediakit/internal/clock"
	"mediakit/internal/persistence"
)

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	calls := 0
	d := persistence.NewDebouncer(clk, time.Second, func() { calls++ })

	for i := 0; i < 5; i++ {
		d.Trigger()
		clk.Advance(60 * time.Millisecond)
	}
	assert.Zero(t, calls)
	assert.True(t, d.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, 1, calls)
	assert.False(t, d.Pending())
}

func TestDebouncer_NewTriggerRestartsQuietPeriod(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	calls := 0
	d := persistence.NewDebouncer(clk, time.Second, func() { calls++ })

	d.Trigger()
	clk.Advance(900 * time.Millisecond)
	d.Trigger()
	clk.Advance(900 * time.Millisecond)
	assert.Zero(t, calls)

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestDebouncer_Cancel(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	calls := 0
	d := persistence.NewDebouncer(clk, time.Second, func() { calls++ })

	d.Trigger()
	d.Cancel()
	clk.Advance(2 * time.Second)
	assert.Zero(t, calls)
	assert.False(t, d.Pending())
}
