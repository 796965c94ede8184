package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_RecordAndSnapshot(t *testing.T) {
	m := New()
	m.Record("/api/orders/{id}", 200, 10*time.Millisecond)
	m.Record("/api/orders/{id}", 404, 30*time.Millisecond)
	m.Record("/api/shop", 200, 5*time.Millisecond)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.Requests)
	assert.EqualValues(t, 1, snap.Failures)
	require.Len(t, snap.Routes, 2)

	orders := snap.Routes[0]
	assert.Equal(t, "/api/orders/{id}", orders.Route)
	assert.EqualValues(t, 1, orders.Successes)
	assert.EqualValues(t, 1, orders.Failures)
	assert.Equal(t, 404, orders.LastStatus)
	assert.InDelta(t, 20.0, orders.AvgMillis, 0.001)
	assert.InDelta(t, 30.0, orders.MaxMillis, 0.001)

	m.Reset()
	assert.Empty(t, m.Snapshot().Routes)
}

func TestProber_Run(t *testing.T) {
	p := NewProber(50*time.Millisecond,
		Probe{Name: "shop", Run: func(context.Context) error { return nil }},
		Probe{Name: "orders", Run: func(context.Context) error { return errors.New("502") }},
		Probe{Name: "slow", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	results := p.Run(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "shop", results[0].Name)
	assert.True(t, results[0].OK)
	assert.Equal(t, "502", results[1].Error)
	assert.False(t, results[2].OK)
	assert.Contains(t, results[2].Error, "deadline")
	assert.False(t, Healthy(results))
	assert.True(t, Healthy(results[:1]))
}
