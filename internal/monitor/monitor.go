// Package monitor keeps per-route request counters for /debug/stats and runs
// upstream probes.
package monitor

import (
	"sort"
	"sync"
	"time"
)

// RouteStats are the counters for one route template.
type RouteStats struct {
	Route        string        `json:"route"`
	Requests     int64         `json:"requests"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	TotalLatency time.Duration `json:"-"`
	MaxLatency   time.Duration `json:"-"`
	AvgMillis    float64       `json:"avg_ms"`
	MaxMillis    float64       `json:"max_ms"`
	LastStatus   int           `json:"last_status"`
	LastSeen     time.Time     `json:"last_seen"`
}

type Snapshot struct {
	StartedAt time.Time    `json:"started_at"`
	Uptime    string       `json:"uptime"`
	Requests  int64        `json:"requests"`
	Failures  int64        `json:"failures"`
	Routes    []RouteStats `json:"routes"`
}

type Monitor struct {
	mu      sync.RWMutex
	routes  map[string]*RouteStats
	started time.Time
	now     func() time.Time
}

func New() *Monitor {
	return &Monitor{routes: make(map[string]*RouteStats), started: time.Now(), now: time.Now}
}

// Record adds one finished request. Statuses of 400 and above count as
// failures.
func (m *Monitor) Record(route string, status int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.routes[route]
	if !ok {
		rs = &RouteStats{Route: route}
		m.routes[route] = rs
	}
	rs.Requests++
	if status >= 400 {
		rs.Failures++
	} else {
		rs.Successes++
	}
	rs.TotalLatency += latency
	if latency > rs.MaxLatency {
		rs.MaxLatency = latency
	}
	rs.LastStatus = status
	rs.LastSeen = m.now()
}

// Snapshot copies the counters, sorted by route.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		StartedAt: m.started,
		Uptime:    m.now().Sub(m.started).Round(time.Second).String(),
		Routes:    make([]RouteStats, 0, len(m.routes)),
	}
	for _, rs := range m.routes {
		cp := *rs
		if cp.Requests > 0 {
			cp.AvgMillis = millis(cp.TotalLatency) / float64(cp.Requests)
		}
		cp.MaxMillis = millis(cp.MaxLatency)
		snap.Requests += cp.Requests
		snap.Failures += cp.Failures
		snap.Routes = append(snap.Routes, cp)
	}
	sort.Slice(snap.Routes, func(i, j int) bool { return snap.Routes[i].Route < snap.Routes[j].Route })
	return snap
}

// Reset clears all route counters; the start time is kept.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = make(map[string]*RouteStats)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
