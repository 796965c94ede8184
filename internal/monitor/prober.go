package monitor

import (
	"context"
	"sync"
	"time"
)

// Probe is one named upstream check.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

type ProbeResult struct {
	Name       string  `json:"name"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type Prober struct {
	probes  []Probe
	timeout time.Duration
}

// NewProber returns a prober whose probes each get timeout to finish.
func NewProber(timeout time.Duration, probes ...Probe) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{probes: probes, timeout: timeout}
}

// Run executes all probes concurrently; results keep registration order.
func (p *Prober) Run(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, len(p.probes))
	var wg sync.WaitGroup
	for i, probe := range p.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			start := time.Now()
			err := probe.Run(pctx)
			results[i] = ProbeResult{
				Name:       probe.Name,
				OK:         err == nil,
				DurationMS: millis(time.Since(start)),
			}
			if err != nil {
				results[i].Error = err.Error()
			}
		}(i, probe)
	}
	wg.Wait()
	return results
}

// Healthy reports whether every result succeeded.
func Healthy(results []ProbeResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
