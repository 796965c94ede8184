package api

import (
	"context"
	"net/http"

	"github.com/harrylevesque/orderscan/internal/monitor"
	"github.com/harrylevesque/orderscan/internal/orders"
)

type ProbeResponse struct {
	Shop    string                `json:"shop"`
	Healthy bool                  `json:"healthy"`
	Results []monitor.ProbeResult `json:"results"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *Server) handleResetStats(w http.ResponseWriter, _ *http.Request) {
	s.monitor.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleProbe runs the shop and order-list queries for ?shop= (default the
// configured shop) using its stored or static credentials.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	creds, err := s.auth.CredentialsFor(r.URL.Query().Get("shop"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prober := monitor.NewProber(s.probeTimeout,
		monitor.Probe{Name: "shop", Run: func(ctx context.Context) error {
			_, err := s.orders.ShopInfo(ctx, creds)
			return err
		}},
		monitor.Probe{Name: "orders", Run: func(ctx context.Context) error {
			_, err := s.orders.List(ctx, creds, orders.ListOptions{First: 1})
			return err
		}},
	)
	results := prober.Run(r.Context())

	status := http.StatusOK
	healthy := monitor.Healthy(results)
	if !healthy {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ProbeResponse{Shop: creds.Shop, Healthy: healthy, Results: results})
}
