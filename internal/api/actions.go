package api

import (
	"net/http"

	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/orders"
)

// runAction resolves the order, runs fn and records the outcome.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, action string, fn func(id string) (*models.ActionResult, error)) {
	id, err := s.orderID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := fn(id)
	s.metrics.RecordAction(action, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req orders.RefundRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runAction(w, r, "refund", func(id string) (*models.ActionResult, error) {
		return s.orders.Refund(r.Context(), credentials(r), id, req)
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req orders.CancelRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runAction(w, r, "cancel", func(id string) (*models.ActionResult, error) {
		return s.orders.Cancel(r.Context(), credentials(r), id, req)
	})
}

func (s *Server) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	var req orders.FulfillmentRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runAction(w, r, "fulfillment", func(id string) (*models.ActionResult, error) {
		return s.orders.UpdateFulfillment(r.Context(), credentials(r), id, req)
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req orders.NotifyRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.runAction(w, r, "notify", func(id string) (*models.ActionResult, error) {
		return s.orders.Notify(r.Context(), credentials(r), id, req)
	})
}
