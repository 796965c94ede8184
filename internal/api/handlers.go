package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/metrics"
	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/orders"
	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Value string `json:"value"`
}

type ScanResponse struct {
	Identifier scan.Identifier `json:"identifier"`
	Order      *models.Order   `json:"order"`
}

type SearchResponse struct {
	Query  string                `json:"query"`
	Orders []models.OrderSummary `json:"orders"`
}

func credentials(r *http.Request) shopify.Credentials {
	creds, _ := auth.CredentialsFrom(r.Context())
	return creds
}

// fail writes err and drops the stored session when the shop rejected it,
// so the next request goes through token exchange again.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shopify.IsUnauthorized(err) {
		s.auth.Forget(credentials(r).Shop)
	}
	s.writeError(w, r, err)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.Wrap(http.StatusBadRequest, key+" must be an integer", err)
	}
	return n, nil
}

// orderID resolves the {id} path segment, which may be in any scan format.
func (s *Server) orderID(r *http.Request) (string, error) {
	raw, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		return "", utils.Wrap(http.StatusBadRequest, "malformed order id", err)
	}
	return s.orders.ResolveID(r.Context(), credentials(r), raw)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	shop, err := s.orders.ShopInfo(r.Context(), credentials(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, err := queryInt(r, "first")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reverse := true
	if raw := q.Get("reverse"); raw != "" {
		if reverse, err = strconv.ParseBool(raw); err != nil {
			s.writeError(w, r, utils.Wrap(http.StatusBadRequest, "reverse must be a boolean", err))
			return
		}
	}

	page, err := s.orders.List(r.Context(), credentials(r), orders.ListOptions{
		First:   first,
		After:   q.Get("after"),
		Query:   q.Get("query"),
		Reverse: reverse,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearchOrders(w http.ResponseWriter, r *http.Request) {
	first, err := queryInt(r, "first")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	term := r.URL.Query().Get("q")
	found, err := s.orders.Search(r.Context(), credentials(r), term, first)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: strings.TrimSpace(term), Orders: found})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	ident, err := s.parser.Parse(req.Value)
	if err != nil {
		s.metrics.RecordScan(metrics.ScanRejected)
		s.writeError(w, r, utils.Wrap(http.StatusBadRequest, "unrecognized order identifier", err))
		return
	}
	s.metrics.RecordScan(ident.Source)

	order, err := s.orders.Lookup(r.Context(), credentials(r), ident)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Identifier: ident, Order: order})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := s.orderID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.Get(r.Context(), credentials(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
