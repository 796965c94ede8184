// Package api serves the POS extension routes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/metrics"
	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/monitor"
	"github.com/harrylevesque/orderscan/internal/orders"
	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
	"github.com/harrylevesque/orderscan/internal/web"
)

// OrderService is implemented by *orders.Service.
type OrderService interface {
	ShopInfo(ctx context.Context, creds shopify.Credentials) (*models.Shop, error)
	List(ctx context.Context, creds shopify.Credentials, opts orders.ListOptions) (*models.OrderPage, error)
	Get(ctx context.Context, creds shopify.Credentials, id string) (*models.Order, error)
	Search(ctx context.Context, creds shopify.Credentials, term string, first int) ([]models.OrderSummary, error)
	Lookup(ctx context.Context, creds shopify.Credentials, ident scan.Identifier) (*models.Order, error)
	ResolveID(ctx context.Context, creds shopify.Credentials, raw string) (string, error)
	Refund(ctx context.Context, creds shopify.Credentials, id string, req orders.RefundRequest) (*models.ActionResult, error)
	Cancel(ctx context.Context, creds shopify.Credentials, id string, req orders.CancelRequest) (*models.ActionResult, error)
	UpdateFulfillment(ctx context.Context, creds shopify.Credentials, id string, req orders.FulfillmentRequest) (*models.ActionResult, error)
	Notify(ctx context.Context, creds shopify.Credentials, id string, req orders.NotifyRequest) (*models.ActionResult, error)
}

// QRStore records generated share codes.
type QRStore interface {
	Save(qr *models.QRCode) (*models.QRCode, error)
	GetAll() ([]models.QRCode, error)
	Clear() error
}

// Deps are the components the server is built from.
type Deps struct {
	Config  *config.Config
	Logger  *utils.Logger
	Orders  OrderService
	Parser  *scan.Parser
	QRStore QRStore
	Auth    *auth.Authenticator
	Debug   *auth.DebugGuard
	Metrics *metrics.Metrics
	Monitor *monitor.Monitor
	// ProbeTimeout bounds each /debug/probe check.
	ProbeTimeout time.Duration
}

type Server struct {
	cfg          *config.Config
	logger       *utils.Logger
	orders       OrderService
	parser       *scan.Parser
	qrStore      QRStore
	auth         *auth.Authenticator
	debug        *auth.DebugGuard
	metrics      *metrics.Metrics
	monitor      *monitor.Monitor
	probeTimeout time.Duration
	limiter      *RateLimiter
}

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:          d.Config,
		logger:       d.Logger,
		orders:       d.Orders,
		parser:       d.Parser,
		qrStore:      d.QRStore,
		auth:         d.Auth,
		debug:        d.Debug,
		metrics:      d.Metrics,
		monitor:      d.Monitor,
		probeTimeout: d.ProbeTimeout,
	}
	if s.logger == nil {
		s.logger = utils.NewDiscardLogger()
	}
	if s.parser == nil {
		s.parser = scan.NewParser()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.monitor == nil {
		s.monitor = monitor.New()
	}
	if s.debug == nil {
		s.debug = auth.NewDebugGuard(s.cfg)
	}
	s.limiter = NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, s.logger, s.writeError)
	return s
}

// Limiter exposes the per-shop limiter so the caller can run its cleanup.
func (s *Server) Limiter() *RateLimiter { return s.limiter }

// Handler builds the route table wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(LoggingMiddleware(s.logger), MetricsMiddleware(s.metrics, s.monitor))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, utils.New(http.StatusNotFound, "route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, utils.New(http.StatusMethodNotAllowed, "method not allowed"))
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			s.logger.WithError(err).Warn("Failed to write health response")
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(TimeoutMiddleware(s.cfg.RequestTimeout), s.auth.Middleware(s.writeError), s.limiter.Handler)
	api.HandleFunc("/shop", s.handleShop).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/search", s.handleSearchOrders).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/refund", s.handleRefund).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/fulfillment", s.handleFulfillment).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/notify", s.handleNotify).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/qr", s.handleQR).Methods(http.MethodGet)
	api.HandleFunc("/qr/history", s.handleQRHistory).Methods(http.MethodGet)
	api.HandleFunc("/qr/history", s.handleClearQRHistory).Methods(http.MethodDelete)

	debug := r.PathPrefix("/debug").Subrouter()
	debug.Use(s.debug.Middleware(s.writeError))
	debug.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	debug.HandleFunc("/stats", s.handleResetStats).Methods(http.MethodDelete)
	debug.HandleFunc("/probe", s.handleProbe).Methods(http.MethodPost)

	return NewCORSMiddleware(s.cfg.AllowedOrigins()).Handler(r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(web.Index)
}
