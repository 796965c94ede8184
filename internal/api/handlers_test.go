package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/files"
	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/monitor"
	"github.com/harrylevesque/orderscan/internal/orders"
	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

const (
	testShop = "demo.myshopify.com"
	gid      = "gid://shopify/Order/5512345678901"
)

// fakeOrders is an in-memory OrderService holding a single order.
type fakeOrders struct {
	order     *models.Order
	err       error
	actionErr error
	gotCreds  shopify.Credentials
	refunds   []orders.RefundRequest
	listOpts  orders.ListOptions
	// block makes ShopInfo wait for the request context to end.
	block     bool
	resolves  int
	gets      int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{order: &models.Order{
		ID:            gid,
		Name:          "#1001",
		StatusPageURL: "https://demo.example/status/abc",
		Total:         models.Money{Amount: "50.00", CurrencyCode: "USD"},
	}}
}

func (f *fakeOrders) ShopInfo(ctx context.Context, creds shopify.Credentials) (*models.Shop, error) {
	f.gotCreds = creds
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Shop{Name: "Demo", MyshopifyDomain: creds.Shop}, nil
}

func (f *fakeOrders) List(_ context.Context, _ shopify.Credentials, opts orders.ListOptions) (*models.OrderPage, error) {
	f.listOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &models.OrderPage{Orders: []models.OrderSummary{{ID: gid, Name: "#1001"}}}, nil
}

func (f *fakeOrders) Get(_ context.Context, _ shopify.Credentials, id string) (*models.Order, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	if id != f.order.ID {
		return nil, orders.ErrNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) Search(_ context.Context, _ shopify.Credentials, term string, _ int) ([]models.OrderSummary, error) {
	if strings.TrimSpace(term) == "" {
		return nil, utils.New(http.StatusBadRequest, "search term is required")
	}
	return []models.OrderSummary{{ID: gid, Name: "#1001"}}, nil
}

func (f *fakeOrders) Lookup(ctx context.Context, creds shopify.Credentials, ident scan.Identifier) (*models.Order, error) {
	if ident.Kind == scan.KindName && ident.Value != f.order.Name {
		return nil, orders.ErrNotFound
	}
	return f.Get(ctx, creds, f.order.ID)
}

func (f *fakeOrders) ResolveID(_ context.Context, _ shopify.Credentials, raw string) (string, error) {
	f.resolves++
	ident, err := scan.Parse(raw)
	if err != nil {
		return "", utils.Wrap(http.StatusBadRequest, "unrecognized order identifier", err)
	}
	if ident.Kind == scan.KindID {
		return ident.Value, nil
	}
	if ident.Value == f.order.Name {
		return f.order.ID, nil
	}
	return "", orders.ErrNotFound
}

func (f *fakeOrders) action(id, name string) (*models.ActionResult, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &models.ActionResult{OrderID: id, Action: name, Status: "ok"}, nil
}

func (f *fakeOrders) Refund(_ context.Context, _ shopify.Credentials, id string, req orders.RefundRequest) (*models.ActionResult, error) {
	f.refunds = append(f.refunds, req)
	return f.action(id, "refund")
}

func (f *fakeOrders) Cancel(_ context.Context, _ shopify.Credentials, id string, _ orders.CancelRequest) (*models.ActionResult, error) {
	return f.action(id, "cancel")
}

func (f *fakeOrders) UpdateFulfillment(_ context.Context, _ shopify.Credentials, id string, _ orders.FulfillmentRequest) (*models.ActionResult, error) {
	return f.action(id, "fulfillment")
}

func (f *fakeOrders) Notify(_ context.Context, _ shopify.Credentials, id string, _ orders.NotifyRequest) (*models.ActionResult, error) {
	return f.action(id, "notify")
}

type testEnv struct {
	handler  http.Handler
	orders   *fakeOrders
	sessions *files.SessionStore
	monitor  *monitor.Monitor
	token    string
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		APIKey:         "key",
		APISecret:      "secret",
		ShopDomain:     testShop,
		AccessToken:    "shpat_static",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		CORSOrigins:    "https://admin.shopify.com",
		DebugUser:      "admin",
		DebugOpen:      true,
	}
	sessions := files.NewSessionStore(filepath.Join(dir, "sessions"), nil)
	authn := auth.NewAuthenticator(cfg, sessions, nil, nil)
	fo := newFakeOrders()
	mon := monitor.New()

	srv := NewServer(Deps{
		Config:       cfg,
		Orders:       fo,
		QRStore:      files.NewQRCodeStore(filepath.Join(dir, "qr_store.json")),
		Auth:         authn,
		Monitor:      mon,
		ProbeTimeout: time.Second,
	})
	token, err := authn.Verifier().Sign(testShop, time.Minute)
	require.NoError(t, err)

	return &testEnv{handler: srv.Handler(), orders: fo, sessions: sessions, monitor: mon, token: token, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order scan")
}

func TestAPI_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shop", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, decodeError(t, rec).Code)
}

func TestShop_UsesResolvedCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/shop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, shopify.Credentials{Shop: testShop, AccessToken: "shpat_static"}, env.orders.gotCreds)
}

func TestListOrders_Params(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders?first=5&after=abc&query=status:open&reverse=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.ListOptions{First: 5, After: "abc", Query: "status:open", Reverse: false}, env.orders.listOpts)

	rec = env.do(t, http.MethodGet, "/api/orders?first=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchOrders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/search?q=%231001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "#1001", resp.Query)
	assert.Len(t, resp.Orders, 1)

	rec = env.do(t, http.MethodGet, "/api/orders/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/scan", ScanRequest{Value: `{"orderNumber": 1001}`})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, scan.KindName, resp.Identifier.Kind)
	assert.Equal(t, "#1001", resp.Identifier.Value)
	assert.Equal(t, gid, resp.Order.ID)

	rec = env.do(t, http.MethodPost, "/api/scan", ScanRequest{Value: "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/scan", ScanRequest{Value: "#2002"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `orderscan_scan_parsed_total{source="json"} 1`)
	assert.Contains(t, rec.Body.String(), `orderscan_scan_parsed_total{source="hash"} 1`)
	assert.Contains(t, rec.Body.String(), `orderscan_scan_parsed_total{source="none"} 1`)
}

func TestGetOrder_AnyFormat(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/orders/5512345678901",
		"/api/orders/gid%3A%2F%2Fshopify%2FOrder%2F5512345678901",
		"/api/orders/%231001",
	} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var o models.Order
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
			assert.Equal(t, gid, o.ID)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/orders/9999999999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders/5512345678901/refund", orders.RefundRequest{Amount: "5.00"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.orders.refunds, 1)
	assert.Equal(t, "5.00", env.orders.refunds[0].Amount)

	for _, action := range []string{"cancel", "fulfillment", "notify"} {
		rec := env.do(t, http.MethodPost, "/api/orders/5512345678901/"+action, nil)
		require.Equal(t, http.StatusOK, rec.Code, action)
		var res models.ActionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, action, res.Action)
		assert.Equal(t, gid, res.OrderID)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/5512345678901/refund", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func throttled() error {
	errs := shopify.GraphQLErrors{{Message: "Throttled"}}
	errs[0].Extensions.Code = "THROTTLED"
	return errs
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"user errors", shopify.UserErrors{{Field: []string{"amount"}, Message: "too high"}}, http.StatusUnprocessableEntity},
		{"conflict", utils.Wrap(http.StatusConflict, "order is already cancelled", orders.ErrConflict), http.StatusConflict},
		{"throttled", throttled(), http.StatusTooManyRequests},
		{"upstream", &shopify.HTTPError{Status: http.StatusInternalServerError}, http.StatusBadGateway},
		{"upstream auth", &shopify.HTTPError{Status: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"deadline", context.DeadlineExceeded, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.orders.actionErr = tt.err

			rec := env.do(t, http.MethodPost, "/api/orders/5512345678901/cancel", nil)
			assert.Equal(t, tt.want, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.want, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestUserErrorsAreReturned(t *testing.T) {
	env := newTestEnv(t)
	env.orders.actionErr = shopify.UserErrors{{Field: []string{"amount"}, Message: "too high"}}

	rec := env.do(t, http.MethodPost, "/api/orders/5512345678901/refund", orders.RefundRequest{Amount: "1"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	require.Len(t, resp.UserErrors, 1)
	assert.Equal(t, "too high", resp.UserErrors[0].Message)
}

func TestUpstreamUnauthorizedForgetsSession(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sessions.Save(&models.Session{Shop: testShop, AccessToken: "stale"}))
	env.orders.err = &shopify.HTTPError{Status: http.StatusUnauthorized}

	rec := env.do(t, http.MethodGet, "/api/shop", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, err := env.sessions.Load(testShop)
	assert.ErrorIs(t, err, files.ErrSessionNotFound)
}

func TestQR(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/5512345678901/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "https://"+testShop+"/admin/orders/5512345678901", rec.Header().Get("X-QR-Content"))
	assert.NotEmpty(t, rec.Header().Get("X-QR-ID"))

	rec = env.do(t, http.MethodGet, "/api/orders/5512345678901/qr?format=png&target=status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "https://demo.example/status/abc", rec.Header().Get("X-QR-Content"))

	// Repeating a link does not add a record.
	env.do(t, http.MethodGet, "/api/orders/5512345678901/qr", nil)

	rec = env.do(t, http.MethodGet, "/api/qr/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist QRHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.Codes, 2)

	rec = env.do(t, http.MethodDelete, "/api/qr/history", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/qr/history", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Empty(t, hist.Codes)

	rec = env.do(t, http.MethodGet, "/api/orders/5512345678901/qr?format=gif", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQR_ValidatesBeforeLookup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/%231001/qr?target=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.orders.resolves)
	assert.Zero(t, env.orders.gets)
}

func TestQR_UnknownOrderNotRecorded(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/gid%3A%2F%2Fshopify%2FOrder%2F42/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-QR-ID"))

	rec = env.do(t, http.MethodGet, "/api/qr/history", nil)
	var hist QRHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Empty(t, hist.Codes)
}

func TestDebugRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/shop", nil)

	rec := env.do(t, http.MethodGet, "/debug/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.GreaterOrEqual(t, snap.Requests, int64(1))

	rec = env.do(t, http.MethodPost, "/debug/probe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var probe ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &probe))
	assert.True(t, probe.Healthy)
	assert.Equal(t, testShop, probe.Shop)
	assert.Len(t, probe.Results, 2)

	env.orders.err = &shopify.HTTPError{Status: http.StatusBadGateway}
	rec = env.do(t, http.MethodPost, "/debug/probe", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDebugStatsReset(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/shop", nil)
	env.do(t, http.MethodGet, "/api/orders", nil)

	rec := env.do(t, http.MethodDelete, "/debug/stats", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/debug/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	// Only the reset request itself has been recorded since.
	assert.Equal(t, int64(1), snap.Requests)
	require.Len(t, snap.Routes, 1)
	assert.Equal(t, "DELETE /debug/stats", snap.Routes[0].Route)
}

func TestDebugRoutes_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DebugOpen = false
	srv := NewServer(Deps{Config: env.cfg, Orders: env.orders, Auth: auth.NewAuthenticator(env.cfg, nil, nil, nil)})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RequestTimeout = 50 * time.Millisecond
	env.orders.block = true
	env.handler = NewServer(Deps{Config: env.cfg, Orders: env.orders, Auth: auth.NewAuthenticator(env.cfg, nil, nil, nil)}).Handler()

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/api/shop", nil)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "timed out")
}

func TestNotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
