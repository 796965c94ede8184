package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{Shop: "demo.myshopify.com", AccessToken: "shpat_test"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		APIVersion: "2025-10",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
}

func TestExecute_SendsQueryAndDecodesData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2025-10/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "demo.myshopify.com", r.Header.Get("X-Shopify-Shop-Domain"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ShopInfoQuery, req.Query)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"shop":{"id":"gid://shopify/Shop/1","name":"Demo","currencyCode":"USD"}},
			"extensions":{"cost":{"requestedQueryCost":1,"actualQueryCost":1,"throttleStatus":{"currentlyAvailable":999,"restoreRate":50}}}}`))
	})

	var out ShopInfoData
	require.NoError(t, c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, &out))
	assert.Equal(t, "Demo", out.Shop.Name)
	assert.Equal(t, "USD", out.Shop.CurrencyCode)
}

func TestExecute_GraphQLErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"errors":[{"message":"Field 'nope' doesn't exist","extensions":{"code":"undefinedField"}}]}`))
	})

	err := c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, &ShopInfoData{})
	var ge GraphQLErrors
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, err.Error(), "doesn't exist")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-throttle errors are not retried")
}

func TestExecute_RetriesThrottled(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte(`{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`))
			return
		}
		w.Write([]byte(`{"data":{"shop":{"name":"Demo"}}}`))
	})

	var out ShopInfoData
	require.NoError(t, c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, &out))
	assert.Equal(t, "Demo", out.Shop.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecute_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, nil)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecute_MutationNotRetriedOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"refundCreate":{"refund":{"id":"gid://shopify/Refund/1"},"userErrors":[]}}}`))
	})

	err := c.Execute(context.Background(), testCreds, RefundCreateMutation, map[string]interface{}{"input": map[string]interface{}{}}, nil)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadGateway, he.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a mutation may have been applied before the 5xx")
}

func TestExecute_MutationRetriedWhenThrottled(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"orderCancel":{"job":{"id":"gid://shopify/Job/1","done":false},"orderCancelUserErrors":[]}}}`))
	})

	require.NoError(t, c.Execute(context.Background(), testCreds, OrderCancelMutation, nil, nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecute_Retries429(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"shop":{"name":"Demo"}}}`))
	})

	var out ShopInfoData
	require.NoError(t, c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, &out))
	assert.Equal(t, "Demo", out.Shop.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecute_LimiterIsPerShop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"shop":{"name":"Demo"}}}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSecond: 1})
	other := Credentials{Shop: "other.myshopify.com", AccessToken: "shpat_other"}
	ctx := context.Background()

	require.NoError(t, c.Execute(ctx, testCreds, ShopInfoQuery, nil, nil))

	start := time.Now()
	require.NoError(t, c.Execute(ctx, other, ShopInfoQuery, nil, nil))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "another shop has its own bucket")

	start = time.Now()
	require.NoError(t, c.Execute(ctx, testCreds, ShopInfoQuery, nil, nil))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond, "the same shop waits for a token")
}

func TestExecute_LimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSecond: 1})

	require.NoError(t, c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Execute(ctx, testCreds, ShopInfoQuery, nil, nil))
}

func TestExecute_UnauthorizedNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
	})

	err := c.Execute(context.Background(), testCreds, ShopInfoQuery, nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecute_MissingCredentials(t *testing.T) {
	c := NewClient(ClientConfig{})
	err := c.Execute(context.Background(), Credentials{Shop: "x.myshopify.com"}, ShopInfoQuery, nil, nil)
	assert.Error(t, err)
}

func TestExchangeToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/oauth/access_token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "api-key", body["client_id"])
		assert.Equal(t, "session-jwt", body["subject_token"])
		assert.Equal(t, offlineAccessToken, body["requested_token_type"])
		w.Write([]byte(`{"access_token":"shpat_new","scope":"write_orders"}`))
	})

	tok, err := c.ExchangeToken(context.Background(), TokenExchange{APIKey: "api-key", APISecret: "s"}, "demo.myshopify.com", "session-jwt")
	require.NoError(t, err)
	assert.Equal(t, "shpat_new", tok.AccessToken)
	assert.Equal(t, "write_orders", tok.Scope)
}

func TestExchangeToken_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_subject_token"}`))
	})

	_, err := c.ExchangeToken(context.Background(), TokenExchange{}, "demo.myshopify.com", "bad")
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "ShopInfo", operationName(ShopInfoQuery))
	assert.Equal(t, "OrderByID", operationName(OrderByIDQuery))
	assert.Equal(t, "RefundCreate", operationName(RefundCreateMutation))
	assert.Equal(t, "anonymous", operationName("{ shop { id } }"))
}

func TestIsMutation(t *testing.T) {
	assert.True(t, isMutation(RefundCreateMutation))
	assert.True(t, isMutation(OrderInvoiceSendMutation))
	assert.False(t, isMutation(OrderByIDQuery))
	assert.False(t, isMutation("{ shop { id } }"))
}

func TestSearchTerm(t *testing.T) {
	assert.Equal(t, "name:#1001", SearchTerm("name", "#1001"))
	assert.Equal(t, `email:"a b@example.com"`, SearchTerm("email", "a b@example.com"))
	assert.Equal(t, `"say \"hi\""`, SearchTerm("", `say "hi"`))
}
