package httpsvc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/catalog"
	httpsvc "github.com/vladislavdragonenkov/orders-ms/internal/service/http"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/orders"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/payment"
	"github.com/vladislavdragonenkov/orders-ms/internal/storage/memory"
)

type testServer struct {
	router   http.Handler
	catalog  *catalog.MockService
	payments *payment.MockService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cat := catalog.NewMockService()
	cat.Snapshots = []domain.ProductSnapshot{
		{ID: "prod-a", Name: "Widget", Price: decimal.RequireFromString("10")},
		{ID: "prod-b", Name: "Gadget", Price: decimal.RequireFromString("3.50")},
	}
	pay := payment.NewMockService()

	svc := orders.NewOrchestratorWithoutMetrics(
		memory.NewOrderRepository(), cat, pay, orders.Config{}, nil)
	handler := httpsvc.NewHandler(svc, nil)

	return &testServer{
		router:   httpsvc.NewRouter(handler, memory.NewIdempotencyRepository()),
		catalog:  cat,
		payments: pay,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createOrder(t *testing.T) httpsvc.OrderResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":"prod-a","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp httpsvc.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t)

	resp := s.createOrder(t)
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "PENDING", resp.Status)
	require.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("20")))
	require.EqualValues(t, 2, resp.TotalItems)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "Widget", resp.Items[0].Name)
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/orders", `{"items":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/orders", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httpsvc.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_request", resp.Error)
}

func TestCreateOrder_CatalogDown(t *testing.T) {
	s := newTestServer(t)
	s.catalog.ValidateErr = domain.ErrCatalogValidation

	rec := s.do(t, http.MethodPost, "/v1/orders",
		`{"items":[{"product_id":"prod-a","quantity":1}]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)

	rec := s.do(t, http.MethodGet, "/v1/orders/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpsvc.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, created.ID, resp.ID)
	require.Equal(t, "Widget", resp.Items[0].Name)
}

func TestGetOrder_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/orders/00000000-0000-0000-0000-000000000000", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp httpsvc.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "order_not_found", resp.Error)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.createOrder(t)
	}

	rec := s.do(t, http.MethodGet, "/v1/orders?page=1&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpsvc.ListOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.EqualValues(t, 3, resp.Meta.TotalOrders)
	require.Equal(t, 1, resp.Meta.CurrentPage)
	require.Equal(t, 2, resp.Meta.LastPage)
}

func TestListOrders_InvalidQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/orders?page=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/orders?status=SHIPPED", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders_StatusFilter(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)
	s.createOrder(t)

	rec := s.do(t, http.MethodPatch, "/v1/orders/"+created.ID+"/status", `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/orders?status=CANCELLED", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpsvc.ListOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp.Meta.TotalOrders)
	require.Equal(t, created.ID, resp.Data[0].ID)
}

func TestChangeStatus(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)

	rec := s.do(t, http.MethodPatch, "/v1/orders/"+created.ID+"/status", `{"status":"IN_PROGRESS"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpsvc.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "IN_PROGRESS", resp.Status)
}

func TestChangeStatus_SameStatus(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)

	rec := s.do(t, http.MethodPatch, "/v1/orders/"+created.ID+"/status", `{"status":"PENDING"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httpsvc.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_request", resp.Error)
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)

	rec := s.do(t, http.MethodPatch, "/v1/orders/"+created.ID+"/status", `{"status":"SHIPPED"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentSession(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/v1/orders/"+created.ID+"/payment-session", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp httpsvc.PaymentSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "mock-session", resp.ID)
	require.NotEmpty(t, resp.URL)

	// В платёжную сессию уходят реальные позиции заказа.
	require.Len(t, s.payments.LastItems, 1)
	require.Equal(t, "Widget", s.payments.LastItems[0].Name)
}

func TestCreatePaymentSession_GatewayDown(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t)
	s.payments.SessionErr = domain.ErrPaymentUnavailable

	rec := s.do(t, http.MethodPost, "/v1/orders/"+created.ID+"/payment-session", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
