package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rental-platform/internal/booking"
	"rental-platform/internal/model"
	"rental-platform/internal/service"
	"rental-platform/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := store.NewMemory()
	err := st.UpsertProduct(context.Background(), &model.Product{
		ID:            "tent",
		Name:          "Tent",
		TotalQuantity: 5,
		BaseRate:      25.0,
		Active:        true,
	})
	require.NoError(t, err)

	pricing := service.NewPricingService(service.FlatRateTax{Rate: 0.10})
	coordinator := booking.NewCoordinator(st, pricing,
		service.NewOrderNumberGenerator("RNT"), zap.NewNop())
	handler := NewHandler(coordinator,
		service.NewAvailabilityService(st), service.NewLedgerService(st), zap.NewNop())

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func createBookingRequestBody(qty int, start, end string) map[string]interface{} {
	return map[string]interface{}{
		"customer_id": "customer1",
		"start":       start,
		"end":         end,
		"items": []map[string]interface{}{
			{"product_id": "tent", "quantity": qty},
		},
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(2, "2026-08-01", "2026-08-10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotEmpty(t, body["id"])
	require.Regexp(t, `^RNT\d{6}0001$`, body["order_number"])
	require.Equal(t, "pending", body["status"])
	require.Equal(t, 500.0, body["subtotal"])
}

func TestCreateBookingInsufficientInventory(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(3, "2026-08-01", "2026-08-10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/bookings", createBookingRequestBody(3, "2026-08-08", "2026-08-20"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "InsufficientInventory", body["reason"])

	details := body["details"].(map[string]interface{})
	require.Equal(t, "tent", details["product_id"])
	require.Equal(t, 2.0, details["available"])
	require.Equal(t, 3.0, details["requested"])
}

func TestCreateBookingInvalidRange(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(1, "2026-08-10", "2026-08-01"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "InvalidRange", body["reason"])
}

func TestCreateBookingUnknownProduct(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", map[string]interface{}{
		"customer_id": "customer1",
		"start":       "2026-08-01",
		"end":         "2026-08-05",
		"items": []map[string]interface{}{
			{"product_id": "submarine", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "ProductNotFound", body["reason"])
}

func TestAvailabilityEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(3, "2026-08-01", "2026-08-10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(server.URL + "/availability?productId=tent&start=2026-08-05&end=2026-08-15")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, 2.0, body["availableQuantity"])
}

func TestAvailabilityMissingProductParam(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/availability?start=2026-08-05&end=2026-08-15")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpointIsIdempotent(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(2, "2026-08-01", "2026-08-10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	id := created["id"].(string)

	cancelURL := fmt.Sprintf("%s/bookings/%s/cancel", server.URL, id)

	resp = postJSON(t, cancelURL, map[string]string{"reason": "changed plans"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "cancelled", body["status"])

	resp = postJSON(t, cancelURL, map[string]string{"reason": "again"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	require.Equal(t, "cancelled", body["status"])
}

func TestLifecycleEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(1, "2026-08-01", "2026-08-05"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	id := created["id"].(string)

	for _, step := range []struct {
		path   string
		status string
	}{
		{"confirm", "confirmed"},
		{"pickup", "active"},
		{"return", "returned"},
		{"complete", "completed"},
	} {
		resp := postJSON(t, fmt.Sprintf("%s/bookings/%s/%s", server.URL, id, step.path), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "step %s", step.path)
		body := decodeBody(t, resp)
		require.Equal(t, step.status, body["status"])
	}
}

func TestInvalidTransitionEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(1, "2026-08-01", "2026-08-05"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	id := created["id"].(string)

	// pickup without confirm
	resp = postJSON(t, fmt.Sprintf("%s/bookings/%s/pickup", server.URL, id), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "InvalidTransition", body["reason"])
}

func TestStockEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/bookings", createBookingRequestBody(2, "2026-08-01", "2026-08-10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(server.URL + "/products/tent/stock?at=2026-08-05")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, 5.0, body["total"])
	require.Equal(t, 2.0, body["reserved"])
	require.Equal(t, 3.0, body["available"])
}

func TestGetBookingNotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/bookings/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
