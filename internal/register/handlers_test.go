package register

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	h := NewHandler(NewService(zerolog.Nop()), "USD")
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var decoded map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func openTransaction(t *testing.T, router http.Handler) string {
	t.Helper()
	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := body["data"].(map[string]any)
	return data["id"].(string)
}

func TestHandlerCashSale(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)

	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/lines", map[string]any{
		"sku":                   "SODA-12",
		"description":           "Soda 12oz",
		"unitPriceCents":        299,
		"qtyMilli":              1000,
		"containerDepositCents": 10,
		"taxRates":              []map[string]any{{"authority": "CA", "rateBps": 850}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	totals := body["data"].(map[string]any)["totals"].(map[string]any)
	require.EqualValues(t, 335, totals["grandTotalCents"])
	require.EqualValues(t, 26, totals["taxTotalCents"])

	rr, body = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/tenders", map[string]any{
		"method":      "cash",
		"amountCents": 500,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, "completed", data["status"])
	payments := data["totals"].(map[string]any)["payments"].(map[string]any)
	require.EqualValues(t, 165, payments["changeDueCents"])
	require.Equal(t, true, payments["completed"])
}

func TestHandlerValidation(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)

	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/lines", map[string]any{
		"unitPriceCents": 299,
		"qtyMilli":       0,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := body["error"].(map[string]any)
	require.Equal(t, "BAD_REQUEST", errBody["code"])

	rr, _ = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/tenders", map[string]any{
		"method":      "scrip",
		"amountCents": 100,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerUnknownTransaction(t *testing.T) {
	router := newTestRouter()
	rr, _ := doJSON(t, router, http.MethodGet, "/api/v1/transactions/00000000-0000-0000-0000-000000000001/", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = doJSON(t, router, http.MethodGet, "/api/v1/transactions/not-a-uuid/", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerOverTender(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)
	rr, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/lines", map[string]any{
		"unitPriceCents": 100,
		"qtyMilli":       1000,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/tenders", map[string]any{
		"method":      "credit",
		"amountCents": 200,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "UNPROCESSABLE", body["error"].(map[string]any)["code"])
}

func TestHandlerDiscountRoundTrip(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)
	rr, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/lines", map[string]any{
		"unitPriceCents": 1000,
		"qtyMilli":       1000,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body := doJSON(t, router, http.MethodPut, "/api/v1/transactions/"+id+"/discount", map[string]any{
		"kind":       "percent",
		"percentBps": 1000,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	totals := body["data"].(map[string]any)["totals"].(map[string]any)
	require.EqualValues(t, 100, totals["invoiceDiscountCents"])

	rr, body = doJSON(t, router, http.MethodDelete, "/api/v1/transactions/"+id+"/discount", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	totals = body["data"].(map[string]any)["totals"].(map[string]any)
	require.EqualValues(t, 0, totals["invoiceDiscountCents"])
}

func TestHandlerReturnFlow(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)
	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/lines", map[string]any{
		"unitPriceCents": 500,
		"qtyMilli":       2000,
		"snapEligible":   true,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	line := body["data"].(map[string]any)["totals"].(map[string]any)["lines"].([]any)[0].(map[string]any)
	lineID := line["lineId"].(string)

	rr, _ = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/tenders", map[string]any{
		"method":      "snap",
		"amountCents": 1000,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/returns", map[string]any{
		"lines": []map[string]any{{"lineId": lineID, "qtyMilli": 1000}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, "partially_returned", data["transaction"].(map[string]any)["status"])
	refundTotals := data["refund"].(map[string]any)["totals"].(map[string]any)
	require.EqualValues(t, -500, refundTotals["grandTotalCents"])
	require.EqualValues(t, -500, refundTotals["snapPaidTotalCents"])
}

func TestHandlerVoid(t *testing.T) {
	router := newTestRouter()
	id := openTransaction(t, router)
	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/void", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "voided", body["data"].(map[string]any)["status"])

	rr, body = doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+id+"/void", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "CONFLICT", body["error"].(map[string]any)["code"])
}
