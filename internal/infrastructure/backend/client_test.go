package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/payment"
)

func TestClient_CreateOrder(t *testing.T) {
	t.Parallel()

	var got domain.OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/order/create-order", r.URL.Path)
		assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"order":{"id":"o-1","status":"Processing","totalPrice":"944"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/v1/", time.Second, "svc")
	order, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		TotalPrice:  decimal.NewFromInt(944),
		PaymentInfo: domain.PaymentInfo{ID: "pi_1", Status: "succeeded", Type: "Credit Card"},
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", order.ID)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(944)))
	assert.Equal(t, "Credit Card", got.PaymentInfo.Type)
}

func TestClient_CreateOrder_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"db write failed"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, "").CreateOrder(context.Background(), domain.OrderRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "db write failed", apiErr.Message)
}

func TestClient_CreateOrder_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, 5*time.Second, "").CreateOrder(ctx, domain.OrderRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CreateIntent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body intentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(94400), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		_, _ = w.Write([]byte(`{"success":true,"client_secret":"pi_abc_secret_xyz"}`))
	}))
	defer srv.Close()

	intent, err := NewClient(srv.URL, time.Second, "").CreateIntent(context.Background(), 94400, "INR")
	require.NoError(t, err)
	assert.Equal(t, "pi_abc", intent.ID)
	assert.Equal(t, "pi_abc_secret_xyz", intent.ClientSecret)
}

func TestClient_FindOrderByPayment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("paymentId") == "pi_known" {
			_, _ = w.Write([]byte(`{"orders":[{"id":"o-9"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, "")

	order, err := c.FindOrderByPayment(context.Background(), "pi_known")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "o-9", order.ID)

	order, err = c.FindOrderByPayment(context.Background(), "pi_unknown")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestMockOrderAPI_FailNext(t *testing.T) {
	t.Parallel()

	m := NewMockOrderAPI(0)
	m.FailNext(1)

	_, err := m.CreateOrder(context.Background(), domain.OrderRequest{PaymentInfo: domain.PaymentInfo{ID: "pi_1"}})
	require.ErrorIs(t, err, ErrOrderTimeout)
	assert.Equal(t, 0, m.OrderCount())

	order, err := m.CreateOrder(context.Background(), domain.OrderRequest{PaymentInfo: domain.PaymentInfo{ID: "pi_1"}})
	require.NoError(t, err)
	assert.Len(t, m.Requests(), 2)

	found, err := m.FindOrderByPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func TestProviderGateway(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/payment/confirm":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pi_1_secret_x", body["client_secret"])
			_, _ = w.Write([]byte(`{"status":"declined","payment_intent_id":"pi_1","decline_reason":"Do not honor"}`))
		case "/payment/wallet/orders":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "NO_SHIPPING", body["shipping_preference"])
			_, _ = w.Write([]byte(`{"id":"WO-1"}`))
		case "/payment/wallet/orders/WO-1/capture":
			_, _ = w.Write([]byte(`{"capture_id":"CAP-1","payer_id":"PAYER1","status":"COMPLETED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := NewProviderGateway(NewClient(srv.URL, time.Second, ""))
	ctx := context.Background()

	res, err := g.ConfirmCardPayment(ctx, "pi_1_secret_x", "tok")
	require.NoError(t, err)
	assert.Equal(t, payment.CardDeclined, res.Status)
	assert.Equal(t, "Do not honor", res.DeclineReason)

	id, err := g.CreateOrder(ctx, decimal.RequireFromString("944.00"), "INR")
	require.NoError(t, err)
	assert.Equal(t, "WO-1", id)

	capture, err := g.Capture(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payment.CaptureCompleted, capture.Status)
	assert.Equal(t, "PAYER1", capture.PayerID)
}
