// Package backend talks to the order-persistence and payment-intent APIs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/payment"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
}

// OrderLookup is optional: backends that can find an order by its payment
// reference let the reconciliation worker settle ambiguous finalizations.
type OrderLookup interface {
	FindOrderByPayment(ctx context.Context, paymentID string) (*domain.Order, error)
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL      string
	httpClient   *http.Client
	serviceToken string
}

// NewClient returns a Client for baseURL. timeout bounds every request
// on top of any deadline carried by the caller's context.
func NewClient(baseURL string, timeout time.Duration, serviceToken string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		serviceToken: serviceToken,
	}
}

type createOrderResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	var out createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/order/create-order", req, &out); err != nil {
		return nil, err
	}
	if out.Order == nil || out.Order.ID == "" {
		return nil, fmt.Errorf("create order: response carried no order")
	}
	return out.Order, nil
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

func (c *Client) FindOrderByPayment(ctx context.Context, paymentID string) (*domain.Order, error) {
	var out ordersResponse
	path := "/order/by-payment?paymentId=" + url.QueryEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Orders) == 0 {
		return nil, nil
	}
	return &out.Orders[0], nil
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type intentResponse struct {
	Success      bool   `json:"success"`
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string) (payment.Intent, error) {
	var out intentResponse
	if err := c.do(ctx, http.MethodPost, "/payment/process", intentRequest{Amount: amount, Currency: currency}, &out); err != nil {
		return payment.Intent{}, err
	}
	if out.ClientSecret == "" {
		return payment.Intent{}, fmt.Errorf("payment intent: response carried no client secret")
	}

	id := out.ID
	if id == "" {
		// Secrets are "<intent id>_secret_<nonce>".
		id, _, _ = strings.Cut(out.ClientSecret, "_secret_")
	}
	return payment.Intent{ID: id, ClientSecret: out.ClientSecret, Amount: amount, Currency: currency}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &payload)
		if payload.Message == "" {
			payload.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
