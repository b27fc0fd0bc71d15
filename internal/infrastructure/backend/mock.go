package backend

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-orchestrator/internal/domain"
)

var ErrOrderTimeout = errors.New("order api: request timed out")

// MockOrderAPI is an in-process order backend. With a phantom rate set, it
// persists some orders and still reports a timeout, like a lost response.
type MockOrderAPI struct {
	mu          sync.Mutex
	orders      map[string]domain.Order
	byPayment   map[string]string
	requests    []domain.OrderRequest
	failNext    int
	phantomRate int
}

func NewMockOrderAPI(phantomRate int) *MockOrderAPI {
	return &MockOrderAPI{
		orders:      make(map[string]domain.Order),
		byPayment:   make(map[string]string),
		phantomRate: phantomRate,
	}
}

// FailNext makes the next n calls fail without persisting anything.
func (m *MockOrderAPI) FailNext(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

func (m *MockOrderAPI) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.failNext > 0 {
		m.failNext--
		return nil, ErrOrderTimeout
	}

	order := domain.Order{
		ID:          strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		Status:      domain.OrderProcessing,
		TotalPrice:  req.TotalPrice,
		PaymentInfo: req.PaymentInfo,
		CreatedAt:   time.Now(),
	}
	m.orders[order.ID] = order
	if req.PaymentInfo.ID != "" {
		m.byPayment[req.PaymentInfo.ID] = order.ID
	}

	if m.phantomRate > 0 && rand.IntN(100) < m.phantomRate {
		return nil, ErrOrderTimeout
	}
	return &order, nil
}

func (m *MockOrderAPI) FindOrderByPayment(ctx context.Context, paymentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byPayment[paymentID]
	if !ok {
		return nil, nil
	}
	o := m.orders[id]
	return &o, nil
}

// Requests returns every order-creation request received, in order.
func (m *MockOrderAPI) Requests() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderRequest(nil), m.requests...)
}

func (m *MockOrderAPI) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
