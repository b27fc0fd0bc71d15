package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/backend"
	"checkout-orchestrator/internal/repo"
)

type slowOrderAPI struct {
	calls int
}

func (s *slowOrderAPI) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenJournal struct {
	repo.FinalizationRepo
}

func (brokenJournal) CreateFinalization(ctx context.Context, _ *sql.Tx, f *domain.Finalization) error {
	return errors.New("journal down")
}

func finalizeInput(d *domain.OrderDraft, m domain.PaymentMethod, provider string) FinalizeInput {
	tok := domain.ConfirmationToken{Method: m, Status: domain.ConfirmationSucceeded}
	if provider != "" {
		tok.ProviderID = &provider
	}
	return FinalizeInput{
		SessionID: sessionID,
		Buyer:     buyer,
		Draft:     d,
		Attempt:   domain.PaymentAttempt{ID: uuid.New(), Method: m},
		Token:     tok,
	}
}

func TestFinalizePreconditions(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	f := NewFinalizer(orders, repo.NewMemoryFinalizationRepo(), time.Second)
	d := testDraft()

	in := finalizeInput(&d, domain.MethodCard, "pi_1")
	in.Token.Status = "requires_action"
	_, err := f.Finalize(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrTokenNotSucceeded)

	in = finalizeInput(nil, domain.MethodCard, "pi_1")
	_, err = f.Finalize(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrMissingDraft)

	assert.Empty(t, orders.Requests())
}

func TestFinalizeBuildsOrderRequest(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	f := NewFinalizer(orders, repo.NewMemoryFinalizationRepo(), time.Second)
	d := testDraft()

	order, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodCard, "pi_1"))
	require.NoError(t, err)

	reqs := orders.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.PaymentInfo{ID: "pi_1", Status: "succeeded", Type: "Credit Card"}, reqs[0].PaymentInfo)
	assert.Equal(t, d.Cart, reqs[0].Cart)
	assert.Equal(t, "pi_1", order.PaymentInfo.ID)
}

func TestFinalizeTimeoutIsNotRetried(t *testing.T) {
	t.Parallel()
	api := &slowOrderAPI{}
	journal := repo.NewMemoryFinalizationRepo()
	f := NewFinalizer(api, journal, 20*time.Millisecond)
	d := testDraft()

	_, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodWallet, "WO-1"))
	require.Error(t, err)
	assert.Equal(t, 1, api.calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "finalization_failed", apperr.Kind(err))
	assert.Contains(t, err.Error(), "payment captured, order not confirmed")

	rows := journal.All()
	require.Len(t, rows, 1)
	assert.Equal(t, domain.FinalizationUnconfirmed, rows[0].Status)
}

func TestFinalizePayOnDeliveryFailureIsNotCaptured(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	orders.FailNext(1)
	f := NewFinalizer(orders, repo.NewMemoryFinalizationRepo(), time.Second)
	d := testDraft()

	_, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodPayOnDelivery, ""))
	var final *apperr.FinalizationError
	require.ErrorAs(t, err, &final)
	assert.False(t, final.PaymentCaptured)
	assert.Equal(t, msgOrderFailed, Route(nil, err).Message)
}

func TestFinalizeReturnsRecordedOrderForConfirmedDraft(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	journal := repo.NewMemoryFinalizationRepo()
	f := NewFinalizer(orders, journal, time.Second)
	d := testDraft()

	first, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodCard, "pi_1"))
	require.NoError(t, err)

	again, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodCard, "pi_2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, orders.Requests(), 1)

	// the second capture is kept for review, never dropped
	var review []domain.Finalization
	for _, row := range journal.All() {
		if row.Status == domain.FinalizationNeedsReview {
			review = append(review, row)
		}
	}
	require.Len(t, review, 1)
	assert.Equal(t, "pi_2", *review[0].ProviderID)
	assert.Contains(t, review[0].LastError, first.ID)

	cod, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodPayOnDelivery, ""))
	require.NoError(t, err)
	assert.Equal(t, first.ID, cod.ID)
	assert.Len(t, journal.All(), 2)
}

func TestFinalizeOutlivesCancelledRequest(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	journal := repo.NewMemoryFinalizationRepo()
	f := NewFinalizer(orders, journal, time.Second)
	d := testDraft()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order, err := f.Finalize(ctx, finalizeInput(&d, domain.MethodCard, "pi_1"))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Len(t, orders.Requests(), 1)

	rows := journal.All()
	require.Len(t, rows, 1)
	assert.Equal(t, domain.FinalizationConfirmed, rows[0].Status)
}

func TestFinalizerCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	orders := backend.NewMockOrderAPI(0)
	f := NewFinalizer(orders, repo.NewMemoryFinalizationRepo(), time.Second)
	d := testDraft()

	order, err := f.Check(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, order)

	orders.FailNext(1)
	_, err = f.Finalize(ctx, finalizeInput(&d, domain.MethodCard, "pi_1"))
	require.Error(t, err)

	_, err = f.Check(ctx, d.ID)
	assert.ErrorIs(t, err, apperr.ErrUnsettledPayment)

	other := testDraft()
	placed, err := f.Finalize(ctx, finalizeInput(&other, domain.MethodCard, "pi_2"))
	require.NoError(t, err)

	order, err = f.Check(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, placed.ID, order.ID)
	assert.Equal(t, "pi_2", order.PaymentInfo.ID)
}

func TestFinalizeProceedsWhenJournalIsDown(t *testing.T) {
	t.Parallel()
	orders := backend.NewMockOrderAPI(0)
	f := NewFinalizer(orders, brokenJournal{repo.NewMemoryFinalizationRepo()}, time.Second)
	d := testDraft()

	order, err := f.Finalize(context.Background(), finalizeInput(&d, domain.MethodCard, "pi_1"))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Len(t, orders.Requests(), 1)
}
