package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/metrics"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSelectorDefaultsToCard(t *testing.T) {
	t.Parallel()
	s := NewSelector()
	assert.Equal(t, domain.MethodCard, s.Method("x"))
}

func TestSelectorSingleActiveAttempt(t *testing.T) {
	t.Parallel()
	s := NewSelector()

	a, err := s.Begin("s", domain.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptInProgress, a.Status)

	_, err = s.Begin("s", domain.MethodCard)
	assert.ErrorIs(t, err, apperr.ErrAttemptInProgress)

	require.NoError(t, s.ClaimFinalize("s", a.ID))
	assert.ErrorIs(t, s.ClaimFinalize("s", a.ID), apperr.ErrAlreadyFinalizing)

	_, err = s.Begin("s", domain.MethodCard)
	assert.ErrorIs(t, err, apperr.ErrAttemptInProgress)
	assert.ErrorIs(t, s.Select("s", domain.MethodWallet), apperr.ErrAttemptInProgress)

	s.Finish("s", a.ID, domain.AttemptConfirmed)
	_, ok := s.Attempt("s")
	assert.False(t, ok)

	_, err = s.Begin("s", domain.MethodCard)
	assert.NoError(t, err)
}

func TestSelectorFinishIgnoresStaleAttempt(t *testing.T) {
	t.Parallel()
	s := NewSelector()

	first, err := s.Begin("s", domain.MethodCard)
	require.NoError(t, err)
	s.Finish("s", first.ID, domain.AttemptFailed)

	second, err := s.Begin("s", domain.MethodCard)
	require.NoError(t, err)

	s.Finish("s", first.ID, domain.AttemptFailed)
	got, ok := s.Attempt("s")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
}

func TestSelectorWalletStates(t *testing.T) {
	t.Parallel()
	s := NewSelector()
	require.NoError(t, s.Select("s", domain.MethodWallet))

	a, err := s.Begin("s", domain.MethodWallet)
	require.NoError(t, err)

	_, err = s.StartCapture("s", "WO-1")
	assert.ErrorIs(t, err, apperr.ErrApprovalMismatch)

	require.NoError(t, s.AwaitApproval("s", a.ID, "WO-1"))

	_, err = s.StartCapture("s", "WO-2")
	assert.ErrorIs(t, err, apperr.ErrApprovalMismatch)

	capturing, err := s.StartCapture("s", "WO-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptCapturing, capturing.Status)

	_, err = s.StartCapture("s", "WO-1")
	assert.ErrorIs(t, err, apperr.ErrAttemptInProgress)
}

func TestSelectorCancel(t *testing.T) {
	t.Parallel()
	s := NewSelector()
	require.NoError(t, s.Select("s", domain.MethodWallet))

	_, err := s.Cancel("s", "")
	assert.ErrorIs(t, err, apperr.ErrNoActiveAttempt)

	a, err := s.Begin("s", domain.MethodWallet)
	require.NoError(t, err)
	require.NoError(t, s.AwaitApproval("s", a.ID, "WO-1"))

	_, err = s.Cancel("s", "WO-9")
	assert.ErrorIs(t, err, apperr.ErrApprovalMismatch)

	cancelled, err := s.Cancel("s", "WO-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptCancelled, cancelled.Status)

	require.NoError(t, s.Select("s", domain.MethodPayOnDelivery))
}

func TestSelectorSweep(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSelector()
	s.now = clock.now

	require.NoError(t, s.Select("waiting", domain.MethodWallet))
	a, err := s.Begin("waiting", domain.MethodWallet)
	require.NoError(t, err)
	require.NoError(t, s.AwaitApproval("waiting", a.ID, "WO-1"))

	carded, err := s.Begin("paying", domain.MethodCard)
	require.NoError(t, err)
	require.NoError(t, s.ClaimFinalize("paying", carded.ID))

	s.Method("idle")

	clock.advance(15 * time.Minute)
	cancelled, evicted := s.Sweep(10*time.Minute, time.Hour)
	assert.Equal(t, 1, cancelled)
	assert.Zero(t, evicted)

	_, ok := s.Attempt("waiting")
	assert.False(t, ok)

	clock.advance(2 * time.Hour)
	_, evicted = s.Sweep(10*time.Minute, time.Hour)
	assert.Equal(t, 2, evicted)

	_, ok = s.Attempt("paying")
	assert.True(t, ok, "finalizing sessions are never swept")
}

// Not parallel: it reads a package-level counter.
func TestSelectorSweepCountsExpiredApprovals(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSelector()
	s.now = clock.now

	require.NoError(t, s.Select("waiting", domain.MethodWallet))
	a, err := s.Begin("waiting", domain.MethodWallet)
	require.NoError(t, err)
	require.NoError(t, s.AwaitApproval("waiting", a.ID, "WO-1"))

	counter := metrics.AttemptsTotal.WithLabelValues(string(domain.MethodWallet), "cancelled")
	before := testutil.ToFloat64(counter)

	clock.advance(15 * time.Minute)
	cancelled, _ := s.Sweep(10*time.Minute, time.Hour)
	require.Equal(t, 1, cancelled)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
