package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/metrics"
)

type sessionState struct {
	method     domain.PaymentMethod
	attempt    *domain.PaymentAttempt
	finalizing bool
	touched    time.Time
}

// Selector holds the chosen payment method and the single active attempt
// for every checkout session. An attempt pins the draft: while it is active
// the method cannot change and no second attempt can start.
type Selector struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	now      func() time.Time
}

func NewSelector() *Selector {
	return &Selector{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

// state must be called with s.mu held.
func (s *Selector) state(sessionID string) *sessionState {
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{method: domain.DefaultMethod}
		s.sessions[sessionID] = st
	}
	st.touched = s.now()
	return st
}

func (s *Selector) Method(sessionID string) domain.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(sessionID).method
}

// Select switches the method. Re-selecting the current one is a no-op even
// mid-attempt; switching while an attempt is active is rejected.
func (s *Selector) Select(sessionID string, m domain.PaymentMethod) error {
	if !m.Valid() {
		return apperr.ErrInvalidMethod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	if st.method == m {
		return nil
	}
	if st.finalizing || (st.attempt != nil && st.attempt.Status.Active()) {
		return apperr.ErrAttemptInProgress
	}
	st.method = m
	return nil
}

// Begin starts an attempt for the selected method.
func (s *Selector) Begin(sessionID string, m domain.PaymentMethod) (domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	if st.finalizing || (st.attempt != nil && st.attempt.Status.Active()) {
		return domain.PaymentAttempt{}, apperr.ErrAttemptInProgress
	}
	if st.method != m {
		return domain.PaymentAttempt{}, apperr.ErrMethodNotSelected
	}

	now := s.now()
	st.attempt = &domain.PaymentAttempt{
		ID:        uuid.New(),
		Method:    m,
		Status:    domain.AttemptInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return *st.attempt, nil
}

func (s *Selector) Attempt(sessionID string) (domain.PaymentAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok || st.attempt == nil {
		return domain.PaymentAttempt{}, false
	}
	return *st.attempt, true
}

// AwaitApproval parks a wallet attempt until the buyer answers in the
// provider's approval surface.
func (s *Selector) AwaitApproval(sessionID string, attemptID uuid.UUID, providerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	a := st.attempt
	if a == nil || a.ID != attemptID || a.Status != domain.AttemptInProgress {
		return apperr.ErrNoActiveAttempt
	}
	a.ProviderReference = providerOrderID
	a.Status = domain.AttemptAwaitingApproval
	a.UpdatedAt = s.now()
	return nil
}

// StartCapture moves an approved wallet attempt to Capturing. A second
// approval for the same order sees Capturing and is rejected.
func (s *Selector) StartCapture(sessionID, providerOrderID string) (domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	a := st.attempt
	switch {
	case a == nil || a.Method != domain.MethodWallet || a.Status.Terminal():
		return domain.PaymentAttempt{}, apperr.ErrNoActiveAttempt
	case a.ProviderReference != providerOrderID:
		return domain.PaymentAttempt{}, apperr.ErrApprovalMismatch
	case a.Status != domain.AttemptAwaitingApproval:
		return domain.PaymentAttempt{}, apperr.ErrAttemptInProgress
	}
	a.Status = domain.AttemptCapturing
	a.UpdatedAt = s.now()
	return *a, nil
}

// Cancel abandons a wallet attempt still waiting for approval and returns
// the session to idle. An empty providerOrderID matches any order.
func (s *Selector) Cancel(sessionID, providerOrderID string) (domain.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	a := st.attempt
	switch {
	case a == nil || !a.Status.Active():
		return domain.PaymentAttempt{}, apperr.ErrNoActiveAttempt
	case providerOrderID != "" && a.ProviderReference != providerOrderID:
		return domain.PaymentAttempt{}, apperr.ErrApprovalMismatch
	case a.Status != domain.AttemptAwaitingApproval:
		return domain.PaymentAttempt{}, apperr.ErrAttemptInProgress
	}
	cancelled := *a
	cancelled.Status = domain.AttemptCancelled
	cancelled.UpdatedAt = s.now()
	st.attempt = nil
	return cancelled, nil
}

// ClaimFinalize moves the attempt out of its in-flight state before the
// order call starts. Only one caller can win the claim.
func (s *Selector) ClaimFinalize(sessionID string, attemptID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(sessionID)
	a := st.attempt
	if a == nil || a.ID != attemptID {
		return apperr.ErrNoActiveAttempt
	}
	if st.finalizing || !a.Status.Active() {
		return apperr.ErrAlreadyFinalizing
	}
	st.finalizing = true
	a.Status = domain.AttemptConfirmed
	a.UpdatedAt = s.now()
	return nil
}

// Finish releases the attempt with its final status so a fresh one can
// start. It does nothing if attemptID is no longer the active attempt.
func (s *Selector) Finish(sessionID string, attemptID uuid.UUID, status domain.AttemptStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok || st.attempt == nil || st.attempt.ID != attemptID {
		return
	}
	st.attempt.Status = status
	st.attempt.UpdatedAt = s.now()
	st.attempt = nil
	st.finalizing = false
}

// Sweep cancels wallet approvals left open longer than approvalTTL and
// evicts sessions idle longer than idleTTL. Sessions that are finalizing
// are never touched.
func (s *Selector) Sweep(approvalTTL, idleTTL time.Duration) (cancelled, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, st := range s.sessions {
		if st.finalizing {
			continue
		}
		a := st.attempt
		if a != nil && a.Status == domain.AttemptAwaitingApproval && now.Sub(a.UpdatedAt) > approvalTTL {
			st.attempt = nil
			cancelled++
			metrics.AttemptsTotal.WithLabelValues(string(a.Method), "cancelled").Inc()
		}
		if st.attempt == nil && now.Sub(st.touched) > idleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	return cancelled, evicted
}
