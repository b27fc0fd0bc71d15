package worker

import (
	"context"
	"time"

	"checkout-orchestrator/internal/logger"
)

type Sweeper interface {
	Sweep(approvalTTL, idleTTL time.Duration) (cancelled, evicted int)
}

// SessionSweeper expires abandoned wallet approvals and idle checkout
// sessions on a fixed interval.
type SessionSweeper struct {
	sessions    Sweeper
	interval    time.Duration
	approvalTTL time.Duration
	idleTTL     time.Duration
}

func NewSessionSweeper(sessions Sweeper, interval, approvalTTL, idleTTL time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions:    sessions,
		interval:    interval,
		approvalTTL: approvalTTL,
		idleTTL:     idleTTL,
	}
}

func (s *SessionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cancelled, evicted := s.sessions.Sweep(s.approvalTTL, s.idleTTL)
			if cancelled > 0 || evicted > 0 {
				logger.Info("checkout sessions swept", map[string]interface{}{
					"cancelled_approvals": cancelled,
					"evicted_sessions":    evicted,
				})
			}
		}
	}
}
