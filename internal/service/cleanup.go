package service

import (
	"context"
	"fmt"

	"checkout-orchestrator/internal/repo"
)

// Cleanup wipes the draft and cart snapshot once an order exists. Calling it
// any earlier would take away the buyer's ability to retry.
type Cleanup struct {
	drafts repo.DraftRepo
}

func NewCleanup(drafts repo.DraftRepo) *Cleanup {
	return &Cleanup{drafts: drafts}
}

func (c *Cleanup) Clear(ctx context.Context, sessionID string) error {
	if err := c.drafts.ClearDraft(ctx, sessionID); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	if err := c.drafts.ClearCart(ctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
