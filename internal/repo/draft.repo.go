package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-orchestrator/internal/domain"
)

// DraftRepo is the durable checkout slot. The cart/shipping step writes it;
// the payment pipeline only reads it and, after an order exists, clears it.
type DraftRepo interface {
	// GetDraft returns nil, nil when the session has no draft.
	GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error)
	ClearDraft(ctx context.Context, sessionID string) error
	ClearCart(ctx context.Context, sessionID string) error
}

type draftRepo struct {
	db *sql.DB
}

func NewDraftRepo(db *sql.DB) DraftRepo {
	return &draftRepo{db: db}
}

func (r *draftRepo) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, "SELECT draft FROM checkout_drafts WHERE session_id = $1", sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var draft domain.OrderDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft for session %s: %w", sessionID, err)
	}
	return &draft, nil
}

func (r *draftRepo) ClearDraft(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM checkout_drafts WHERE session_id = $1", sessionID)
	return err
}

func (r *draftRepo) ClearCart(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_snapshots WHERE session_id = $1", sessionID)
	return err
}
