package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"checkout-orchestrator/internal/domain"
)

type FinalizationRepo interface {
	// tx may be nil, in which case the write autocommits.
	CreateFinalization(ctx context.Context, tx *sql.Tx, f *domain.Finalization) error
	UpdateFinalizationStatus(ctx context.Context, tx *sql.Tx, f *domain.Finalization) error
	FindConfirmedByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error)
	// FindUnsettledByDraft returns the latest PENDING or UNCONFIRMED row for the draft.
	FindUnsettledByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error)
	// FindUnsettledBefore returns PENDING and UNCONFIRMED rows last touched before the cutoff.
	FindUnsettledBefore(ctx context.Context, before time.Time, limit int) ([]domain.Finalization, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type finalizationRepo struct {
	db *sql.DB
}

func NewFinalizationRepo(db *sql.DB) FinalizationRepo {
	return &finalizationRepo{db: db}
}

func (r *finalizationRepo) exec(tx *sql.Tx) execer {
	if tx == nil {
		return r.db
	}
	return tx
}

const finalizationColumns = `id, draft_id, attempt_id, session_id, buyer_id, method, provider_id, amount, currency, order_id, status, last_error, created_at, updated_at`

func (r *finalizationRepo) CreateFinalization(ctx context.Context, tx *sql.Tx, f *domain.Finalization) error {
	query := `INSERT INTO finalizations (` + finalizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.exec(tx).ExecContext(ctx, query,
		f.ID, f.DraftID, f.AttemptID, f.SessionID, f.BuyerID, f.Method, f.ProviderID,
		f.Amount, f.Currency, f.OrderID, f.Status, f.LastError, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (r *finalizationRepo) UpdateFinalizationStatus(ctx context.Context, tx *sql.Tx, f *domain.Finalization) error {
	query := `
		UPDATE finalizations
		SET status = $2,
		    order_id = COALESCE($3, order_id),
		    last_error = $4,
		    updated_at = $5
		WHERE id = $1
	`
	_, err := r.exec(tx).ExecContext(ctx, query, f.ID, f.Status, f.OrderID, f.LastError, f.UpdatedAt)
	return err
}

func (r *finalizationRepo) FindConfirmedByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error) {
	query := `SELECT ` + finalizationColumns + ` FROM finalizations
		WHERE draft_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	f, err := scanFinalization(r.db.QueryRowContext(ctx, query, draftID, domain.FinalizationConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *finalizationRepo) FindUnsettledByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error) {
	query := `SELECT ` + finalizationColumns + ` FROM finalizations
		WHERE draft_id = $1 AND status IN ($2, $3)
		ORDER BY updated_at DESC
		LIMIT 1`

	f, err := scanFinalization(r.db.QueryRowContext(ctx, query, draftID, domain.FinalizationPending, domain.FinalizationUnconfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *finalizationRepo) FindUnsettledBefore(ctx context.Context, before time.Time, limit int) ([]domain.Finalization, error) {
	query := `SELECT ` + finalizationColumns + ` FROM finalizations
		WHERE status IN ($1, $2)
		AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, domain.FinalizationPending, domain.FinalizationUnconfirmed, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Finalization
	for rows.Next() {
		f, err := scanFinalization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFinalization(s scanner) (*domain.Finalization, error) {
	var (
		f          domain.Finalization
		providerID sql.NullString
		orderID    sql.NullString
	)
	err := s.Scan(
		&f.ID,
		&f.DraftID,
		&f.AttemptID,
		&f.SessionID,
		&f.BuyerID,
		&f.Method,
		&providerID,
		&f.Amount,
		&f.Currency,
		&orderID,
		&f.Status,
		&f.LastError,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		f.ProviderID = &providerID.String
	}
	if orderID.Valid {
		f.OrderID = &orderID.String
	}
	return &f, nil
}
