package repo

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-orchestrator/internal/domain"
)

// MemoryDraftRepo keeps drafts in process. Used by the simulator and tests.
type MemoryDraftRepo struct {
	mu     sync.Mutex
	drafts map[string]domain.OrderDraft
	carts  map[string]domain.CartSnapshot
}

func NewMemoryDraftRepo() *MemoryDraftRepo {
	return &MemoryDraftRepo{
		drafts: make(map[string]domain.OrderDraft),
		carts:  make(map[string]domain.CartSnapshot),
	}
}

// Put stores a draft and its cart snapshot, standing in for the upstream
// cart/shipping step.
func (r *MemoryDraftRepo) Put(sessionID string, draft domain.OrderDraft, cart domain.CartSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[sessionID] = draft
	r.carts[sessionID] = cart
}

func (r *MemoryDraftRepo) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *MemoryDraftRepo) ClearDraft(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, sessionID)
	return nil
}

func (r *MemoryDraftRepo) ClearCart(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func (r *MemoryDraftRepo) HasDraft(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[sessionID]
	return ok
}

func (r *MemoryDraftRepo) HasCart(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.carts[sessionID]
	return ok
}

type MemoryFinalizationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Finalization
}

func NewMemoryFinalizationRepo() *MemoryFinalizationRepo {
	return &MemoryFinalizationRepo{rows: make(map[uuid.UUID]domain.Finalization)}
}

func (r *MemoryFinalizationRepo) CreateFinalization(ctx context.Context, _ *sql.Tx, f *domain.Finalization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[f.ID] = *f
	return nil
}

func (r *MemoryFinalizationRepo) UpdateFinalizationStatus(ctx context.Context, _ *sql.Tx, f *domain.Finalization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[f.ID]
	if !ok {
		return sql.ErrNoRows
	}
	row.Status = f.Status
	if f.OrderID != nil {
		row.OrderID = f.OrderID
	}
	row.LastError = f.LastError
	row.UpdatedAt = f.UpdatedAt
	r.rows[f.ID] = row
	return nil
}

func (r *MemoryFinalizationRepo) FindConfirmedByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.DraftID == draftID && row.Status == domain.FinalizationConfirmed {
			f := row
			return &f, nil
		}
	}
	return nil, nil
}

func (r *MemoryFinalizationRepo) FindUnsettledByDraft(ctx context.Context, draftID uuid.UUID) (*domain.Finalization, error) {
	var latest *domain.Finalization
	for _, f := range r.All() {
		unsettled := f.Status == domain.FinalizationPending || f.Status == domain.FinalizationUnconfirmed
		if f.DraftID == draftID && unsettled {
			f := f
			latest = &f
		}
	}
	return latest, nil
}

func (r *MemoryFinalizationRepo) FindUnsettledBefore(ctx context.Context, before time.Time, limit int) ([]domain.Finalization, error) {
	out := r.All()
	kept := out[:0]
	for _, f := range out {
		unsettled := f.Status == domain.FinalizationPending || f.Status == domain.FinalizationUnconfirmed
		if unsettled && f.UpdatedAt.Before(before) {
			kept = append(kept, f)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

// All returns every row ordered by last update.
func (r *MemoryFinalizationRepo) All() []domain.Finalization {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Finalization, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}
