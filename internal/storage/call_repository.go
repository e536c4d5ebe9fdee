package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/heliassets/internal/model"
)

// CallRepository records calls to paid providers (image generation, query suggestion).
// Go interfaces are implicit: any struct that has these methods satisfies it.
// This makes testing easy: the in-memory implementation below is used by tests
// and whenever the ledger is disabled.
type CallRepository interface {
	Create(ctx context.Context, call *model.ProviderCall) error
	ListRecent(ctx context.Context, limit int) ([]model.ProviderCall, error)
	CountByRunID(ctx context.Context, runID string) (int64, error)
}

// sqliteCallRepository is the SQLite implementation of CallRepository.
// The struct is unexported; only the interface is public.
type sqliteCallRepository struct {
	db *sqlx.DB
}

// NewCallRepository creates a new SQLite-backed CallRepository.
func NewCallRepository(db *sqlx.DB) CallRepository {
	return &sqliteCallRepository{db: db}
}

func (r *sqliteCallRepository) Create(ctx context.Context, call *model.ProviderCall) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO provider_calls (run_id, item_id, kind, provider, model, success, duration_ms, bytes, error)
		VALUES (:run_id, :item_id, :kind, :provider, :model, :success, :duration_ms, :bytes, :error)
	`, call)
	if err != nil {
		return fmt.Errorf("creating provider call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteCallRepository) ListRecent(ctx context.Context, limit int) ([]model.ProviderCall, error) {
	var calls []model.ProviderCall
	err := r.db.SelectContext(ctx, &calls,
		"SELECT * FROM provider_calls ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing provider calls: %w", err)
	}
	return calls, nil
}

func (r *sqliteCallRepository) CountByRunID(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM provider_calls WHERE run_id = ?", runID)
	return count, err
}

// MemoryCallRepository keeps calls in memory. It backs tests and runs with the ledger disabled.
type MemoryCallRepository struct {
	mu    sync.Mutex
	calls []model.ProviderCall
}

// NewMemoryCallRepository returns an empty in-memory repository.
func NewMemoryCallRepository() *MemoryCallRepository {
	return &MemoryCallRepository{}
}

func (m *MemoryCallRepository) Create(_ context.Context, call *model.ProviderCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.ID = int64(len(m.calls) + 1)
	m.calls = append(m.calls, *call)
	return nil
}

func (m *MemoryCallRepository) ListRecent(_ context.Context, limit int) ([]model.ProviderCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ProviderCall
	for i := len(m.calls) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.calls[i])
	}
	return out, nil
}

func (m *MemoryCallRepository) CountByRunID(_ context.Context, runID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.calls {
		if c.RunID == runID {
			n++
		}
	}
	return n, nil
}

// Calls returns a copy of every recorded call in insertion order.
func (m *MemoryCallRepository) Calls() []model.ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ProviderCall(nil), m.calls...)
}
