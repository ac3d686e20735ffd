package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

func (m *MySQLAdapter) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	var it domain.Item
	var kind string
	err := m.db.QueryRowContext(ctx, `
		SELECT id, code, name, usage_kind, active, created_at
		FROM catalog_items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Code, &it.Name, &kind, &it.Active, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", mapErr(err))
	}
	it.UsageKind = domain.UsageKind(kind)
	return &it, nil
}

func (m *MySQLAdapter) GetState(ctx context.Context, id int64) (*domain.StockState, error) {
	var st domain.StockState
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, allows_use FROM stock_states WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Description, &st.AllowsUse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", mapErr(err))
	}
	return &st, nil
}

func (m *MySQLAdapter) GetStateByName(ctx context.Context, name string) (*domain.StockState, error) {
	var st domain.StockState
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, allows_use FROM stock_states WHERE name = ?`, name,
	).Scan(&st.ID, &st.Name, &st.Description, &st.AllowsUse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query state by name: %w", mapErr(err))
	}
	return &st, nil
}

func (m *MySQLAdapter) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	var a domain.Area
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM areas WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query area: %w", mapErr(err))
	}
	return &a, nil
}

const workerColumns = `id, national_id, first_name, last_name, area_id, position, status, hired_at`

func scanWorker(row interface{ Scan(...any) error }) (*domain.Worker, error) {
	var w domain.Worker
	var status string
	var hired sql.NullTime
	err := row.Scan(&w.ID, &w.NationalID, &w.FirstName, &w.LastName, &w.AreaID, &w.Position, &status, &hired)
	if err != nil {
		return nil, err
	}
	w.Status = domain.WorkerStatus(status)
	w.HiredAt = timePtr(hired)
	return &w, nil
}

func (m *MySQLAdapter) GetWorker(ctx context.Context, id int64) (*domain.Worker, error) {
	w, err := scanWorker(m.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query worker: %w", mapErr(err))
	}
	return w, nil
}

// GetWorkerByUser resolves a user account to its worker profile. A user row
// with a NULL worker_id yields ErrSupervisorNoProfile.
func (m *MySQLAdapter) GetWorkerByUser(ctx context.Context, userID int64) (*domain.Worker, error) {
	var workerID sql.NullInt64
	err := m.db.QueryRowContext(ctx,
		`SELECT worker_id FROM users WHERE id = ?`, userID,
	).Scan(&workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", mapErr(err))
	}
	if !workerID.Valid {
		return nil, domain.ErrSupervisorNoProfile
	}
	return m.GetWorker(ctx, workerID.Int64)
}
