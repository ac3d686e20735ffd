package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

const instanceColumns = `
	id, item_id, serial, state_id, area_id, worker_id,
	acquired_at, expires_at, notes, created_at, updated_at`

func scanInstance(row interface{ Scan(...any) error }) (*domain.Instance, error) {
	var (
		inst     domain.Instance
		areaID   sql.NullInt64
		workerID sql.NullInt64
		expires  sql.NullTime
	)
	err := row.Scan(
		&inst.ID, &inst.ItemID, &inst.Serial, &inst.StateID, &areaID, &workerID,
		&inst.AcquiredAt, &expires, &inst.Notes, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.AreaID = int64Ptr(areaID)
	inst.WorkerID = int64Ptr(workerID)
	inst.ExpiresAt = timePtr(expires)
	return &inst, nil
}

func (m *MySQLAdapter) GetInstance(ctx context.Context, id int64) (*domain.Instance, error) {
	inst, err := scanInstance(m.db.QueryRowContext(ctx,
		`SELECT`+instanceColumns+` FROM instances WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query instance: %w", mapErr(err))
	}
	return inst, nil
}

func (m *MySQLAdapter) GetInstanceForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.Instance, error) {
	inst, err := scanInstance(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+instanceColumns+` FROM instances WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock instance: %w", mapErr(err))
	}
	return inst, nil
}

func (m *MySQLAdapter) FindInstanceBySerial(ctx context.Context, serial string) (*domain.Instance, error) {
	inst, err := scanInstance(m.db.QueryRowContext(ctx,
		`SELECT`+instanceColumns+` FROM instances WHERE serial = ?`, serial))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query instance by serial: %w", mapErr(err))
	}
	return inst, nil
}

func (m *MySQLAdapter) InsertInstance(ctx context.Context, tx port.Tx, inst *domain.Instance) (int64, error) {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO instances
			(item_id, serial, state_id, area_id, worker_id,
			 acquired_at, expires_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ItemID, inst.Serial, inst.StateID, nullInt64(inst.AreaID), nullInt64(inst.WorkerID),
		inst.AcquiredAt, nullTime(inst.ExpiresAt), inst.Notes, inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert instance: %w", mapErr(err))
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) UpdateInstance(ctx context.Context, tx port.Tx, inst *domain.Instance) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE instances
		SET state_id = ?, area_id = ?, worker_id = ?, expires_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		inst.StateID, nullInt64(inst.AreaID), nullInt64(inst.WorkerID),
		nullTime(inst.ExpiresAt), inst.Notes, inst.UpdatedAt, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", mapErr(err))
	}
	return nil
}

func (m *MySQLAdapter) ListInstancesByWorker(ctx context.Context, workerID int64) ([]domain.Instance, error) {
	return m.listInstances(ctx, `SELECT`+instanceColumns+` FROM instances WHERE worker_id = ? ORDER BY id`, workerID)
}

func (m *MySQLAdapter) ListInstancesByArea(ctx context.Context, areaID int64) ([]domain.Instance, error) {
	return m.listInstances(ctx, `SELECT`+instanceColumns+` FROM instances WHERE area_id = ? ORDER BY id`, areaID)
}

func (m *MySQLAdapter) listInstances(ctx context.Context, query string, args ...any) ([]domain.Instance, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", mapErr(err))
	}
	defer rows.Close()

	var insts []domain.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		insts = append(insts, *inst)
	}
	return insts, rows.Err()
}
