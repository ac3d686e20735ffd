package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

const centralColumns = `
	id, item_id, lot, state_id, quantity, min_quantity, max_quantity,
	location, acquired_at, unit_cost_cents, supplier, expires_at, notes, updated_at`

func scanCentral(row interface{ Scan(...any) error }) (*domain.CentralStock, error) {
	var (
		rec      domain.CentralStock
		maxQty   sql.NullInt64
		acquired sql.NullTime
		expires  sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.ItemID, &rec.Lot, &rec.StateID, &rec.Quantity,
		&rec.MinQuantity, &maxQty, &rec.Location, &acquired,
		&rec.UnitCostCents, &rec.Supplier, &expires, &rec.Notes, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MaxQuantity = intPtr(maxQty)
	rec.AcquiredAt = timePtr(acquired)
	rec.ExpiresAt = timePtr(expires)
	return &rec, nil
}

func (m *MySQLAdapter) GetCentral(ctx context.Context, id int64) (*domain.CentralStock, error) {
	rec, err := scanCentral(m.db.QueryRowContext(ctx,
		`SELECT`+centralColumns+` FROM central_stock WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query central stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) GetCentralForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.CentralStock, error) {
	rec, err := scanCentral(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+centralColumns+` FROM central_stock WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock central stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) FindCentralByKeyForUpdate(ctx context.Context, tx port.Tx, itemID int64, lot string, stateID int64) (*domain.CentralStock, error) {
	rec, err := scanCentral(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+centralColumns+` FROM central_stock
		 WHERE item_id = ? AND lot = ? AND state_id = ? FOR UPDATE`,
		itemID, lot, stateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find central stock by key: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) FindCentralUsableForUpdate(ctx context.Context, tx port.Tx, itemID int64, need int) (*domain.CentralStock, error) {
	rec, err := scanCentral(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+centralColumns+` FROM central_stock
		 WHERE item_id = ?
		   AND quantity >= ?
		   AND state_id IN (SELECT id FROM stock_states WHERE allows_use = TRUE)
		 ORDER BY quantity DESC, id ASC
		 LIMIT 1
		 FOR UPDATE`,
		itemID, need))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find usable central stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) InsertCentral(ctx context.Context, tx port.Tx, rec *domain.CentralStock) (int64, error) {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO central_stock
			(item_id, lot, state_id, quantity, min_quantity, max_quantity,
			 location, acquired_at, unit_cost_cents, supplier, expires_at, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.Lot, rec.StateID, rec.Quantity, rec.MinQuantity,
		nullInt(rec.MaxQuantity), rec.Location, nullTime(rec.AcquiredAt),
		rec.UnitCostCents, rec.Supplier, nullTime(rec.ExpiresAt), rec.Notes, rec.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert central stock: %w", mapErr(err))
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) UpdateCentral(ctx context.Context, tx port.Tx, rec *domain.CentralStock) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE central_stock
		SET lot = ?, state_id = ?, quantity = ?, min_quantity = ?, max_quantity = ?,
		    location = ?, acquired_at = ?, unit_cost_cents = ?, supplier = ?,
		    expires_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		rec.Lot, rec.StateID, rec.Quantity, rec.MinQuantity, nullInt(rec.MaxQuantity),
		rec.Location, nullTime(rec.AcquiredAt), rec.UnitCostCents, rec.Supplier,
		nullTime(rec.ExpiresAt), rec.Notes, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update central stock: %w", mapErr(err))
	}
	return nil
}

func (m *MySQLAdapter) DeleteCentral(ctx context.Context, tx port.Tx, id int64) error {
	_, err := sqlTx(tx).ExecContext(ctx, `DELETE FROM central_stock WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete central stock: %w", mapErr(err))
	}
	return nil
}

func (m *MySQLAdapter) ListCentralByItem(ctx context.Context, itemID int64) ([]domain.CentralStock, error) {
	return m.listCentral(ctx, `SELECT`+centralColumns+` FROM central_stock WHERE item_id = ? ORDER BY id`, itemID)
}

func (m *MySQLAdapter) ListCentralLowStock(ctx context.Context) ([]domain.CentralStock, error) {
	return m.listCentral(ctx, `SELECT`+centralColumns+` FROM central_stock WHERE quantity <= min_quantity ORDER BY id`)
}

func (m *MySQLAdapter) ListCentralNearExpiry(ctx context.Context, before time.Time) ([]domain.CentralStock, error) {
	return m.listCentral(ctx,
		`SELECT`+centralColumns+` FROM central_stock
		 WHERE expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at, id`, before)
}

func (m *MySQLAdapter) listCentral(ctx context.Context, query string, args ...any) ([]domain.CentralStock, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list central stock: %w", mapErr(err))
	}
	defer rows.Close()

	var recs []domain.CentralStock
	for rows.Next() {
		rec, err := scanCentral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan central stock: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

const areaColumns = `
	id, item_id, area_id, state_id, quantity, min_quantity, max_quantity, location, updated_at`

func scanArea(row interface{ Scan(...any) error }) (*domain.AreaStock, error) {
	var (
		rec    domain.AreaStock
		maxQty sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.ItemID, &rec.AreaID, &rec.StateID, &rec.Quantity,
		&rec.MinQuantity, &maxQty, &rec.Location, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MaxQuantity = intPtr(maxQty)
	return &rec, nil
}

func (m *MySQLAdapter) GetAreaStock(ctx context.Context, id int64) (*domain.AreaStock, error) {
	rec, err := scanArea(m.db.QueryRowContext(ctx,
		`SELECT`+areaColumns+` FROM area_stock WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query area stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) GetAreaStockForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.AreaStock, error) {
	rec, err := scanArea(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+areaColumns+` FROM area_stock WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock area stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) FindAreaByKeyForUpdate(ctx context.Context, tx port.Tx, itemID, areaID, stateID int64) (*domain.AreaStock, error) {
	rec, err := scanArea(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+areaColumns+` FROM area_stock
		 WHERE item_id = ? AND area_id = ? AND state_id = ? FOR UPDATE`,
		itemID, areaID, stateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find area stock by key: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) FindAreaUsable(ctx context.Context, tx port.Tx, itemID, areaID int64) (*domain.AreaStock, error) {
	rec, err := scanArea(sqlTx(tx).QueryRowContext(ctx,
		`SELECT`+areaColumns+` FROM area_stock
		 WHERE item_id = ? AND area_id = ?
		   AND state_id IN (SELECT id FROM stock_states WHERE allows_use = TRUE)
		 ORDER BY quantity DESC, id ASC
		 LIMIT 1`,
		itemID, areaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find usable area stock: %w", mapErr(err))
	}
	return rec, nil
}

func (m *MySQLAdapter) InsertArea(ctx context.Context, tx port.Tx, rec *domain.AreaStock) (int64, error) {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO area_stock
			(item_id, area_id, state_id, quantity, min_quantity, max_quantity, location, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.AreaID, rec.StateID, rec.Quantity, rec.MinQuantity,
		nullInt(rec.MaxQuantity), rec.Location, rec.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert area stock: %w", mapErr(err))
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) UpdateArea(ctx context.Context, tx port.Tx, rec *domain.AreaStock) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE area_stock
		SET state_id = ?, quantity = ?, min_quantity = ?, max_quantity = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		rec.StateID, rec.Quantity, rec.MinQuantity, nullInt(rec.MaxQuantity),
		rec.Location, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update area stock: %w", mapErr(err))
	}
	return nil
}

func (m *MySQLAdapter) DeleteArea(ctx context.Context, tx port.Tx, id int64) error {
	_, err := sqlTx(tx).ExecContext(ctx, `DELETE FROM area_stock WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete area stock: %w", mapErr(err))
	}
	return nil
}

func (m *MySQLAdapter) ListAreaByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	return m.listArea(ctx, `SELECT`+areaColumns+` FROM area_stock WHERE area_id = ? ORDER BY id`, areaID)
}

func (m *MySQLAdapter) ListAreaLowStockByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	return m.listArea(ctx,
		`SELECT`+areaColumns+` FROM area_stock
		 WHERE area_id = ? AND quantity <= min_quantity ORDER BY id`, areaID)
}

func (m *MySQLAdapter) ListAreaLowStock(ctx context.Context) ([]domain.AreaStock, error) {
	return m.listArea(ctx, `SELECT`+areaColumns+` FROM area_stock WHERE quantity <= min_quantity ORDER BY id`)
}

func (m *MySQLAdapter) listArea(ctx context.Context, query string, args ...any) ([]domain.AreaStock, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list area stock: %w", mapErr(err))
	}
	defer rows.Close()

	var recs []domain.AreaStock
	for rows.Next() {
		rec, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area stock: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
