package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

func (m *MySQLAdapter) InsertDelivery(ctx context.Context, tx port.Tx, d *domain.Delivery) (int64, error) {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO deliveries
			(code, worker_id, supervisor_id, delivered_at, kind, notes, signature, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Code, d.WorkerID, d.SupervisorID, d.DeliveredAt, string(d.Kind), d.Notes, d.Signature, d.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", mapErr(err))
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) InsertDeliveryLines(ctx context.Context, tx port.Tx, deliveryID int64, lines []domain.DeliveryLine) error {
	for i := range lines {
		ln := &lines[i]
		res, err := sqlTx(tx).ExecContext(ctx, `
			INSERT INTO delivery_lines (delivery_id, item_id, quantity, instance_id, reason)
			VALUES (?, ?, ?, ?, ?)`,
			deliveryID, ln.ItemID, ln.Quantity, nullInt64(ln.InstanceID), ln.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert delivery line: %w", mapErr(err))
		}
		ln.ID, _ = res.LastInsertId()
		ln.DeliveryID = deliveryID
	}
	return nil
}

func scanDelivery(row interface{ Scan(...any) error }) (*domain.Delivery, error) {
	var d domain.Delivery
	var kind string
	err := row.Scan(
		&d.ID, &d.Code, &d.WorkerID, &d.SupervisorID, &d.DeliveredAt,
		&kind, &d.Notes, &d.Signature, &d.Status,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = domain.DeliveryKind(kind)
	return &d, nil
}

const deliveryColumns = `
	id, code, worker_id, supervisor_id, delivered_at, kind, notes, signature, status`

func (m *MySQLAdapter) GetDelivery(ctx context.Context, id int64) (*domain.Delivery, error) {
	d, err := scanDelivery(m.db.QueryRowContext(ctx,
		`SELECT`+deliveryColumns+` FROM deliveries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query delivery: %w", mapErr(err))
	}

	lines, err := m.listDeliveryLines(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Lines = lines
	return d, nil
}

func (m *MySQLAdapter) ListDeliveriesByWorker(ctx context.Context, workerID int64) ([]domain.Delivery, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT`+deliveryColumns+` FROM deliveries WHERE worker_id = ? ORDER BY delivered_at DESC, id DESC`,
		workerID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", mapErr(err))
	}
	defer rows.Close()

	var ds []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		ds = append(ds, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range ds {
		lines, err := m.listDeliveryLines(ctx, ds[i].ID)
		if err != nil {
			return nil, err
		}
		ds[i].Lines = lines
	}
	return ds, nil
}

func (m *MySQLAdapter) listDeliveryLines(ctx context.Context, deliveryID int64) ([]domain.DeliveryLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, delivery_id, item_id, quantity, instance_id, reason
		FROM delivery_lines WHERE delivery_id = ? ORDER BY id`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list delivery lines: %w", mapErr(err))
	}
	defer rows.Close()

	var lines []domain.DeliveryLine
	for rows.Next() {
		var ln domain.DeliveryLine
		var instID sql.NullInt64
		if err := rows.Scan(&ln.ID, &ln.DeliveryID, &ln.ItemID, &ln.Quantity, &instID, &ln.Reason); err != nil {
			return nil, fmt.Errorf("scan delivery line: %w", err)
		}
		ln.InstanceID = int64Ptr(instID)
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}
