package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

// InstanceService tracks serialized durable units: intake and read queries.
// The in-stock -> delivered transition runs inside the delivery
// orchestrator's transaction.
type InstanceService struct {
	db        port.TxBeginner
	instances port.InstanceRepository
	lookup    port.LookupRepository
}

func NewInstanceService(db port.TxBeginner, instances port.InstanceRepository, lookup port.LookupRepository) *InstanceService {
	return &InstanceService{db: db, instances: instances, lookup: lookup}
}

type RegisterInstanceInput struct {
	ItemID     int64
	Serial     string
	AcquiredAt time.Time
	ExpiresAt  *time.Time
	Notes      string
}

// Register records a durable unit on intake: unique serial, in-stock state,
// no holder.
func (s *InstanceService) Register(ctx context.Context, in RegisterInstanceInput) (*domain.Instance, error) {
	item, err := s.lookup.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", in.ItemID, err)
	}
	if item.UsageKind != domain.UsageDurable {
		return nil, fmt.Errorf("%w: item %q is consumable, not serialized", domain.ErrWrongItem, item.Name)
	}

	existing, err := s.instances.FindInstanceBySerial(ctx, in.Serial)
	if err != nil {
		return nil, fmt.Errorf("check serial: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: serial %q", domain.ErrDuplicateKey, in.Serial)
	}

	inStock, err := s.lookup.GetStateByName(ctx, domain.StateInStock)
	if err != nil {
		return nil, fmt.Errorf("state %q: %w", domain.StateInStock, err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acquired := in.AcquiredAt
	if acquired.IsZero() {
		acquired = time.Now()
	}
	inst := &domain.Instance{
		ItemID:     in.ItemID,
		Serial:     in.Serial,
		StateID:    inStock.ID,
		AcquiredAt: acquired,
		ExpiresAt:  in.ExpiresAt,
		Notes:      in.Notes,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	id, err := s.instances.InsertInstance(ctx, tx, inst)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	inst.ID = id
	return inst, nil
}

func (s *InstanceService) GetByID(ctx context.Context, id int64) (*domain.Instance, error) {
	return s.instances.GetInstance(ctx, id)
}

func (s *InstanceService) ListByWorker(ctx context.Context, workerID int64) ([]domain.Instance, error) {
	if _, err := s.lookup.GetWorker(ctx, workerID); err != nil {
		return nil, fmt.Errorf("worker %d: %w", workerID, err)
	}
	return s.instances.ListInstancesByWorker(ctx, workerID)
}

func (s *InstanceService) ListByArea(ctx context.Context, areaID int64) ([]domain.Instance, error) {
	if _, err := s.lookup.GetArea(ctx, areaID); err != nil {
		return nil, fmt.Errorf("area %d: %w", areaID, err)
	}
	return s.instances.ListInstancesByArea(ctx, areaID)
}
