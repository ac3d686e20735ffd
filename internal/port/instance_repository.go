package port

import (
	"context"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

// InstanceRepository persists serialized durable units.
type InstanceRepository interface {
	GetInstance(ctx context.Context, id int64) (*domain.Instance, error)
	GetInstanceForUpdate(ctx context.Context, tx Tx, id int64) (*domain.Instance, error)
	FindInstanceBySerial(ctx context.Context, serial string) (*domain.Instance, error)

	InsertInstance(ctx context.Context, tx Tx, inst *domain.Instance) (int64, error)
	UpdateInstance(ctx context.Context, tx Tx, inst *domain.Instance) error

	ListInstancesByWorker(ctx context.Context, workerID int64) ([]domain.Instance, error)
	ListInstancesByArea(ctx context.Context, areaID int64) ([]domain.Instance, error)
}
