package port

import (
	"context"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

// DeliveryRepository persists delivery headers and lines. Headers and lines
// are only ever written together inside the orchestrator's Tx.
type DeliveryRepository interface {
	InsertDelivery(ctx context.Context, tx Tx, d *domain.Delivery) (int64, error)
	InsertDeliveryLines(ctx context.Context, tx Tx, deliveryID int64, lines []domain.DeliveryLine) error

	// GetDelivery returns the header with its lines populated.
	GetDelivery(ctx context.Context, id int64) (*domain.Delivery, error)
	ListDeliveriesByWorker(ctx context.Context, workerID int64) ([]domain.Delivery, error)
}
