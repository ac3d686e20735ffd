package port

import (
	"context"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

// LookupRepository reads the reference data owned by external collaborators
// (catalog, areas, workers, users, stock states). The core never writes any
// of it.
type LookupRepository interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	GetState(ctx context.Context, id int64) (*domain.StockState, error)
	GetStateByName(ctx context.Context, name string) (*domain.StockState, error)
	GetArea(ctx context.Context, id int64) (*domain.Area, error)
	GetWorker(ctx context.Context, id int64) (*domain.Worker, error)

	// GetWorkerByUser resolves a user account to its worker profile; returns
	// domain.ErrSupervisorNoProfile when the user exists without one.
	GetWorkerByUser(ctx context.Context, userID int64) (*domain.Worker, error)
}
