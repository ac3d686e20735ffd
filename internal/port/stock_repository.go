package port

import (
	"context"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

// CentralStockRepository persists the central warehouse ledger. Methods with
// a ForUpdate suffix lock the returned row for the duration of the Tx; key
// lookups returning no row yield (nil, nil).
type CentralStockRepository interface {
	GetCentral(ctx context.Context, id int64) (*domain.CentralStock, error)
	GetCentralForUpdate(ctx context.Context, tx Tx, id int64) (*domain.CentralStock, error)

	// FindCentralByKeyForUpdate resolves the (item, lot, state) unique key.
	FindCentralByKeyForUpdate(ctx context.Context, tx Tx, itemID int64, lot string, stateID int64) (*domain.CentralStock, error)

	// FindCentralUsableForUpdate picks the record for item whose state allows
	// use and whose quantity covers need, preferring the greatest quantity and
	// breaking ties on lowest id.
	FindCentralUsableForUpdate(ctx context.Context, tx Tx, itemID int64, need int) (*domain.CentralStock, error)

	InsertCentral(ctx context.Context, tx Tx, rec *domain.CentralStock) (int64, error)
	UpdateCentral(ctx context.Context, tx Tx, rec *domain.CentralStock) error
	DeleteCentral(ctx context.Context, tx Tx, id int64) error

	ListCentralByItem(ctx context.Context, itemID int64) ([]domain.CentralStock, error)
	ListCentralLowStock(ctx context.Context) ([]domain.CentralStock, error)
	ListCentralNearExpiry(ctx context.Context, before time.Time) ([]domain.CentralStock, error)
}

// AreaStockRepository persists the per-area ledgers; same contract as the
// central ledger over the (item, area, state) key.
type AreaStockRepository interface {
	GetAreaStock(ctx context.Context, id int64) (*domain.AreaStock, error)
	GetAreaStockForUpdate(ctx context.Context, tx Tx, id int64) (*domain.AreaStock, error)

	FindAreaByKeyForUpdate(ctx context.Context, tx Tx, itemID, areaID, stateID int64) (*domain.AreaStock, error)

	// FindAreaUsable resolves the record a consumable delivery line draws
	// from: usable state, greatest quantity first, then lowest id. It does not
	// lock; the orchestrator re-reads chosen rows with GetAreaStockForUpdate in
	// stable id order.
	FindAreaUsable(ctx context.Context, tx Tx, itemID, areaID int64) (*domain.AreaStock, error)

	InsertArea(ctx context.Context, tx Tx, rec *domain.AreaStock) (int64, error)
	UpdateArea(ctx context.Context, tx Tx, rec *domain.AreaStock) error
	DeleteArea(ctx context.Context, tx Tx, id int64) error

	ListAreaByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error)
	ListAreaLowStockByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error)
	ListAreaLowStock(ctx context.Context) ([]domain.AreaStock, error)
}
