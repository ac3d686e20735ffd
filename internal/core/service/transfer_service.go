package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

// Defaults applied to area records created by a transfer, carried from the
// provisioning policy of the stockroom.
const (
	transferDefaultMin      = 5
	transferCreatedLocation = "Transferred from central warehouse"
)

// TransferService atomically moves quantity from a central lot to an area
// ledger record of the same state.
type TransferService struct {
	db      port.TxBeginner
	central port.CentralStockRepository
	area    port.AreaStockRepository
	lookup  port.LookupRepository
}

func NewTransferService(db port.TxBeginner, central port.CentralStockRepository, area port.AreaStockRepository, lookup port.LookupRepository) *TransferService {
	return &TransferService{db: db, central: central, area: area, lookup: lookup}
}

// Transfer moves qty units of item into areaID. The source lot must be a
// single central record in a usable state covering the whole quantity;
// partial fulfillment across lots is not attempted. Among eligible lots the
// one with the greatest available quantity wins, ties broken by lowest id.
func (s *TransferService) Transfer(ctx context.Context, itemID, areaID int64, qty int) (*domain.AreaStock, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: transfer quantity %d", domain.ErrInvalidQuantity, qty)
	}

	item, err := s.lookup.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}
	if _, err := s.lookup.GetArea(ctx, areaID); err != nil {
		return nil, fmt.Errorf("area %d: %w", areaID, err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	src, err := s.central.FindCentralUsableForUpdate(ctx, tx, itemID, qty)
	if err != nil {
		return nil, fmt.Errorf("find source lot: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no central lot of %q covers %d units", domain.ErrInsufficientStock, item.Name, qty)
	}

	src.Quantity -= qty
	src.UpdatedAt = time.Now()
	if err := s.central.UpdateCentral(ctx, tx, src); err != nil {
		return nil, fmt.Errorf("decrement central stock: %w", err)
	}

	dst, err := s.area.FindAreaByKeyForUpdate(ctx, tx, itemID, areaID, src.StateID)
	if err != nil {
		return nil, fmt.Errorf("find area record: %w", err)
	}
	if dst == nil {
		maxQty := qty * 2
		dst = &domain.AreaStock{
			ItemID:      itemID,
			AreaID:      areaID,
			StateID:     src.StateID,
			Quantity:    qty,
			MinQuantity: transferDefaultMin,
			MaxQuantity: &maxQty,
			Location:    transferCreatedLocation,
			UpdatedAt:   time.Now(),
		}
		id, err := s.area.InsertArea(ctx, tx, dst)
		if err != nil {
			return nil, fmt.Errorf("create area record: %w", err)
		}
		dst.ID = id
	} else {
		dst.Quantity += qty
		dst.UpdatedAt = time.Now()
		if err := s.area.UpdateArea(ctx, tx, dst); err != nil {
			return nil, fmt.Errorf("increment area stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	log.Printf("transfer: moved %d x item %d from lot %q to area %d (central left %d)", qty, itemID, src.Lot, areaID, src.Quantity)
	return dst, nil
}
