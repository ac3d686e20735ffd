package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

const defaultExpiryHorizonDays = 30

// CentralStockService owns the central warehouse ledger: lot intake, quantity
// adjustments, key-attribute edits with merge, and replenishment queries.
type CentralStockService struct {
	db     port.TxBeginner
	stock  port.CentralStockRepository
	lookup port.LookupRepository
}

func NewCentralStockService(db port.TxBeginner, stock port.CentralStockRepository, lookup port.LookupRepository) *CentralStockService {
	return &CentralStockService{db: db, stock: stock, lookup: lookup}
}

type CreateCentralStockInput struct {
	ItemID        int64
	Lot           string
	StateID       int64
	Quantity      int
	MinQuantity   int
	MaxQuantity   *int
	Location      string
	AcquiredAt    *time.Time
	UnitCostCents int64
	Supplier      string
	ExpiresAt     *time.Time
	Notes         string
}

func (s *CentralStockService) Create(ctx context.Context, in CreateCentralStockInput) (*domain.CentralStock, error) {
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity %d", domain.ErrInvalidQuantity, in.Quantity)
	}

	item, err := s.lookup.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", in.ItemID, err)
	}
	state, err := s.lookup.GetState(ctx, in.StateID)
	if err != nil {
		return nil, fmt.Errorf("state %d: %w", in.StateID, err)
	}
	if !state.AllowsUse {
		log.Printf("central stock: registering lot %q of item %q with non-usable state %q", in.Lot, item.Name, state.Name)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.stock.FindCentralByKeyForUpdate(ctx, tx, in.ItemID, in.Lot, in.StateID)
	if err != nil {
		return nil, fmt.Errorf("check key: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item %q, lot %q, state %q", domain.ErrDuplicateKey, item.Name, in.Lot, state.Name)
	}

	rec := &domain.CentralStock{
		ItemID:        in.ItemID,
		Lot:           in.Lot,
		StateID:       in.StateID,
		Quantity:      in.Quantity,
		MinQuantity:   in.MinQuantity,
		MaxQuantity:   in.MaxQuantity,
		Location:      in.Location,
		AcquiredAt:    in.AcquiredAt,
		UnitCostCents: in.UnitCostCents,
		Supplier:      in.Supplier,
		ExpiresAt:     in.ExpiresAt,
		Notes:         in.Notes,
		UpdatedAt:     time.Now(),
	}
	id, err := s.stock.InsertCentral(ctx, tx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert central stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	rec.ID = id
	return rec, nil
}

type UpdateCentralStockInput struct {
	Lot           *string
	StateID       *int64
	MinQuantity   *int
	MaxQuantity   *int
	Location      *string
	UnitCostCents *int64
	Supplier      *string
	ExpiresAt     *time.Time
	Notes         *string
}

// Update applies field edits to a lot. When the edit changes the (item, lot,
// state) key and another live record already holds the new key, the two are
// merged: quantity moves onto the destination, non-key updates land on the
// destination, and the source record is deleted. Total quantity is conserved.
func (s *CentralStockService) Update(ctx context.Context, id int64, in UpdateCentralStockInput) (*domain.CentralStock, error) {
	if in.StateID != nil {
		if _, err := s.lookup.GetState(ctx, *in.StateID); err != nil {
			return nil, fmt.Errorf("state %d: %w", *in.StateID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.stock.GetCentralForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("central stock %d: %w", id, err)
	}

	newLot := rec.Lot
	if in.Lot != nil {
		newLot = *in.Lot
	}
	newStateID := rec.StateID
	if in.StateID != nil {
		newStateID = *in.StateID
	}

	if newLot != rec.Lot || newStateID != rec.StateID {
		dest, err := s.stock.FindCentralByKeyForUpdate(ctx, tx, rec.ItemID, newLot, newStateID)
		if err != nil {
			return nil, fmt.Errorf("check new key: %w", err)
		}
		if dest != nil && dest.ID != rec.ID {
			log.Printf("central stock: merging record %d into %d (moving %d units)", rec.ID, dest.ID, rec.Quantity)

			dest.Quantity += rec.Quantity
			applyCentralUpdates(dest, in)
			dest.UpdatedAt = time.Now()
			if err := s.stock.UpdateCentral(ctx, tx, dest); err != nil {
				return nil, fmt.Errorf("update merge destination: %w", err)
			}
			if err := s.stock.DeleteCentral(ctx, tx, rec.ID); err != nil {
				return nil, fmt.Errorf("delete merge source: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit: %w", err)
			}
			return dest, nil
		}
	}

	rec.Lot = newLot
	rec.StateID = newStateID
	applyCentralUpdates(rec, in)
	rec.UpdatedAt = time.Now()
	if err := s.stock.UpdateCentral(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("update central stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// applyCentralUpdates copies the non-key field edits onto rec.
func applyCentralUpdates(rec *domain.CentralStock, in UpdateCentralStockInput) {
	if in.MinQuantity != nil {
		rec.MinQuantity = *in.MinQuantity
	}
	if in.MaxQuantity != nil {
		rec.MaxQuantity = in.MaxQuantity
	}
	if in.Location != nil {
		rec.Location = *in.Location
	}
	if in.UnitCostCents != nil {
		rec.UnitCostCents = *in.UnitCostCents
	}
	if in.Supplier != nil {
		rec.Supplier = *in.Supplier
	}
	if in.ExpiresAt != nil {
		rec.ExpiresAt = in.ExpiresAt
	}
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}
}

// Adjust adds delta (possibly negative) to a record's quantity. The reason is
// folded into the record notes as an addition/removal tag.
func (s *CentralStockService) Adjust(ctx context.Context, id int64, delta int, reason string) (*domain.CentralStock, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.stock.GetCentralForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("central stock %d: %w", id, err)
	}

	newQty := rec.Quantity + delta
	if newQty < 0 {
		return nil, fmt.Errorf("%w: current %d, delta %d", domain.ErrNegativeStock, rec.Quantity, delta)
	}

	rec.Quantity = newQty
	tag := "REMOVAL"
	if delta > 0 {
		tag = "ADDITION"
	}
	rec.Notes = fmt.Sprintf("%s - %s", tag, reason)
	rec.UpdatedAt = time.Now()

	if err := s.stock.UpdateCentral(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("update central stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *CentralStockService) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.stock.GetCentralForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("central stock %d: %w", id, err)
	}
	if rec.Quantity > 0 {
		return fmt.Errorf("%w: %d units remain", domain.ErrNonEmptyStock, rec.Quantity)
	}
	if err := s.stock.DeleteCentral(ctx, tx, id); err != nil {
		return fmt.Errorf("delete central stock: %w", err)
	}
	return tx.Commit()
}

func (s *CentralStockService) GetByID(ctx context.Context, id int64) (*domain.CentralStock, error) {
	return s.stock.GetCentral(ctx, id)
}

func (s *CentralStockService) ListByItem(ctx context.Context, itemID int64) ([]domain.CentralStock, error) {
	return s.stock.ListCentralByItem(ctx, itemID)
}

func (s *CentralStockService) ListLowStock(ctx context.Context) ([]domain.CentralStock, error) {
	return s.stock.ListCentralLowStock(ctx)
}

// ListNearExpiry returns records expiring within horizonDays (default 30).
func (s *CentralStockService) ListNearExpiry(ctx context.Context, horizonDays int) ([]domain.CentralStock, error) {
	if horizonDays <= 0 {
		horizonDays = defaultExpiryHorizonDays
	}
	before := time.Now().AddDate(0, 0, horizonDays)
	return s.stock.ListCentralNearExpiry(ctx, before)
}
