package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

// AreaStockService owns the per-area ledgers. Same contract as the central
// ledger over the (item, area, state) key.
type AreaStockService struct {
	db     port.TxBeginner
	stock  port.AreaStockRepository
	lookup port.LookupRepository
}

func NewAreaStockService(db port.TxBeginner, stock port.AreaStockRepository, lookup port.LookupRepository) *AreaStockService {
	return &AreaStockService{db: db, stock: stock, lookup: lookup}
}

type CreateAreaStockInput struct {
	ItemID      int64
	AreaID      int64
	StateID     int64
	Quantity    int
	MinQuantity int
	MaxQuantity *int
	Location    string
}

func (s *AreaStockService) Create(ctx context.Context, in CreateAreaStockInput) (*domain.AreaStock, error) {
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity %d", domain.ErrInvalidQuantity, in.Quantity)
	}

	item, err := s.lookup.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", in.ItemID, err)
	}
	area, err := s.lookup.GetArea(ctx, in.AreaID)
	if err != nil {
		return nil, fmt.Errorf("area %d: %w", in.AreaID, err)
	}
	state, err := s.lookup.GetState(ctx, in.StateID)
	if err != nil {
		return nil, fmt.Errorf("state %d: %w", in.StateID, err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.stock.FindAreaByKeyForUpdate(ctx, tx, in.ItemID, in.AreaID, in.StateID)
	if err != nil {
		return nil, fmt.Errorf("check key: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item %q, area %q, state %q", domain.ErrDuplicateKey, item.Name, area.Name, state.Name)
	}

	rec := &domain.AreaStock{
		ItemID:      in.ItemID,
		AreaID:      in.AreaID,
		StateID:     in.StateID,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
		MaxQuantity: in.MaxQuantity,
		Location:    in.Location,
		UpdatedAt:   time.Now(),
	}
	id, err := s.stock.InsertArea(ctx, tx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert area stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	rec.ID = id
	return rec, nil
}

type UpdateAreaStockInput struct {
	StateID     *int64
	MinQuantity *int
	MaxQuantity *int
	Location    *string
}

// Update applies field edits to an area record, merging into an existing
// record when a state change collides with the (item, area, state) key of
// another live record. Quantity is conserved across the merge.
func (s *AreaStockService) Update(ctx context.Context, id int64, in UpdateAreaStockInput) (*domain.AreaStock, error) {
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

	rec, err := s.stock.GetAreaStockForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("area stock %d: %w", id, err)
	}

	newStateID := rec.StateID
	if in.StateID != nil {
		newStateID = *in.StateID
	}

	if newStateID != rec.StateID {
		dest, err := s.stock.FindAreaByKeyForUpdate(ctx, tx, rec.ItemID, rec.AreaID, newStateID)
		if err != nil {
			return nil, fmt.Errorf("check new key: %w", err)
		}
		if dest != nil && dest.ID != rec.ID {
			log.Printf("area stock: merging record %d into %d (moving %d units)", rec.ID, dest.ID, rec.Quantity)

			dest.Quantity += rec.Quantity
			applyAreaUpdates(dest, in)
			dest.UpdatedAt = time.Now()
			if err := s.stock.UpdateArea(ctx, tx, dest); err != nil {
				return nil, fmt.Errorf("update merge destination: %w", err)
			}
			if err := s.stock.DeleteArea(ctx, tx, rec.ID); err != nil {
				return nil, fmt.Errorf("delete merge source: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit: %w", err)
			}
			return dest, nil
		}
	}

	rec.StateID = newStateID
	applyAreaUpdates(rec, in)
	rec.UpdatedAt = time.Now()
	if err := s.stock.UpdateArea(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("update area stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func applyAreaUpdates(rec *domain.AreaStock, in UpdateAreaStockInput) {
	if in.MinQuantity != nil {
		rec.MinQuantity = *in.MinQuantity
	}
	if in.MaxQuantity != nil {
		rec.MaxQuantity = in.MaxQuantity
	}
	if in.Location != nil {
		rec.Location = *in.Location
	}
}

func (s *AreaStockService) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.stock.GetAreaStockForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("area stock %d: %w", id, err)
	}
	if rec.Quantity > 0 {
		return fmt.Errorf("%w: %d units remain", domain.ErrNonEmptyStock, rec.Quantity)
	}
	if err := s.stock.DeleteArea(ctx, tx, id); err != nil {
		return fmt.Errorf("delete area stock: %w", err)
	}
	return tx.Commit()
}

func (s *AreaStockService) GetByID(ctx context.Context, id int64) (*domain.AreaStock, error) {
	return s.stock.GetAreaStock(ctx, id)
}

func (s *AreaStockService) ListByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	if _, err := s.lookup.GetArea(ctx, areaID); err != nil {
		return nil, fmt.Errorf("area %d: %w", areaID, err)
	}
	return s.stock.ListAreaByArea(ctx, areaID)
}

func (s *AreaStockService) ListLowStockByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	if _, err := s.lookup.GetArea(ctx, areaID); err != nil {
		return nil, fmt.Errorf("area %d: %w", areaID, err)
	}
	return s.stock.ListAreaLowStockByArea(ctx, areaID)
}

func (s *AreaStockService) ListLowStock(ctx context.Context) ([]domain.AreaStock, error) {
	return s.stock.ListAreaLowStock(ctx)
}
