package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

// DeliveryService executes the delivery transaction: precondition checks,
// per-line stock mutations (area ledger for consumables, instance rows for
// durables) and the persisted delivery record, all in one atomic unit. If any
// line fails nothing is committed.
type DeliveryService struct {
	db         port.TxBeginner
	area       port.AreaStockRepository
	instances  port.InstanceRepository
	deliveries port.DeliveryRepository
	lookup     port.LookupRepository
	cache      port.CacheRepository
}

func NewDeliveryService(
	db port.TxBeginner,
	area port.AreaStockRepository,
	instances port.InstanceRepository,
	deliveries port.DeliveryRepository,
	lookup port.LookupRepository,
	cache port.CacheRepository,
) *DeliveryService {
	return &DeliveryService{
		db:         db,
		area:       area,
		instances:  instances,
		deliveries: deliveries,
		lookup:     lookup,
		cache:      cache,
	}
}

// DeliveryLineInput is one requested line. Consumable items need Quantity,
// durable items need InstanceID; the item's usage kind selects the path.
type DeliveryLineInput struct {
	ItemID     int64
	Quantity   int
	InstanceID *int64
	Reason     string
}

type RegisterDeliveryInput struct {
	RequestID        string // optional idempotency token
	WorkerID         int64
	SupervisorUserID int64
	Kind             domain.DeliveryKind
	Notes            string
	Signature        string
	Lines            []DeliveryLineInput
}

// resolvedLine pairs a request line with its catalog entry and, for
// consumables, the area ledger record it draws from.
type resolvedLine struct {
	in           DeliveryLineInput
	item         *domain.Item
	areaRecordID int64
}

func (s *DeliveryService) RegisterDelivery(ctx context.Context, in RegisterDeliveryInput) (_ *domain.Delivery, err error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: delivery needs at least one line", domain.ErrInvalidQuantity)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("invalid delivery kind %q", in.Kind)
	}

	if in.RequestID != "" {
		key := "delivery:" + in.RequestID
		ok, cerr := s.cache.SetIdempotency(ctx, key)
		if cerr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", cerr)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
		// Release the token on failure so a corrected retry is accepted.
		defer func() {
			if err != nil {
				if rerr := s.cache.ReleaseIdempotency(ctx, key); rerr != nil {
					log.Printf("delivery: failed to release idempotency key %s: %v", key, rerr)
				}
			}
		}()
	}

	worker, err := s.lookup.GetWorker(ctx, in.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", in.WorkerID, err)
	}
	if worker.Status != domain.WorkerActive {
		return nil, fmt.Errorf("%w: status %s", domain.ErrWorkerNotActive, worker.Status)
	}

	supervisor, err := s.lookup.GetWorkerByUser(ctx, in.SupervisorUserID)
	if err != nil {
		return nil, fmt.Errorf("supervisor user %d: %w", in.SupervisorUserID, err)
	}
	if supervisor.AreaID != worker.AreaID {
		return nil, fmt.Errorf("%w: supervisor area %d, worker area %d", domain.ErrAreaMismatch, supervisor.AreaID, worker.AreaID)
	}

	inStock, err := s.lookup.GetStateByName(ctx, domain.StateInStock)
	if err != nil {
		return nil, fmt.Errorf("state %q: %w", domain.StateInStock, err)
	}
	delivered, err := s.lookup.GetStateByName(ctx, domain.StateDelivered)
	if err != nil {
		return nil, fmt.Errorf("state %q: %w", domain.StateDelivered, err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	resolved, err := s.resolveLines(ctx, tx, worker, in.Lines)
	if err != nil {
		return nil, err
	}

	areaRecs, instRecs, err := s.lockRows(ctx, tx, resolved)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.DeliveryLine, 0, len(resolved))
	for _, rl := range resolved {
		var line domain.DeliveryLine
		switch rl.item.UsageKind {
		case domain.UsageConsumable:
			line, err = s.applyConsumable(rl, areaRecs[rl.areaRecordID])
		case domain.UsageDurable:
			line, err = s.applyDurable(ctx, tx, rl, instRecs[*rl.in.InstanceID], worker, inStock, delivered)
		default:
			err = fmt.Errorf("item %d has unknown usage kind %q", rl.item.ID, rl.item.UsageKind)
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	// Decrements may have accumulated across lines; persist each touched
	// ledger record once.
	for _, rec := range areaRecs {
		rec.UpdatedAt = time.Now()
		if err := s.area.UpdateArea(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("update area stock %d: %w", rec.ID, err)
		}
	}

	d := &domain.Delivery{
		Code:         uuid.New().String(),
		WorkerID:     worker.ID,
		SupervisorID: supervisor.ID,
		DeliveredAt:  time.Now(),
		Kind:         in.Kind,
		Notes:        in.Notes,
		Signature:    in.Signature,
		Status:       domain.DeliveryStatusCompleted,
	}
	id, err := s.deliveries.InsertDelivery(ctx, tx, d)
	if err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}
	if err := s.deliveries.InsertDeliveryLines(ctx, tx, id, lines); err != nil {
		return nil, fmt.Errorf("insert delivery lines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	d.ID = id
	for i := range lines {
		lines[i].DeliveryID = id
	}
	d.Lines = lines

	log.Printf("delivery %s: %d line(s) issued to worker %d by supervisor %d", d.Code, len(lines), worker.ID, supervisor.ID)
	return d, nil
}

// resolveLines validates line shape against each item's usage kind and finds
// the area ledger record every consumable line draws from. No locks yet.
func (s *DeliveryService) resolveLines(ctx context.Context, tx port.Tx, worker *domain.Worker, lines []DeliveryLineInput) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, 0, len(lines))
	for _, ln := range lines {
		item, err := s.lookup.GetItem(ctx, ln.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", ln.ItemID, err)
		}

		rl := resolvedLine{in: ln, item: item}
		switch item.UsageKind {
		case domain.UsageConsumable:
			if ln.Quantity < 1 {
				return nil, fmt.Errorf("%w: item %q needs a quantity of at least 1", domain.ErrInvalidQuantity, item.Name)
			}
			rec, err := s.area.FindAreaUsable(ctx, tx, ln.ItemID, worker.AreaID)
			if err != nil {
				return nil, fmt.Errorf("find area stock: %w", err)
			}
			if rec == nil {
				return nil, fmt.Errorf("%w: item %q, area %d", domain.ErrNoInventoryForArea, item.Name, worker.AreaID)
			}
			rl.areaRecordID = rec.ID
		case domain.UsageDurable:
			if ln.InstanceID == nil {
				return nil, fmt.Errorf("%w: item %q", domain.ErrInstanceRequired, item.Name)
			}
		default:
			return nil, fmt.Errorf("item %d has unknown usage kind %q", item.ID, item.UsageKind)
		}
		resolved = append(resolved, rl)
	}
	return resolved, nil
}

// lockRows locks every touched area record and instance row, each set in
// ascending id order so two overlapping deliveries cannot deadlock on each
// other.
func (s *DeliveryService) lockRows(ctx context.Context, tx port.Tx, resolved []resolvedLine) (map[int64]*domain.AreaStock, map[int64]*domain.Instance, error) {
	areaIDs := make(map[int64]bool)
	instIDs := make(map[int64]bool)
	for _, rl := range resolved {
		switch rl.item.UsageKind {
		case domain.UsageConsumable:
			areaIDs[rl.areaRecordID] = true
		case domain.UsageDurable:
			instIDs[*rl.in.InstanceID] = true
		}
	}

	areaRecs := make(map[int64]*domain.AreaStock, len(areaIDs))
	for _, id := range sortedIDs(areaIDs) {
		rec, err := s.area.GetAreaStockForUpdate(ctx, tx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("lock area stock %d: %w", id, err)
		}
		areaRecs[id] = rec
	}

	instRecs := make(map[int64]*domain.Instance, len(instIDs))
	for _, id := range sortedIDs(instIDs) {
		inst, err := s.instances.GetInstanceForUpdate(ctx, tx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("instance %d: %w", id, err)
		}
		instRecs[id] = inst
	}
	return areaRecs, instRecs, nil
}

func (s *DeliveryService) applyConsumable(rl resolvedLine, rec *domain.AreaStock) (domain.DeliveryLine, error) {
	if rec.Quantity < rl.in.Quantity {
		return domain.DeliveryLine{}, fmt.Errorf("%w: available %d, requested %d of %q",
			domain.ErrInsufficientStock, rec.Quantity, rl.in.Quantity, rl.item.Name)
	}
	rec.Quantity -= rl.in.Quantity
	return domain.DeliveryLine{
		ItemID:   rl.item.ID,
		Quantity: rl.in.Quantity,
		Reason:   rl.in.Reason,
	}, nil
}

// applyDurable performs the in-stock -> delivered transition on a locked
// instance row: the unit must belong to the requested item and be available.
func (s *DeliveryService) applyDurable(ctx context.Context, tx port.Tx, rl resolvedLine, inst *domain.Instance, worker *domain.Worker, inStock, delivered *domain.StockState) (domain.DeliveryLine, error) {
	if inst.ItemID != rl.item.ID {
		return domain.DeliveryLine{}, fmt.Errorf("%w: instance %d belongs to item %d, not %d",
			domain.ErrWrongItem, inst.ID, inst.ItemID, rl.item.ID)
	}
	if inst.StateID != inStock.ID {
		return domain.DeliveryLine{}, fmt.Errorf("%w: instance %d (serial %q)",
			domain.ErrNotAvailable, inst.ID, inst.Serial)
	}

	inst.StateID = delivered.ID
	inst.WorkerID = &worker.ID
	inst.AreaID = &worker.AreaID
	inst.UpdatedAt = time.Now()
	if err := s.instances.UpdateInstance(ctx, tx, inst); err != nil {
		return domain.DeliveryLine{}, fmt.Errorf("update instance %d: %w", inst.ID, err)
	}

	return domain.DeliveryLine{
		ItemID:     rl.item.ID,
		Quantity:   1,
		InstanceID: &inst.ID,
		Reason:     rl.in.Reason,
	}, nil
}

func (s *DeliveryService) GetDetail(ctx context.Context, id int64) (*domain.Delivery, error) {
	return s.deliveries.GetDelivery(ctx, id)
}

func (s *DeliveryService) ListByWorker(ctx context.Context, workerID int64) ([]domain.Delivery, error) {
	if _, err := s.lookup.GetWorker(ctx, workerID); err != nil {
		return nil, fmt.Errorf("worker %d: %w", workerID, err)
	}
	return s.deliveries.ListDeliveriesByWorker(ctx, workerID)
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
