package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/port"
)

// fakeStore is an in-memory implementation of every repository port. BeginTx
// takes the store mutex and a snapshot of the mutable tables; Rollback
// restores the snapshot, so service-level atomicity is observable in tests.
//
// Reference-data lookups never lock: they are read inside open transactions
// and the tables are immutable once a test is set up.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	central    map[int64]*domain.CentralStock
	area       map[int64]*domain.AreaStock
	instances  map[int64]*domain.Instance
	deliveries map[int64]*domain.Delivery
	lines      map[int64][]domain.DeliveryLine

	items   map[int64]*domain.Item
	states  map[int64]*domain.StockState
	areas   map[int64]*domain.Area
	workers map[int64]*domain.Worker
	users   map[int64]*int64 // user id -> worker id, nil = no profile

	idem map[string]bool
}

// Stock state ids seeded into every fake store.
const (
	stateNewID       int64 = 1
	stateInStockID   int64 = 2
	stateDeliveredID int64 = 3
	stateDamagedID   int64 = 4
	stateRetiredID   int64 = 5
)

func newFakeStore() *fakeStore {
	s := &fakeStore{
		nextID:     100,
		central:    make(map[int64]*domain.CentralStock),
		area:       make(map[int64]*domain.AreaStock),
		instances:  make(map[int64]*domain.Instance),
		deliveries: make(map[int64]*domain.Delivery),
		lines:      make(map[int64][]domain.DeliveryLine),
		items:      make(map[int64]*domain.Item),
		states:     make(map[int64]*domain.StockState),
		areas:      make(map[int64]*domain.Area),
		workers:    make(map[int64]*domain.Worker),
		users:      make(map[int64]*int64),
		idem:       make(map[string]bool),
	}
	s.states[stateNewID] = &domain.StockState{ID: stateNewID, Name: domain.StateNew, AllowsUse: true}
	s.states[stateInStockID] = &domain.StockState{ID: stateInStockID, Name: domain.StateInStock, AllowsUse: true}
	s.states[stateDeliveredID] = &domain.StockState{ID: stateDeliveredID, Name: domain.StateDelivered, AllowsUse: false}
	s.states[stateDamagedID] = &domain.StockState{ID: stateDamagedID, Name: domain.StateDamaged, AllowsUse: false}
	s.states[stateRetiredID] = &domain.StockState{ID: stateRetiredID, Name: domain.StateRetired, AllowsUse: false}
	return s
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

// --- seeding helpers ---

func (s *fakeStore) addItem(name string, kind domain.UsageKind) int64 {
	id := s.id()
	s.items[id] = &domain.Item{ID: id, Code: name, Name: name, UsageKind: kind, Active: true, CreatedAt: time.Now()}
	return id
}

func (s *fakeStore) addArea(name string) int64 {
	id := s.id()
	s.areas[id] = &domain.Area{ID: id, Name: name, Active: true}
	return id
}

func (s *fakeStore) addWorker(areaID int64, status domain.WorkerStatus) int64 {
	id := s.id()
	s.workers[id] = &domain.Worker{ID: id, NationalID: "n", FirstName: "f", LastName: "l", AreaID: areaID, Status: status}
	return id
}

// addUser links a user account to a worker; pass 0 for an account with no
// worker profile.
func (s *fakeStore) addUser(workerID int64) int64 {
	id := s.id()
	if workerID == 0 {
		s.users[id] = nil
	} else {
		s.users[id] = &workerID
	}
	return id
}

func (s *fakeStore) addCentral(rec domain.CentralStock) int64 {
	rec.ID = s.id()
	s.central[rec.ID] = &rec
	return rec.ID
}

func (s *fakeStore) addAreaStock(rec domain.AreaStock) int64 {
	rec.ID = s.id()
	s.area[rec.ID] = &rec
	return rec.ID
}

func (s *fakeStore) addInstance(inst domain.Instance) int64 {
	inst.ID = s.id()
	s.instances[inst.ID] = &inst
	return inst.ID
}

// --- transactions ---

type fakeSnapshot struct {
	central    map[int64]*domain.CentralStock
	area       map[int64]*domain.AreaStock
	instances  map[int64]*domain.Instance
	deliveries map[int64]*domain.Delivery
	lines      map[int64][]domain.DeliveryLine
	nextID     int64
}

type fakeTx struct {
	s    *fakeStore
	snap fakeSnapshot
	done bool
}

func (s *fakeStore) BeginTx(ctx context.Context) (port.Tx, error) {
	s.mu.Lock()
	snap := fakeSnapshot{
		central:    make(map[int64]*domain.CentralStock, len(s.central)),
		area:       make(map[int64]*domain.AreaStock, len(s.area)),
		instances:  make(map[int64]*domain.Instance, len(s.instances)),
		deliveries: make(map[int64]*domain.Delivery, len(s.deliveries)),
		lines:      make(map[int64][]domain.DeliveryLine, len(s.lines)),
		nextID:     s.nextID,
	}
	for id, r := range s.central {
		cp := *r
		snap.central[id] = &cp
	}
	for id, r := range s.area {
		cp := *r
		snap.area[id] = &cp
	}
	for id, r := range s.instances {
		cp := *r
		snap.instances[id] = &cp
	}
	for id, r := range s.deliveries {
		cp := *r
		snap.deliveries[id] = &cp
	}
	for id, ls := range s.lines {
		snap.lines[id] = append([]domain.DeliveryLine(nil), ls...)
	}
	return &fakeTx{s: s, snap: snap}, nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return errors.New("tx already finished")
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.central = t.snap.central
	t.s.area = t.snap.area
	t.s.instances = t.snap.instances
	t.s.deliveries = t.snap.deliveries
	t.s.lines = t.snap.lines
	t.s.nextID = t.snap.nextID
	t.s.mu.Unlock()
	return nil
}

// --- central stock ---

func (s *fakeStore) GetCentral(ctx context.Context, id int64) (*domain.CentralStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCentral(id)
}

func (s *fakeStore) getCentral(id int64) (*domain.CentralStock, error) {
	r, ok := s.central[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) GetCentralForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.CentralStock, error) {
	return s.getCentral(id)
}

func (s *fakeStore) FindCentralByKeyForUpdate(ctx context.Context, tx port.Tx, itemID int64, lot string, stateID int64) (*domain.CentralStock, error) {
	for _, r := range s.central {
		if r.ItemID == itemID && r.Lot == lot && r.StateID == stateID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindCentralUsableForUpdate(ctx context.Context, tx port.Tx, itemID int64, need int) (*domain.CentralStock, error) {
	var best *domain.CentralStock
	for _, r := range s.central {
		if r.ItemID != itemID || r.Quantity < need {
			continue
		}
		if st, ok := s.states[r.StateID]; !ok || !st.AllowsUse {
			continue
		}
		if best == nil || r.Quantity > best.Quantity || (r.Quantity == best.Quantity && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *fakeStore) InsertCentral(ctx context.Context, tx port.Tx, rec *domain.CentralStock) (int64, error) {
	cp := *rec
	cp.ID = s.id()
	s.central[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) UpdateCentral(ctx context.Context, tx port.Tx, rec *domain.CentralStock) error {
	if _, ok := s.central[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *rec
	s.central[rec.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteCentral(ctx context.Context, tx port.Tx, id int64) error {
	delete(s.central, id)
	return nil
}

func (s *fakeStore) ListCentralByItem(ctx context.Context, itemID int64) ([]domain.CentralStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CentralStock
	for _, r := range s.central {
		if r.ItemID == itemID {
			out = append(out, *r)
		}
	}
	sortCentral(out)
	return out, nil
}

func (s *fakeStore) ListCentralLowStock(ctx context.Context) ([]domain.CentralStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CentralStock
	for _, r := range s.central {
		if r.NeedsRestock() {
			out = append(out, *r)
		}
	}
	sortCentral(out)
	return out, nil
}

func (s *fakeStore) ListCentralNearExpiry(ctx context.Context, before time.Time) ([]domain.CentralStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CentralStock
	for _, r := range s.central {
		if r.ExpiresAt != nil && !r.ExpiresAt.After(before) {
			out = append(out, *r)
		}
	}
	sortCentral(out)
	return out, nil
}

func sortCentral(recs []domain.CentralStock) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

// --- area stock ---

func (s *fakeStore) GetAreaStock(ctx context.Context, id int64) (*domain.AreaStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAreaStock(id)
}

func (s *fakeStore) getAreaStock(id int64) (*domain.AreaStock, error) {
	r, ok := s.area[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) GetAreaStockForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.AreaStock, error) {
	return s.getAreaStock(id)
}

func (s *fakeStore) FindAreaByKeyForUpdate(ctx context.Context, tx port.Tx, itemID, areaID, stateID int64) (*domain.AreaStock, error) {
	for _, r := range s.area {
		if r.ItemID == itemID && r.AreaID == areaID && r.StateID == stateID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindAreaUsable(ctx context.Context, tx port.Tx, itemID, areaID int64) (*domain.AreaStock, error) {
	var best *domain.AreaStock
	for _, r := range s.area {
		if r.ItemID != itemID || r.AreaID != areaID {
			continue
		}
		if st, ok := s.states[r.StateID]; !ok || !st.AllowsUse {
			continue
		}
		if best == nil || r.Quantity > best.Quantity || (r.Quantity == best.Quantity && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *fakeStore) InsertArea(ctx context.Context, tx port.Tx, rec *domain.AreaStock) (int64, error) {
	cp := *rec
	cp.ID = s.id()
	s.area[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) UpdateArea(ctx context.Context, tx port.Tx, rec *domain.AreaStock) error {
	if _, ok := s.area[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *rec
	s.area[rec.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteArea(ctx context.Context, tx port.Tx, id int64) error {
	delete(s.area, id)
	return nil
}

func (s *fakeStore) ListAreaByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AreaStock
	for _, r := range s.area {
		if r.AreaID == areaID {
			out = append(out, *r)
		}
	}
	sortAreaStock(out)
	return out, nil
}

func (s *fakeStore) ListAreaLowStockByArea(ctx context.Context, areaID int64) ([]domain.AreaStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AreaStock
	for _, r := range s.area {
		if r.AreaID == areaID && r.NeedsRestock() {
			out = append(out, *r)
		}
	}
	sortAreaStock(out)
	return out, nil
}

func (s *fakeStore) ListAreaLowStock(ctx context.Context) ([]domain.AreaStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AreaStock
	for _, r := range s.area {
		if r.NeedsRestock() {
			out = append(out, *r)
		}
	}
	sortAreaStock(out)
	return out, nil
}

func sortAreaStock(recs []domain.AreaStock) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

// --- instances ---

func (s *fakeStore) GetInstance(ctx context.Context, id int64) (*domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getInstance(id)
}

func (s *fakeStore) getInstance(id int64) (*domain.Instance, error) {
	r, ok := s.instances[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) GetInstanceForUpdate(ctx context.Context, tx port.Tx, id int64) (*domain.Instance, error) {
	return s.getInstance(id)
}

func (s *fakeStore) FindInstanceBySerial(ctx context.Context, serial string) (*domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.instances {
		if r.Serial == serial {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertInstance(ctx context.Context, tx port.Tx, inst *domain.Instance) (int64, error) {
	cp := *inst
	cp.ID = s.id()
	s.instances[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) UpdateInstance(ctx context.Context, tx port.Tx, inst *domain.Instance) error {
	if _, ok := s.instances[inst.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *inst
	s.instances[inst.ID] = &cp
	return nil
}

func (s *fakeStore) ListInstancesByWorker(ctx context.Context, workerID int64) ([]domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Instance
	for _, r := range s.instances {
		if r.WorkerID != nil && *r.WorkerID == workerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListInstancesByArea(ctx context.Context, areaID int64) ([]domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Instance
	for _, r := range s.instances {
		if r.AreaID != nil && *r.AreaID == areaID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- deliveries ---

func (s *fakeStore) InsertDelivery(ctx context.Context, tx port.Tx, d *domain.Delivery) (int64, error) {
	cp := *d
	cp.ID = s.id()
	s.deliveries[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) InsertDeliveryLines(ctx context.Context, tx port.Tx, deliveryID int64, lines []domain.DeliveryLine) error {
	for i := range lines {
		lines[i].ID = s.id()
		lines[i].DeliveryID = deliveryID
	}
	s.lines[deliveryID] = append([]domain.DeliveryLine(nil), lines...)
	return nil
}

func (s *fakeStore) GetDelivery(ctx context.Context, id int64) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	cp.Lines = append([]domain.DeliveryLine(nil), s.lines[id]...)
	return &cp, nil
}

func (s *fakeStore) ListDeliveriesByWorker(ctx context.Context, workerID int64) ([]domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Delivery
	for _, d := range s.deliveries {
		if d.WorkerID == workerID {
			cp := *d
			cp.Lines = append([]domain.DeliveryLine(nil), s.lines[d.ID]...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- reference data ---

func (s *fakeStore) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it, nil
}

func (s *fakeStore) GetState(ctx context.Context, id int64) (*domain.StockState, error) {
	st, ok := s.states[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (s *fakeStore) GetStateByName(ctx context.Context, name string) (*domain.StockState, error) {
	for _, st := range s.states {
		if st.Name == name {
			return st, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	a, ok := s.areas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) GetWorker(ctx context.Context, id int64) (*domain.Worker, error) {
	w, ok := s.workers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w, nil
}

func (s *fakeStore) GetWorkerByUser(ctx context.Context, userID int64) (*domain.Worker, error) {
	wid, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if wid == nil {
		return nil, domain.ErrSupervisorNoProfile
	}
	return s.GetWorker(ctx, *wid)
}

// --- idempotency cache ---

func (s *fakeStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	if s.idem[key] {
		return false, nil
	}
	s.idem[key] = true
	return true, nil
}

func (s *fakeStore) ReleaseIdempotency(ctx context.Context, key string) error {
	delete(s.idem, key)
	return nil
}
