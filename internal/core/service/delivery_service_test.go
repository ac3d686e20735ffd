package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
)

// deliveryFixture seeds one area with an active worker, a supervisor with a
// user account, a consumable with 10 units on the shelf and one durable
// instance ready to issue.
type deliveryFixture struct {
	store *fakeStore
	svc   *DeliveryService

	areaID           int64
	workerID         int64
	supervisorUserID int64

	glovesID    int64
	glovesRecID int64
	helmetID    int64
	helmetInst  int64
}

func newDeliveryFixture() *deliveryFixture {
	store := newFakeStore()
	f := &deliveryFixture{store: store}

	f.areaID = store.addArea("Assembly")
	f.workerID = store.addWorker(f.areaID, domain.WorkerActive)
	supervisorID := store.addWorker(f.areaID, domain.WorkerActive)
	f.supervisorUserID = store.addUser(supervisorID)

	f.glovesID = store.addItem("Nitrile Gloves", domain.UsageConsumable)
	f.glovesRecID = store.addAreaStock(domain.AreaStock{
		ItemID: f.glovesID, AreaID: f.areaID, StateID: stateInStockID, Quantity: 10,
	})

	f.helmetID = store.addItem("Hard Hat", domain.UsageDurable)
	f.helmetInst = store.addInstance(domain.Instance{
		ItemID: f.helmetID, Serial: "HH-001", StateID: stateInStockID,
	})

	f.svc = NewDeliveryService(store, store, store, store, store, store)
	return f
}

func (f *deliveryFixture) input(lines ...DeliveryLineInput) RegisterDeliveryInput {
	return RegisterDeliveryInput{
		WorkerID:         f.workerID,
		SupervisorUserID: f.supervisorUserID,
		Kind:             domain.DeliveryFirstIssue,
		Signature:        "sig",
		Lines:            lines,
	}
}

func (f *deliveryFixture) glovesQty(t *testing.T) int {
	t.Helper()
	rec, err := f.store.GetAreaStock(context.Background(), f.glovesRecID)
	if err != nil {
		t.Fatalf("get area stock: %v", err)
	}
	return rec.Quantity
}

func TestRegisterDelivery_Consumable(t *testing.T) {
	f := newDeliveryFixture()

	d, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 3, Reason: "routine issue"},
	))
	if err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	if d.Status != domain.DeliveryStatusCompleted {
		t.Errorf("expected status %q, got %q", domain.DeliveryStatusCompleted, d.Status)
	}
	if d.Code == "" {
		t.Error("expected generated reference code")
	}
	if len(d.Lines) != 1 || d.Lines[0].Quantity != 3 || d.Lines[0].ItemID != f.glovesID {
		t.Errorf("unexpected lines: %+v", d.Lines)
	}
	if got := f.glovesQty(t); got != 7 {
		t.Errorf("expected area stock 7, got %d", got)
	}

	stored, err := f.svc.GetDetail(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get detail failed: %v", err)
	}
	if len(stored.Lines) != 1 {
		t.Errorf("expected persisted line, got %+v", stored.Lines)
	}
}

func TestRegisterDelivery_Durable(t *testing.T) {
	f := newDeliveryFixture()

	d, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.helmetID, InstanceID: &f.helmetInst, Reason: "first issue"},
	))
	if err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	if len(d.Lines) != 1 || d.Lines[0].Quantity != 1 {
		t.Errorf("expected a single unit line, got %+v", d.Lines)
	}

	inst, err := f.store.GetInstance(context.Background(), f.helmetInst)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if inst.StateID != stateDeliveredID {
		t.Errorf("expected instance delivered, state %d", inst.StateID)
	}
	if inst.WorkerID == nil || *inst.WorkerID != f.workerID {
		t.Errorf("expected instance assigned to worker %d, got %v", f.workerID, inst.WorkerID)
	}
	if inst.AreaID == nil || *inst.AreaID != f.areaID {
		t.Errorf("expected instance located in area %d, got %v", f.areaID, inst.AreaID)
	}
}

func TestRegisterDelivery_MixedLines(t *testing.T) {
	f := newDeliveryFixture()

	d, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 2, Reason: "routine"},
		DeliveryLineInput{ItemID: f.helmetID, InstanceID: &f.helmetInst, Reason: "first issue"},
	))
	if err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if len(d.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(d.Lines))
	}
	if got := f.glovesQty(t); got != 8 {
		t.Errorf("expected area stock 8, got %d", got)
	}
}

func TestRegisterDelivery_TwoLinesSameRecord(t *testing.T) {
	f := newDeliveryFixture()

	// Both lines draw from the same ledger record; decrements accumulate.
	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 4, Reason: "shift A"},
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 4, Reason: "shift B"},
	))
	if err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if got := f.glovesQty(t); got != 2 {
		t.Errorf("expected area stock 2, got %d", got)
	}

	// A second pair exceeding what remains must fail as a whole.
	_, err = f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "shift A"},
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 2, Reason: "shift B"},
	))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if got := f.glovesQty(t); got != 2 {
		t.Errorf("expected area stock unchanged at 2, got %d", got)
	}
}

func TestRegisterDelivery_InsufficientStock(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 11, Reason: "too many"},
	))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if got := f.glovesQty(t); got != 10 {
		t.Errorf("expected area stock unchanged at 10, got %d", got)
	}
}

func TestRegisterDelivery_AtomicRollback(t *testing.T) {
	f := newDeliveryFixture()

	// Mark the helmet instance already delivered so the second line fails
	// after the first has decremented in memory.
	inst := f.store.instances[f.helmetInst]
	inst.StateID = stateDeliveredID

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 3, Reason: "routine"},
		DeliveryLineInput{ItemID: f.helmetID, InstanceID: &f.helmetInst, Reason: "first issue"},
	))
	if !errors.Is(err, domain.ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got: %v", err)
	}

	if got := f.glovesQty(t); got != 10 {
		t.Errorf("expected consumable decrement rolled back, got %d", got)
	}
	deliveries, err := f.store.ListDeliveriesByWorker(context.Background(), f.workerID)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(deliveries) != 0 {
		t.Errorf("expected no delivery recorded, got %d", len(deliveries))
	}
}

func TestRegisterDelivery_SameInstanceTwice(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.helmetID, InstanceID: &f.helmetInst, Reason: "a"},
		DeliveryLineInput{ItemID: f.helmetID, InstanceID: &f.helmetInst, Reason: "b"},
	))
	if !errors.Is(err, domain.ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable on the repeated instance, got: %v", err)
	}

	inst, _ := f.store.GetInstance(context.Background(), f.helmetInst)
	if inst.StateID != stateInStockID {
		t.Errorf("expected instance still in stock, state %d", inst.StateID)
	}
}

func TestRegisterDelivery_WrongItemInstance(t *testing.T) {
	f := newDeliveryFixture()
	otherItem := f.store.addItem("Safety Harness", domain.UsageDurable)

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: otherItem, InstanceID: &f.helmetInst, Reason: "mixup"},
	))
	if !errors.Is(err, domain.ErrWrongItem) {
		t.Errorf("expected ErrWrongItem, got: %v", err)
	}
}

func TestRegisterDelivery_InstanceRequired(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.helmetID, Quantity: 1, Reason: "no serial"},
	))
	if !errors.Is(err, domain.ErrInstanceRequired) {
		t.Errorf("expected ErrInstanceRequired, got: %v", err)
	}
}

func TestRegisterDelivery_NoInventoryForArea(t *testing.T) {
	f := newDeliveryFixture()
	otherItem := f.store.addItem("Face Shield", domain.UsageConsumable)

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: otherItem, Quantity: 1, Reason: "never stocked"},
	))
	if !errors.Is(err, domain.ErrNoInventoryForArea) {
		t.Errorf("expected ErrNoInventoryForArea, got: %v", err)
	}
}

func TestRegisterDelivery_WorkerNotActive(t *testing.T) {
	f := newDeliveryFixture()
	suspended := f.store.addWorker(f.areaID, domain.WorkerSuspended)

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"})
	in.WorkerID = suspended
	_, err := f.svc.RegisterDelivery(context.Background(), in)
	if !errors.Is(err, domain.ErrWorkerNotActive) {
		t.Errorf("expected ErrWorkerNotActive, got: %v", err)
	}
}

func TestRegisterDelivery_AreaMismatch(t *testing.T) {
	f := newDeliveryFixture()
	otherArea := f.store.addArea("Paint Shop")
	otherSupervisor := f.store.addWorker(otherArea, domain.WorkerActive)
	otherUser := f.store.addUser(otherSupervisor)

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"})
	in.SupervisorUserID = otherUser
	_, err := f.svc.RegisterDelivery(context.Background(), in)
	if !errors.Is(err, domain.ErrAreaMismatch) {
		t.Errorf("expected ErrAreaMismatch, got: %v", err)
	}
}

func TestRegisterDelivery_SupervisorNoProfile(t *testing.T) {
	f := newDeliveryFixture()
	bareUser := f.store.addUser(0)

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"})
	in.SupervisorUserID = bareUser
	_, err := f.svc.RegisterDelivery(context.Background(), in)
	if !errors.Is(err, domain.ErrSupervisorNoProfile) {
		t.Errorf("expected ErrSupervisorNoProfile, got: %v", err)
	}
}

func TestRegisterDelivery_NoLines(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.RegisterDelivery(context.Background(), f.input())
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestRegisterDelivery_ZeroQuantityLine(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.RegisterDelivery(context.Background(), f.input(
		DeliveryLineInput{ItemID: f.glovesID, Quantity: 0, Reason: "r"},
	))
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestRegisterDelivery_DuplicateRequest(t *testing.T) {
	f := newDeliveryFixture()

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"})
	in.RequestID = "req-1"
	if _, err := f.svc.RegisterDelivery(context.Background(), in); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	_, err := f.svc.RegisterDelivery(context.Background(), in)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}
	if got := f.glovesQty(t); got != 9 {
		t.Errorf("expected stock decremented once, got %d", got)
	}
}

func TestRegisterDelivery_FailedRequestReleasesToken(t *testing.T) {
	f := newDeliveryFixture()

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 50, Reason: "too many"})
	in.RequestID = "req-2"
	if _, err := f.svc.RegisterDelivery(context.Background(), in); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	// The corrected retry reuses the request id and must be accepted.
	in.Lines[0].Quantity = 2
	if _, err := f.svc.RegisterDelivery(context.Background(), in); err != nil {
		t.Fatalf("corrected retry failed: %v", err)
	}
	if got := f.glovesQty(t); got != 8 {
		t.Errorf("expected stock 8 after retry, got %d", got)
	}
}

func TestRegisterDelivery_InvalidKind(t *testing.T) {
	f := newDeliveryFixture()

	in := f.input(DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"})
	in.Kind = "GIFT"
	if _, err := f.svc.RegisterDelivery(context.Background(), in); err == nil {
		t.Error("expected error for unknown delivery kind")
	}
}

func TestListByWorker(t *testing.T) {
	f := newDeliveryFixture()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.RegisterDelivery(context.Background(), f.input(
			DeliveryLineInput{ItemID: f.glovesID, Quantity: 1, Reason: "r"},
		)); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}

	ds, err := f.svc.ListByWorker(context.Background(), f.workerID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ds) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(ds))
	}
}
