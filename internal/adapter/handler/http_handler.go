package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rl1809/ppe-inventory/internal/core/domain"
	"github.com/rl1809/ppe-inventory/internal/core/service"
)

// HTTPHandler is the thin JSON surface over the inventory core. Routing and
// request decoding live here; every rule lives in the services.
type HTTPHandler struct {
	central    *service.CentralStockService
	area       *service.AreaStockService
	transfers  *service.TransferService
	instances  *service.InstanceService
	deliveries *service.DeliveryService
}

func NewHTTPHandler(
	central *service.CentralStockService,
	area *service.AreaStockService,
	transfers *service.TransferService,
	instances *service.InstanceService,
	deliveries *service.DeliveryService,
) *HTTPHandler {
	return &HTTPHandler{
		central:    central,
		area:       area,
		transfers:  transfers,
		instances:  instances,
		deliveries: deliveries,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/central-stock", h.CreateCentralStock)
	mux.HandleFunc("PATCH /api/central-stock/{id}", h.UpdateCentralStock)
	mux.HandleFunc("POST /api/central-stock/{id}/adjust", h.AdjustCentralStock)
	mux.HandleFunc("DELETE /api/central-stock/{id}", h.DeleteCentralStock)
	mux.HandleFunc("GET /api/central-stock/{id}", h.GetCentralStock)
	mux.HandleFunc("GET /api/central-stock", h.ListCentralByItem)
	mux.HandleFunc("GET /api/central-stock/low-stock", h.ListCentralLowStock)
	mux.HandleFunc("GET /api/central-stock/near-expiry", h.ListCentralNearExpiry)

	mux.HandleFunc("POST /api/area-stock", h.CreateAreaStock)
	mux.HandleFunc("PATCH /api/area-stock/{id}", h.UpdateAreaStock)
	mux.HandleFunc("DELETE /api/area-stock/{id}", h.DeleteAreaStock)
	mux.HandleFunc("GET /api/area-stock/{id}", h.GetAreaStock)
	mux.HandleFunc("GET /api/area-stock", h.ListAreaStock)
	mux.HandleFunc("GET /api/area-stock/low-stock", h.ListAreaLowStock)

	mux.HandleFunc("POST /api/transfers", h.TransferStock)

	mux.HandleFunc("POST /api/instances", h.RegisterInstance)
	mux.HandleFunc("GET /api/instances/{id}", h.GetInstance)
	mux.HandleFunc("GET /api/instances", h.ListInstances)

	mux.HandleFunc("POST /api/deliveries", h.RegisterDelivery)
	mux.HandleFunc("GET /api/deliveries/{id}", h.GetDelivery)
	mux.HandleFunc("GET /api/deliveries", h.ListDeliveries)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain error kinds onto HTTP statuses. Contention is
// retryable and maps to 503; anything unrecognized is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInstanceRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNegativeStock),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrNonEmptyStock),
		errors.Is(err, domain.ErrWrongItem),
		errors.Is(err, domain.ErrNotAvailable),
		errors.Is(err, domain.ErrNoInventoryForArea),
		errors.Is(err, domain.ErrWorkerNotActive),
		errors.Is(err, domain.ErrAreaMismatch),
		errors.Is(err, domain.ErrSupervisorNoProfile):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrContention):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "stock record busy, retry"})
	default:
		log.Printf("handler: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type createCentralStockRequest struct {
	ItemID        int64      `json:"item_id"`
	Lot           string     `json:"lot"`
	StateID       int64      `json:"state_id"`
	Quantity      int        `json:"quantity"`
	MinQuantity   int        `json:"min_quantity"`
	MaxQuantity   *int       `json:"max_quantity,omitempty"`
	Location      string     `json:"location"`
	AcquiredAt    *time.Time `json:"acquired_at,omitempty"`
	UnitCostCents int64      `json:"unit_cost_cents"`
	Supplier      string     `json:"supplier"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Notes         string     `json:"notes"`
}

func (h *HTTPHandler) CreateCentralStock(w http.ResponseWriter, r *http.Request) {
	var req createCentralStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ItemID <= 0 || req.StateID <= 0 || req.Lot == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	rec, err := h.central.Create(r.Context(), service.CreateCentralStockInput{
		ItemID:        req.ItemID,
		Lot:           req.Lot,
		StateID:       req.StateID,
		Quantity:      req.Quantity,
		MinQuantity:   req.MinQuantity,
		MaxQuantity:   req.MaxQuantity,
		Location:      req.Location,
		AcquiredAt:    req.AcquiredAt,
		UnitCostCents: req.UnitCostCents,
		Supplier:      req.Supplier,
		ExpiresAt:     req.ExpiresAt,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type updateCentralStockRequest struct {
	Lot           *string    `json:"lot,omitempty"`
	StateID       *int64     `json:"state_id,omitempty"`
	MinQuantity   *int       `json:"min_quantity,omitempty"`
	MaxQuantity   *int       `json:"max_quantity,omitempty"`
	Location      *string    `json:"location,omitempty"`
	UnitCostCents *int64     `json:"unit_cost_cents,omitempty"`
	Supplier      *string    `json:"supplier,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (h *HTTPHandler) UpdateCentralStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var req updateCentralStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rec, err := h.central.Update(r.Context(), id, service.UpdateCentralStockInput{
		Lot:           req.Lot,
		StateID:       req.StateID,
		MinQuantity:   req.MinQuantity,
		MaxQuantity:   req.MaxQuantity,
		Location:      req.Location,
		UnitCostCents: req.UnitCostCents,
		Supplier:      req.Supplier,
		ExpiresAt:     req.ExpiresAt,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type adjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *HTTPHandler) AdjustCentralStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Delta == 0 || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	rec, err := h.central.Adjust(r.Context(), id, req.Delta, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) DeleteCentralStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.central.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetCentralStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	rec, err := h.central.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) ListCentralByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item_id parameter"})
		return
	}
	recs, err := h.central.ListByItem(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *HTTPHandler) ListCentralLowStock(w http.ResponseWriter, r *http.Request) {
	recs, err := h.central.ListLowStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *HTTPHandler) ListCentralNearExpiry(w http.ResponseWriter, r *http.Request) {
	horizon := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid days parameter"})
			return
		}
		horizon = n
	}
	recs, err := h.central.ListNearExpiry(r.Context(), horizon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type createAreaStockRequest struct {
	ItemID      int64  `json:"item_id"`
	AreaID      int64  `json:"area_id"`
	StateID     int64  `json:"state_id"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"min_quantity"`
	MaxQuantity *int   `json:"max_quantity,omitempty"`
	Location    string `json:"location"`
}

func (h *HTTPHandler) CreateAreaStock(w http.ResponseWriter, r *http.Request) {
	var req createAreaStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ItemID <= 0 || req.AreaID <= 0 || req.StateID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	rec, err := h.area.Create(r.Context(), service.CreateAreaStockInput{
		ItemID:      req.ItemID,
		AreaID:      req.AreaID,
		StateID:     req.StateID,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type updateAreaStockRequest struct {
	StateID     *int64  `json:"state_id,omitempty"`
	MinQuantity *int    `json:"min_quantity,omitempty"`
	MaxQuantity *int    `json:"max_quantity,omitempty"`
	Location    *string `json:"location,omitempty"`
}

func (h *HTTPHandler) UpdateAreaStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var req updateAreaStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rec, err := h.area.Update(r.Context(), id, service.UpdateAreaStockInput{
		StateID:     req.StateID,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) DeleteAreaStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.area.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetAreaStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	rec, err := h.area.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) ListAreaStock(w http.ResponseWriter, r *http.Request) {
	areaID, err := strconv.ParseInt(r.URL.Query().Get("area_id"), 10, 64)
	if err != nil || areaID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid area_id parameter"})
		return
	}
	recs, err := h.area.ListByArea(r.Context(), areaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListAreaLowStock returns low-stock records for one area when ?area_id is
// given, otherwise across all areas.
func (h *HTTPHandler) ListAreaLowStock(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("area_id"); v != "" {
		areaID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || areaID <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid area_id parameter"})
			return
		}
		recs, err := h.area.ListLowStockByArea(r.Context(), areaID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
		return
	}

	recs, err := h.area.ListLowStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type transferRequest struct {
	ItemID   int64 `json:"item_id"`
	AreaID   int64 `json:"area_id"`
	Quantity int   `json:"quantity"`
}

func (h *HTTPHandler) TransferStock(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ItemID <= 0 || req.AreaID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	rec, err := h.transfers.Transfer(r.Context(), req.ItemID, req.AreaID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type registerInstanceRequest struct {
	ItemID     int64      `json:"item_id"`
	Serial     string     `json:"serial"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Notes      string     `json:"notes"`
}

func (h *HTTPHandler) RegisterInstance(w http.ResponseWriter, r *http.Request) {
	var req registerInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ItemID <= 0 || req.Serial == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	in := service.RegisterInstanceInput{
		ItemID:    req.ItemID,
		Serial:    req.Serial,
		ExpiresAt: req.ExpiresAt,
		Notes:     req.Notes,
	}
	if req.AcquiredAt != nil {
		in.AcquiredAt = *req.AcquiredAt
	}
	inst, err := h.instances.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (h *HTTPHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	inst, err := h.instances.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// ListInstances filters by exactly one of ?worker_id or ?area_id.
func (h *HTTPHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("worker_id"); v != "" {
		workerID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || workerID <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid worker_id parameter"})
			return
		}
		insts, err := h.instances.ListByWorker(r.Context(), workerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, insts)
		return
	}

	areaID, err := strconv.ParseInt(r.URL.Query().Get("area_id"), 10, 64)
	if err != nil || areaID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "worker_id or area_id parameter required"})
		return
	}
	insts, err := h.instances.ListByArea(r.Context(), areaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insts)
}

type deliveryLineRequest struct {
	ItemID     int64  `json:"item_id"`
	Quantity   int    `json:"quantity"`
	InstanceID *int64 `json:"instance_id,omitempty"`
	Reason     string `json:"reason"`
}

type registerDeliveryRequest struct {
	RequestID        string                `json:"request_id"`
	WorkerID         int64                 `json:"worker_id"`
	SupervisorUserID int64                 `json:"supervisor_user_id"`
	Kind             string                `json:"kind"`
	Notes            string                `json:"notes"`
	Signature        string                `json:"signature"`
	Lines            []deliveryLineRequest `json:"lines"`
}

func (h *HTTPHandler) RegisterDelivery(w http.ResponseWriter, r *http.Request) {
	var req registerDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.WorkerID <= 0 || req.SupervisorUserID <= 0 || len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}
	kind := domain.DeliveryKind(req.Kind)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid delivery kind"})
		return
	}

	lines := make([]service.DeliveryLineInput, 0, len(req.Lines))
	for _, ln := range req.Lines {
		lines = append(lines, service.DeliveryLineInput{
			ItemID:     ln.ItemID,
			Quantity:   ln.Quantity,
			InstanceID: ln.InstanceID,
			Reason:     ln.Reason,
		})
	}

	d, err := h.deliveries.RegisterDelivery(r.Context(), service.RegisterDeliveryInput{
		RequestID:        req.RequestID,
		WorkerID:         req.WorkerID,
		SupervisorUserID: req.SupervisorUserID,
		Kind:             kind,
		Notes:            req.Notes,
		Signature:        req.Signature,
		Lines:            lines,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *HTTPHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	d, err := h.deliveries.GetDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *HTTPHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	workerID, err := strconv.ParseInt(r.URL.Query().Get("worker_id"), 10, 64)
	if err != nil || workerID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid worker_id parameter"})
		return
	}
	ds, err := h.deliveries.ListByWorker(r.Context(), workerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
