package domain

import "errors"

// Error kinds surfaced to callers. Handlers map these onto HTTP statuses with
// errors.Is; everything else is reported as an opaque internal error.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrNegativeStock       = errors.New("adjustment would leave negative stock")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrNonEmptyStock       = errors.New("stock record still holds quantity")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInstanceRequired    = errors.New("durable item requires an instance id")
	ErrWrongItem           = errors.New("instance does not match the requested item")
	ErrNotAvailable        = errors.New("instance is not available")
	ErrNoInventoryForArea  = errors.New("no stock record for item in area")
	ErrWorkerNotActive     = errors.New("worker is not active")
	ErrAreaMismatch        = errors.New("supervisor and worker belong to different areas")
	ErrSupervisorNoProfile = errors.New("supervisor user has no worker profile")
	ErrDuplicateRequest    = errors.New("duplicate request")

	// ErrContention is a retryable lock conflict (lock wait timeout or
	// deadlock); it is not a business error.
	ErrContention = errors.New("lock contention")
)
