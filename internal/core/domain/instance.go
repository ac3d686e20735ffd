package domain

import "time"

// Instance is one physical serialized unit of a durable item. Instances are
// never deleted; retirement is a state transition.
type Instance struct {
	ID         int64
	ItemID     int64
	Serial     string
	StateID    int64
	AreaID     *int64
	WorkerID   *int64
	AcquiredAt time.Time
	ExpiresAt  *time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
