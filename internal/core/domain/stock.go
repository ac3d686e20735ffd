package domain

import "time"

// CentralStock is one quantity record in the central warehouse ledger,
// uniquely keyed by (item, lot, state) across live records.
type CentralStock struct {
	ID            int64
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
	UpdatedAt     time.Time
}

func (c *CentralStock) NeedsRestock() bool {
	return c.Quantity <= c.MinQuantity
}

// AreaStock is one quantity record in a per-area ledger, uniquely keyed by
// (item, area, state).
type AreaStock struct {
	ID          int64
	ItemID      int64
	AreaID      int64
	StateID     int64
	Quantity    int
	MinQuantity int
	MaxQuantity *int
	Location    string
	UpdatedAt   time.Time
}

func (a *AreaStock) NeedsRestock() bool {
	return a.Quantity <= a.MinQuantity
}
