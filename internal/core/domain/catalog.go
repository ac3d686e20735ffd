package domain

import "time"

type UsageKind string

const (
	UsageConsumable UsageKind = "CONSUMABLE"
	UsageDurable    UsageKind = "DURABLE"
)

// Item is a catalog entry for a type of protective equipment. The core never
// mutates items; catalog management owns them.
type Item struct {
	ID        int64
	Code      string
	Name      string
	UsageKind UsageKind
	Active    bool
	CreatedAt time.Time
}

// StockState is immutable reference data: a named condition carrying the
// "allows use" flag that gates transfers and deliveries.
type StockState struct {
	ID          int64
	Name        string
	Description string
	AllowsUse   bool
}

// Well-known state names seeded by schema.sql.
const (
	StateNew       = "NEW"
	StateInStock   = "IN_STOCK"
	StateDelivered = "DELIVERED"
	StateDamaged   = "DAMAGED"
	StateRetired   = "RETIRED"
)
