package domain

import "time"

type DeliveryKind string

const (
	DeliveryFirstIssue  DeliveryKind = "FIRST_ISSUE"
	DeliveryReplacement DeliveryKind = "REPLACEMENT"
	DeliveryEmergency   DeliveryKind = "EMERGENCY"
)

func (k DeliveryKind) Valid() bool {
	switch k {
	case DeliveryFirstIssue, DeliveryReplacement, DeliveryEmergency:
		return true
	}
	return false
}

const DeliveryStatusCompleted = "COMPLETED"

// Delivery is the header of one issuance event. It is created exactly once,
// together with its lines, and is immutable afterwards.
type Delivery struct {
	ID           int64
	Code         string
	WorkerID     int64
	SupervisorID int64
	DeliveredAt  time.Time
	Kind         DeliveryKind
	Notes        string
	Signature    string
	Status       string
	Lines        []DeliveryLine
}

// DeliveryLine records one item handed over. For consumables Quantity holds
// the units issued and InstanceID is nil; for durables InstanceID references
// the serialized unit and Quantity is always 1.
type DeliveryLine struct {
	ID         int64
	DeliveryID int64
	ItemID     int64
	Quantity   int
	InstanceID *int64
	Reason     string
}
