package domain

import "time"

type WorkerStatus string

const (
	WorkerActive     WorkerStatus = "ACTIVE"
	WorkerSuspended  WorkerStatus = "SUSPENDED"
	WorkerTerminated WorkerStatus = "TERMINATED"
)

// Worker and Area are read-only collaborators from this core's perspective;
// their lifecycle is owned elsewhere.
type Worker struct {
	ID         int64
	NationalID string
	FirstName  string
	LastName   string
	AreaID     int64
	Position   string
	Status     WorkerStatus
	HiredAt    *time.Time
}

type Area struct {
	ID     int64
	Name   string
	Active bool
}
