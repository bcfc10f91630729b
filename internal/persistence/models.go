package persistence

import "time"

// Intervention statuses.
const (
	StatusEstimate   = "estimate"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Car represents a vehicle known to the garage.
type Car struct {
	ID           int64
	Registration string
	Brand        string
	Model        string
	Motorization *string
	EngineCode   *string
	VIN          *string
	ReleaseDate  *time.Time
	Certificate  []byte
	Comments     *string
}

// Intervention represents a work order on a car. It owns its operations.
type Intervention struct {
	ID          int64
	CarID       int64
	Year        *int64
	Number      *int64
	Status      string
	Date        *time.Time
	Description *string
	Mileage     *int64
	Amount      *int64 // cents
	PaidAmount  *int64 // cents
	Comments    *string
	Operations  []Operation
}

// Operation is a single task of an intervention.
type Operation struct {
	ID             int64
	InterventionID int64
	Label          string
	Done           bool
}
