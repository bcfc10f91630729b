package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/hostocars/internal/persistence"
)

var carCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDay returns ReferenceTime truncated to its date, offset by days.
func ReferenceDay(days int) *time.Time {
	d := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day()+days, 0, 0, 0, 0, time.UTC)
	return &d
}

// ----------------------------- Car fixtures ------------------------------

// CarFixture represents a deterministic car record.
type CarFixture struct {
	Registration string
	Brand        string
	Model        string
	Motorization *string
	ReleaseDate  *time.Time
	Comments     *string
}

// CarOption configures the generated car fixture.
type CarOption func(*CarFixture)

// NewCarFixture returns a car fixture with a unique registration.
func NewCarFixture(opts ...CarOption) CarFixture {
	idx := atomic.AddUint64(&carCounter, 1)
	fixture := CarFixture{
		Registration: fmt.Sprintf("AA-%03d-ZZ", idx),
		Brand:        "Renault",
		Model:        "Clio",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRegistration overrides the generated registration plate.
func WithRegistration(registration string) CarOption {
	return func(f *CarFixture) {
		f.Registration = registration
	}
}

// WithBrandModel overrides the brand and model.
func WithBrandModel(brand, model string) CarOption {
	return func(f *CarFixture) {
		f.Brand = brand
		f.Model = model
	}
}

// WithMotorization sets the engine description.
func WithMotorization(motorization string) CarOption {
	return func(f *CarFixture) {
		f.Motorization = &motorization
	}
}

// WithReleaseDate sets the first registration date.
func WithReleaseDate(day *time.Time) CarOption {
	return func(f *CarFixture) {
		f.ReleaseDate = day
	}
}

// Persistence converts the fixture into a persistence car without an ID.
func (f CarFixture) Persistence() persistence.Car {
	return persistence.Car{
		Registration: f.Registration,
		Brand:        f.Brand,
		Model:        f.Model,
		Motorization: f.Motorization,
		ReleaseDate:  f.ReleaseDate,
		Comments:     f.Comments,
	}
}

// ------------------------- Intervention fixtures -------------------------

// InterventionFixture represents a deterministic intervention with operations.
type InterventionFixture struct {
	CarID      int64
	Status     string
	Date       *time.Time
	Mileage    *int64
	Amount     *int64
	Operations []string
}

// InterventionOption configures the generated intervention fixture.
type InterventionOption func(*InterventionFixture)

// NewInterventionFixture returns an estimate for carID dated on the reference day.
func NewInterventionFixture(carID int64, opts ...InterventionOption) InterventionFixture {
	fixture := InterventionFixture{
		CarID:  carID,
		Status: persistence.StatusEstimate,
		Date:   ReferenceDay(0),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithStatus overrides the intervention status.
func WithStatus(status string) InterventionOption {
	return func(f *InterventionFixture) {
		f.Status = status
	}
}

// WithDate overrides the intervention date; nil leaves it undated.
func WithDate(day *time.Time) InterventionOption {
	return func(f *InterventionFixture) {
		f.Date = day
	}
}

// WithMileage sets the odometer reading.
func WithMileage(km int64) InterventionOption {
	return func(f *InterventionFixture) {
		f.Mileage = &km
	}
}

// WithAmount sets the quoted amount in cents.
func WithAmount(cents int64) InterventionOption {
	return func(f *InterventionFixture) {
		f.Amount = &cents
	}
}

// WithOperations sets the operation labels, all pending.
func WithOperations(labels ...string) InterventionOption {
	return func(f *InterventionFixture) {
		f.Operations = append([]string(nil), labels...)
	}
}

// Persistence converts the fixture into a persistence intervention without IDs.
func (f InterventionFixture) Persistence() persistence.Intervention {
	ops := make([]persistence.Operation, 0, len(f.Operations))
	for _, label := range f.Operations {
		ops = append(ops, persistence.Operation{Label: label})
	}
	return persistence.Intervention{
		CarID:      f.CarID,
		Status:     f.Status,
		Date:       f.Date,
		Mileage:    f.Mileage,
		Amount:     f.Amount,
		Operations: ops,
	}
}
