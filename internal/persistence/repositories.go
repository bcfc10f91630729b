package persistence

import "context"

// CarRepository exposes CRUD operations for cars.
type CarRepository interface {
	CreateCar(ctx context.Context, car Car) (Car, error)
	UpdateCar(ctx context.Context, car Car) error
	GetCar(ctx context.Context, id int64) (Car, error)
	GetCarByRegistration(ctx context.Context, registration string) (Car, error)
	ListCars(ctx context.Context) ([]Car, error)
	DeleteCar(ctx context.Context, id int64) error
}

// InterventionFilter narrows intervention queries. Zero values match everything.
type InterventionFilter struct {
	CarID  int64
	Status string
}

// InterventionRepository stores interventions together with their operations.
type InterventionRepository interface {
	CreateIntervention(ctx context.Context, intervention Intervention) (Intervention, error)
	UpdateIntervention(ctx context.Context, intervention Intervention) error
	GetIntervention(ctx context.Context, id int64) (Intervention, error)
	ListInterventions(ctx context.Context, filter InterventionFilter) ([]Intervention, error)
	DeleteIntervention(ctx context.Context, id int64) error
}

// OperationRepository updates single operations without rewriting their intervention.
type OperationRepository interface {
	ListOperations(ctx context.Context, interventionID int64) ([]Operation, error)
	SetOperationDone(ctx context.Context, id int64, done bool) error
}
