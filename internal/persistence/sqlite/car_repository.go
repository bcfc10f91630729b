package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/hostocars/internal/persistence"
	"github.com/example/hostocars/internal/query"
)

func carValues(c persistence.Car) []any {
	return []any{
		c.ID,
		c.Registration,
		c.Brand,
		c.Model,
		textOrNil(c.Motorization),
		textOrNil(c.EngineCode),
		textOrNil(c.VIN),
		dateOrNil(c.ReleaseDate),
		bytesOrNil(c.Certificate),
		textOrNil(c.Comments),
	}
}

func scanCar(rows *sqlx.Rows) (persistence.Car, error) {
	var (
		c            persistence.Car
		motorization sql.NullString
		engineCode   sql.NullString
		vin          sql.NullString
		releaseDate  sql.NullString
		certificate  []byte
		comments     sql.NullString
	)
	if err := rows.Scan(
		&c.ID,
		&c.Registration,
		&c.Brand,
		&c.Model,
		&motorization,
		&engineCode,
		&vin,
		&releaseDate,
		&certificate,
		&comments,
	); err != nil {
		return persistence.Car{}, fmt.Errorf("scan car: %w", err)
	}
	c.Motorization = textPtr(motorization)
	c.EngineCode = textPtr(engineCode)
	c.VIN = textPtr(vin)
	c.Comments = textPtr(comments)
	if len(certificate) > 0 {
		c.Certificate = certificate
	}
	var err error
	if c.ReleaseDate, err = datePtr(releaseDate); err != nil {
		return persistence.Car{}, fmt.Errorf("scan car %d: %w", c.ID, err)
	}
	return c, nil
}

func validateCar(c persistence.Car) error {
	if strings.TrimSpace(c.Registration) == "" || strings.TrimSpace(c.Brand) == "" || strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: registration, brand and model are required", persistence.ErrConstraintViolation)
	}
	return nil
}

// CreateCar inserts a car and returns it with its generated ID.
func (s *Storage) CreateCar(ctx context.Context, car persistence.Car) (persistence.Car, error) {
	if err := validateCar(car); err != nil {
		return persistence.Car{}, err
	}
	args, err := carTable.arguments(carValues(car), "id")
	if err != nil {
		return persistence.Car{}, err
	}
	q, err := query.Insert(carTable.name, args...).Query()
	if err != nil {
		return persistence.Car{}, err
	}
	res, err := s.exec(ctx, q, true)
	if err != nil {
		return persistence.Car{}, err
	}
	car.ID = res.GeneratedKey
	s.logger.Debug("car created", "car_id", car.ID, "registration", car.Registration)
	return car, nil
}

// UpdateCar overwrites every column of an existing car.
func (s *Storage) UpdateCar(ctx context.Context, car persistence.Car) error {
	if err := validateCar(car); err != nil {
		return err
	}
	args, err := carTable.arguments(carValues(car), "id")
	if err != nil {
		return err
	}
	q, err := query.Update(carTable.name, args...).Where(query.Int("id", car.ID)).Query()
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, q, false)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetCar retrieves a car by ID.
func (s *Storage) GetCar(ctx context.Context, id int64) (persistence.Car, error) {
	return s.getCarBy(ctx, query.Int("id", id))
}

// GetCarByRegistration retrieves a car by its registration plate.
func (s *Storage) GetCarByRegistration(ctx context.Context, registration string) (persistence.Car, error) {
	return s.getCarBy(ctx, query.Str("registration", strings.TrimSpace(registration)))
}

func (s *Storage) getCarBy(ctx context.Context, where query.Argument) (persistence.Car, error) {
	q, err := carTable.selectAll().Where(where).Query()
	if err != nil {
		return persistence.Car{}, err
	}
	var car persistence.Car
	err = s.one(ctx, q, func(rows *sqlx.Rows) error {
		var err error
		car, err = scanCar(rows)
		return err
	})
	return car, err
}

// ListCars returns every car ordered by ID.
func (s *Storage) ListCars(ctx context.Context) ([]persistence.Car, error) {
	q, err := carTable.selectAll().OrderBy("id").Query()
	if err != nil {
		return nil, err
	}
	cars := make([]persistence.Car, 0)
	err = s.each(ctx, q, func(rows *sqlx.Rows) error {
		car, err := scanCar(rows)
		if err != nil {
			return err
		}
		cars = append(cars, car)
		return nil
	})
	return cars, err
}

// DeleteCar removes a car together with its interventions and their
// operations, all or nothing.
func (s *Storage) DeleteCar(ctx context.Context, id int64) error {
	cascade := []query.Query{
		query.New(`DELETE FROM "operations" WHERE "interventionId" IN (SELECT "id" FROM "interventions" WHERE "carId" = ?1)`,
			query.Int("carId", id)),
		query.Delete(interventionTable.name).Where(query.Int("carId", id)).MustQuery(),
	}
	q, err := query.Delete(carTable.name).Where(query.Int("id", id)).Query()
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *Storage) error {
		for _, c := range cascade {
			if _, err := tx.exec(ctx, c, false); err != nil {
				return err
			}
		}
		res, err := tx.exec(ctx, q, false)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("car deleted", "car_id", id)
	return nil
}
