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

// nextNumberQuery numbers interventions within a year, starting at 1.
const nextNumberQuery = `SELECT COALESCE(MAX("number"), 0) + 1 FROM "interventions" WHERE "year" = ?1`

func interventionValues(in persistence.Intervention) []any {
	return []any{
		in.ID,
		in.CarID,
		intOrNil(in.Year),
		intOrNil(in.Number),
		in.Status,
		dateOrNil(in.Date),
		textOrNil(in.Description),
		intOrNil(in.Mileage),
		intOrNil(in.Amount),
		intOrNil(in.PaidAmount),
		textOrNil(in.Comments),
	}
}

func scanIntervention(rows *sqlx.Rows) (persistence.Intervention, error) {
	var (
		in          persistence.Intervention
		year        sql.NullInt64
		number      sql.NullInt64
		date        sql.NullString
		description sql.NullString
		mileage     sql.NullInt64
		amount      sql.NullInt64
		paidAmount  sql.NullInt64
		comments    sql.NullString
	)
	if err := rows.Scan(
		&in.ID,
		&in.CarID,
		&year,
		&number,
		&in.Status,
		&date,
		&description,
		&mileage,
		&amount,
		&paidAmount,
		&comments,
	); err != nil {
		return persistence.Intervention{}, fmt.Errorf("scan intervention: %w", err)
	}
	in.Year = intPtr(year)
	in.Number = intPtr(number)
	in.Description = textPtr(description)
	in.Mileage = intPtr(mileage)
	in.Amount = intPtr(amount)
	in.PaidAmount = intPtr(paidAmount)
	in.Comments = textPtr(comments)
	var err error
	if in.Date, err = datePtr(date); err != nil {
		return persistence.Intervention{}, fmt.Errorf("scan intervention %d: %w", in.ID, err)
	}
	return in, nil
}

func operationValues(op persistence.Operation) []any {
	return []any{op.ID, op.InterventionID, op.Label, op.Done}
}

func scanOperation(rows *sqlx.Rows) (persistence.Operation, error) {
	var op persistence.Operation
	if err := rows.Scan(&op.ID, &op.InterventionID, &op.Label, &op.Done); err != nil {
		return persistence.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	return op, nil
}

func validateIntervention(in persistence.Intervention) error {
	switch in.Status {
	case persistence.StatusEstimate, persistence.StatusInProgress, persistence.StatusDone:
	default:
		return fmt.Errorf("%w: unknown intervention status %q", persistence.ErrConstraintViolation, in.Status)
	}
	if in.CarID <= 0 {
		return fmt.Errorf("%w: intervention requires a car", persistence.ErrConstraintViolation)
	}
	for _, op := range in.Operations {
		if strings.TrimSpace(op.Label) == "" {
			return fmt.Errorf("%w: operation label is required", persistence.ErrConstraintViolation)
		}
	}
	return nil
}

// CreateIntervention inserts an intervention and its operations in one
// transaction. A dated intervention gets the next number of its year.
func (s *Storage) CreateIntervention(ctx context.Context, in persistence.Intervention) (persistence.Intervention, error) {
	if err := validateIntervention(in); err != nil {
		return persistence.Intervention{}, err
	}
	err := s.inTx(ctx, func(tx *Storage) error {
		if in.Date != nil {
			year := int64(in.Date.Year())
			var number int64
			if err := tx.scalar(ctx, query.New(nextNumberQuery, query.Int("year", year)), &number); err != nil {
				return fmt.Errorf("number intervention: %w", err)
			}
			in.Year, in.Number = &year, &number
		}

		args, err := interventionTable.arguments(interventionValues(in), "id")
		if err != nil {
			return err
		}
		q, err := query.Insert(interventionTable.name, args...).Query()
		if err != nil {
			return err
		}
		res, err := tx.exec(ctx, q, true)
		if err != nil {
			return err
		}
		in.ID = res.GeneratedKey

		in.Operations, err = tx.insertOperations(ctx, in.ID, in.Operations)
		return err
	})
	if err != nil {
		return persistence.Intervention{}, err
	}
	s.logger.Debug("intervention created", "intervention_id", in.ID, "car_id", in.CarID, "operations", len(in.Operations))
	return in, nil
}

// UpdateIntervention overwrites an intervention and replaces its operations in
// one transaction. Year and number are kept as assigned at creation.
func (s *Storage) UpdateIntervention(ctx context.Context, in persistence.Intervention) error {
	if err := validateIntervention(in); err != nil {
		return err
	}
	args, err := interventionTable.arguments(interventionValues(in), "id", "year", "number")
	if err != nil {
		return err
	}
	q, err := query.Update(interventionTable.name, args...).Where(query.Int("id", in.ID)).Query()
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *Storage) error {
		res, err := tx.exec(ctx, q, false)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return persistence.ErrNotFound
		}

		if err := tx.deleteOperations(ctx, in.ID); err != nil {
			return err
		}
		_, err = tx.insertOperations(ctx, in.ID, in.Operations)
		return err
	})
}

// GetIntervention retrieves an intervention with its operations.
func (s *Storage) GetIntervention(ctx context.Context, id int64) (persistence.Intervention, error) {
	q, err := interventionTable.selectAll().Where(query.Int("id", id)).Query()
	if err != nil {
		return persistence.Intervention{}, err
	}
	var in persistence.Intervention
	err = s.one(ctx, q, func(rows *sqlx.Rows) error {
		var err error
		in, err = scanIntervention(rows)
		return err
	})
	if err != nil {
		return persistence.Intervention{}, err
	}
	if in.Operations, err = s.ListOperations(ctx, in.ID); err != nil {
		return persistence.Intervention{}, err
	}
	return in, nil
}

// ListInterventions returns matching interventions ordered by ID, each with
// its operations.
func (s *Storage) ListInterventions(ctx context.Context, filter persistence.InterventionFilter) ([]persistence.Intervention, error) {
	b := interventionTable.selectAll()
	if filter.CarID > 0 {
		b.Where(query.Int("carId", filter.CarID))
	}
	if filter.Status != "" {
		b.Where(query.Str("status", filter.Status))
	}
	q, err := b.OrderBy("id").Query()
	if err != nil {
		return nil, err
	}

	interventions := make([]persistence.Intervention, 0)
	err = s.each(ctx, q, func(rows *sqlx.Rows) error {
		in, err := scanIntervention(rows)
		if err != nil {
			return err
		}
		interventions = append(interventions, in)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Operations are loaded once the intervention rows are closed; the
	// connection serves a single statement at a time.
	for i := range interventions {
		if interventions[i].Operations, err = s.ListOperations(ctx, interventions[i].ID); err != nil {
			return nil, err
		}
	}
	return interventions, nil
}

// DeleteIntervention removes an intervention and its operations.
func (s *Storage) DeleteIntervention(ctx context.Context, id int64) error {
	q, err := query.Delete(interventionTable.name).Where(query.Int("id", id)).Query()
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *Storage) error {
		if err := tx.deleteOperations(ctx, id); err != nil {
			return err
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
}

// ListOperations returns the operations of an intervention ordered by ID.
func (s *Storage) ListOperations(ctx context.Context, interventionID int64) ([]persistence.Operation, error) {
	q, err := operationTable.selectAll().
		Where(query.Int("interventionId", interventionID)).
		OrderBy("id").
		Query()
	if err != nil {
		return nil, err
	}
	ops := make([]persistence.Operation, 0)
	err = s.each(ctx, q, func(rows *sqlx.Rows) error {
		op, err := scanOperation(rows)
		if err != nil {
			return err
		}
		ops = append(ops, op)
		return nil
	})
	return ops, err
}

// SetOperationDone marks a single operation done or pending.
func (s *Storage) SetOperationDone(ctx context.Context, id int64, done bool) error {
	q, err := query.Update(operationTable.name, query.Argument{Column: "done", Value: done, Type: query.Integer}).
		Where(query.Int("id", id)).
		Query()
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

func (s *Storage) insertOperations(ctx context.Context, interventionID int64, ops []persistence.Operation) ([]persistence.Operation, error) {
	out := make([]persistence.Operation, 0, len(ops))
	for _, op := range ops {
		op.InterventionID = interventionID
		args, err := operationTable.arguments(operationValues(op), "id")
		if err != nil {
			return nil, err
		}
		q, err := query.Insert(operationTable.name, args...).Query()
		if err != nil {
			return nil, err
		}
		res, err := s.exec(ctx, q, true)
		if err != nil {
			return nil, err
		}
		op.ID = res.GeneratedKey
		out = append(out, op)
	}
	return out, nil
}

func (s *Storage) deleteOperations(ctx context.Context, interventionID int64) error {
	q, err := query.Delete(operationTable.name).Where(query.Int("interventionId", interventionID)).Query()
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, q, false)
	return err
}
