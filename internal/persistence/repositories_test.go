package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/hostocars/internal/persistence"
	"github.com/example/hostocars/internal/testfixtures"
)

func TestCarRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates, reads, updates, and deletes cars", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		defer harness.Close()

		car, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture(
			testfixtures.WithRegistration("GT-205-PG"),
			testfixtures.WithBrandModel("Peugeot", "205"),
			testfixtures.WithMotorization("1.9 GTI"),
			testfixtures.WithReleaseDate(testfixtures.ReferenceDay(-12000)),
		).Persistence())
		if err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}

		fetched, err := harness.Cars.GetCarByRegistration(ctx, "GT-205-PG")
		if err != nil {
			t.Fatalf("GetCarByRegistration failed: %v", err)
		}
		if fetched.ID != car.ID || fetched.Brand != "Peugeot" || *fetched.Motorization != "1.9 GTI" {
			t.Fatalf("unexpected car: %#v", fetched)
		}
		if !fetched.ReleaseDate.Equal(*testfixtures.ReferenceDay(-12000)) {
			t.Fatalf("release date not preserved: %v", fetched.ReleaseDate)
		}

		fetched.Model = "205 Rallye"
		if err := harness.Cars.UpdateCar(ctx, fetched); err != nil {
			t.Fatalf("UpdateCar failed: %v", err)
		}
		updated, err := harness.Cars.GetCar(ctx, car.ID)
		if err != nil {
			t.Fatalf("GetCar failed: %v", err)
		}
		if updated.Model != "205 Rallye" {
			t.Fatalf("expected updated model, got %q", updated.Model)
		}

		if err := harness.Cars.DeleteCar(ctx, car.ID); err != nil {
			t.Fatalf("DeleteCar failed: %v", err)
		}
		if _, err := harness.Cars.GetCar(ctx, car.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("lists cars in creation order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		var ids []int64
		for i := 0; i < 3; i++ {
			car, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
			if err != nil {
				t.Fatalf("CreateCar failed: %v", err)
			}
			ids = append(ids, car.ID)
		}

		cars, err := harness.Cars.ListCars(ctx)
		if err != nil {
			t.Fatalf("ListCars failed: %v", err)
		}
		if len(cars) != len(ids) {
			t.Fatalf("expected %d cars, got %d", len(ids), len(cars))
		}
		for i, car := range cars {
			if car.ID != ids[i] {
				t.Fatalf("unexpected order: %d at %d", car.ID, i)
			}
		}
	})

	t.Run("rejects duplicate registrations", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		fixture := testfixtures.NewCarFixture().Persistence()
		if _, err := harness.Cars.CreateCar(ctx, fixture); err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}
		if _, err := harness.Cars.CreateCar(ctx, fixture); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})
}

func TestInterventionRepository(t *testing.T) {
	t.Parallel()

	t.Run("stores operations with their intervention", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		car, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
		if err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}
		created, err := harness.Interventions.CreateIntervention(ctx, testfixtures.NewInterventionFixture(car.ID,
			testfixtures.WithMileage(98000),
			testfixtures.WithAmount(32000),
			testfixtures.WithOperations("Timing belt", "Water pump"),
		).Persistence())
		if err != nil {
			t.Fatalf("CreateIntervention failed: %v", err)
		}
		if len(created.Operations) != 2 || created.Operations[0].ID == 0 {
			t.Fatalf("expected operations with IDs, got %#v", created.Operations)
		}

		if err := harness.Operations.SetOperationDone(ctx, created.Operations[1].ID, true); err != nil {
			t.Fatalf("SetOperationDone failed: %v", err)
		}
		ops, err := harness.Operations.ListOperations(ctx, created.ID)
		if err != nil {
			t.Fatalf("ListOperations failed: %v", err)
		}
		if ops[0].Done || !ops[1].Done {
			t.Fatalf("unexpected operation states: %#v", ops)
		}

		if err := harness.Operations.SetOperationDone(ctx, 9999, true); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("numbers interventions per year", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		car, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
		if err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}

		days := []int{0, 10, 400, 20}
		var numbers []int64
		for _, d := range days {
			in, err := harness.Interventions.CreateIntervention(ctx,
				testfixtures.NewInterventionFixture(car.ID, testfixtures.WithDate(testfixtures.ReferenceDay(d))).Persistence())
			if err != nil {
				t.Fatalf("CreateIntervention failed: %v", err)
			}
			numbers = append(numbers, *in.Number)
		}
		want := []int64{1, 2, 1, 3}
		for i := range want {
			if numbers[i] != want[i] {
				t.Fatalf("expected numbers %v, got %v", want, numbers)
			}
		}

		undated, err := harness.Interventions.CreateIntervention(ctx,
			testfixtures.NewInterventionFixture(car.ID, testfixtures.WithDate(nil)).Persistence())
		if err != nil {
			t.Fatalf("CreateIntervention failed: %v", err)
		}
		if undated.Year != nil || undated.Number != nil {
			t.Fatalf("undated interventions are not numbered: %#v", undated)
		}
	})

	t.Run("filters by car and status", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		first, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
		if err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}
		second, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
		if err != nil {
			t.Fatalf("CreateCar failed: %v", err)
		}
		for _, in := range []persistence.Intervention{
			testfixtures.NewInterventionFixture(first.ID).Persistence(),
			testfixtures.NewInterventionFixture(first.ID, testfixtures.WithStatus(persistence.StatusDone)).Persistence(),
			testfixtures.NewInterventionFixture(second.ID, testfixtures.WithStatus(persistence.StatusDone)).Persistence(),
		} {
			if _, err := harness.Interventions.CreateIntervention(ctx, in); err != nil {
				t.Fatalf("CreateIntervention failed: %v", err)
			}
		}

		tests := []struct {
			filter persistence.InterventionFilter
			want   int
		}{
			{persistence.InterventionFilter{}, 3},
			{persistence.InterventionFilter{CarID: first.ID}, 2},
			{persistence.InterventionFilter{Status: persistence.StatusDone}, 2},
			{persistence.InterventionFilter{CarID: first.ID, Status: persistence.StatusDone}, 1},
			{persistence.InterventionFilter{CarID: second.ID, Status: persistence.StatusEstimate}, 0},
		}
		for _, tt := range tests {
			got, err := harness.Interventions.ListInterventions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListInterventions(%+v) failed: %v", tt.filter, err)
			}
			if len(got) != tt.want {
				t.Fatalf("ListInterventions(%+v) = %d results, want %d", tt.filter, len(got), tt.want)
			}
		}
	})
}

func TestStorage_SurvivesSchemaUpgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t, testfixtures.WithProjectVersion("1.1.0"))

	car, err := harness.Cars.CreateCar(ctx, testfixtures.NewCarFixture().Persistence())
	if err != nil {
		t.Fatalf("CreateCar failed: %v", err)
	}

	harness.Reopen(t, testfixtures.WithProjectVersion("1.2.0"))

	in, err := harness.Interventions.CreateIntervention(ctx, testfixtures.NewInterventionFixture(car.ID,
		testfixtures.WithOperations("Diagnosis"),
	).Persistence())
	if err != nil {
		t.Fatalf("CreateIntervention after upgrade failed: %v", err)
	}
	if len(in.Operations) != 1 || *in.Number != 1 {
		t.Fatalf("unexpected intervention: %#v", in)
	}

	backups, err := filepath.Glob(filepath.Join(harness.Options.Database.Location, "backups", "hostocars-premigration-*.db"))
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected one pre-migration backup, got %v", backups)
	}
}
