package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/example/driver-hiring/internal/models"
)

// Runs against a real database only when TEST_DATABASE_URL is set.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	uid := "it-" + time.Now().Format("150405.000000")
	if _, err := s.UpsertUser(ctx, models.UserUpsert{UID: uid, Name: strPtr("A"), Role: models.RoleClient}); err != nil {
		t.Fatal(err)
	}
	u, err := s.UpsertUser(ctx, models.UserUpsert{UID: uid, Name: strPtr("B"), Phone: strPtr("9"), Role: models.RoleClient})
	if err != nil {
		t.Fatal(err)
	}
	if *u.Name != "B" || *u.Phone != "9" {
		t.Fatalf("upsert did not overwrite: %+v", u)
	}

	var driverID int64
	if err := s.pool.QueryRow(ctx, `INSERT INTO drivers(name, vehicle_type) VALUES('IT driver', 'Van') RETURNING id`).Scan(&driverID); err != nil {
		t.Fatal(err)
	}
	lat, lon := 12.9, 77.6
	if err := s.UpdateDriverAvailability(ctx, driverID, true, &lat, &lon); err != nil {
		t.Fatal(err)
	}
	d, err := s.GetDriver(ctx, driverID)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Available || *d.Latitude != lat {
		t.Fatalf("unexpected driver %+v", d)
	}
	if _, err := s.GetDriver(ctx, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bid, err := s.CreateBooking(ctx, NewBooking{ClientUID: uid, DriverID: driverID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePayment(ctx, NewPayment{BookingID: bid, OrderID: "order_it", Amount: 500, Currency: "INR"}); err != nil {
		t.Fatal(err)
	}
}
