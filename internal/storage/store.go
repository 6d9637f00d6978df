package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/driver-hiring/internal/models"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// DriverFilter narrows ListDrivers. Query is a case-insensitive substring
// matched against name or vehicle type; a nil Available matches both.
type DriverFilter struct {
	Query     string
	Available *bool
}

type NewBooking struct {
	ClientUID string
	DriverID  int64
	StartTime *time.Time
	EndTime   *time.Time
}

type NewPayment struct {
	BookingID int64
	OrderID   string
	Amount    float64
	Currency  string
}

// Store is the relational gateway behind the API.
type Store interface {
	UpsertUser(ctx context.Context, u models.UserUpsert) (models.User, error)
	GetUserByUID(ctx context.Context, uid string) (models.User, error)

	ListDrivers(ctx context.Context, f DriverFilter) ([]models.Driver, error)
	GetDriver(ctx context.Context, id int64) (models.Driver, error)
	// UpdateDriverAvailability writes availability and coordinates together.
	UpdateDriverAvailability(ctx context.Context, id int64, available bool, lat, lon *float64) error
	LatestDrivers(ctx context.Context, limit int) ([]models.Driver, error)

	// CreateBooking inserts a pending booking and returns its id.
	CreateBooking(ctx context.Context, b NewBooking) (int64, error)
	// CreatePayment inserts a payment in status created for an existing booking.
	CreatePayment(ctx context.Context, p NewPayment) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
