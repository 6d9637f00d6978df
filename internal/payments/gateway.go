package payments

import (
	"context"
	"fmt"
	"math"

	"github.com/example/driver-hiring/internal/models"
)

// OrderRequest carries the amount in major currency units.
type OrderRequest struct {
	Amount   float64
	Currency string
	Receipt  string
}

// Gateway creates payment orders with an external processor.
type Gateway interface {
	Provider() string
	CreateOrder(ctx context.Context, req OrderRequest) (models.Order, error)
}

// Error wraps any failure talking to the processor.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Provider, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// MinorUnits converts a major-unit amount (rupees) to minor units (paise).
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Receipt builds the receipt identifier for a booking.
func Receipt(bookingID int64) string {
	return fmt.Sprintf("rcpt_%d", bookingID)
}
