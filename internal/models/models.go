package models

import "time"

// Role values stored in users.role.
const (
	RoleClient = "client"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

const (
	BookingPending = "pending"
	PaymentCreated = "created"
)

// Principal is the caller identity produced by token verification.
type Principal struct {
	ID    string `json:"uid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type User struct {
	ID    int64   `json:"id"`
	UID   string  `json:"uid"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Role  string  `json:"role"`
}

// UserUpsert is insert-or-update keyed by UID. On conflict only Name and
// Phone are overwritten.
type UserUpsert struct {
	UID   string
	Name  *string
	Email *string
	Phone *string
	Role  string
}

type Driver struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	VehicleType     *string  `json:"vehicle_type"`
	ExperienceYears *int32   `json:"experience_years"`
	Rating          *float64 `json:"rating"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Available       bool     `json:"available"`
}

type Booking struct {
	ID        int64      `json:"id"`
	ClientUID string     `json:"client_uid"`
	DriverID  int64      `json:"driver_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    string     `json:"status"` // pending
}

type Payment struct {
	ID        int64   `json:"id"`
	BookingID int64   `json:"booking_id"`
	OrderID   string  `json:"razorpay_order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"` // created
}

// Order is the gateway's view of a created payment order. Amount is in
// minor currency units.
type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Provider  string `json:"provider"`
}
