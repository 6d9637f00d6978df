package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/driver-hiring/internal/models"
)

// MemoryStore is an in-process Store used when no database is configured
// and by tests. It keeps the same invariants as the Postgres schema.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	drivers  map[int64]models.Driver
	bookings map[int64]models.Booking
	payments map[int64]models.Payment

	nextUserID    int64
	nextDriverID  int64
	nextBookingID int64
	nextPaymentID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		drivers:  make(map[int64]models.Driver),
		bookings: make(map[int64]models.Booking),
		payments: make(map[int64]models.Payment),
	}
}

// AddDriver inserts a driver, assigning an id when d.ID is zero.
func (m *MemoryStore) AddDriver(d models.Driver) models.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		m.nextDriverID++
		d.ID = m.nextDriverID
	} else if d.ID > m.nextDriverID {
		m.nextDriverID = d.ID
	}
	m.drivers[d.ID] = d
	return d
}

func (m *MemoryStore) UpsertUser(_ context.Context, u models.UserUpsert) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.UID]; ok {
		existing.Name = u.Name
		existing.Phone = u.Phone
		m.users[u.UID] = existing
		return existing, nil
	}
	m.nextUserID++
	user := models.User{ID: m.nextUserID, UID: u.UID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
	m.users[u.UID] = user
	return user, nil
}

func (m *MemoryStore) GetUserByUID(_ context.Context, uid string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

// SetRole changes a user's role. Operators do this out of band.
func (m *MemoryStore) SetRole(uid, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	m.users[uid] = u
	return nil
}

func (m *MemoryStore) ListDrivers(_ context.Context, f DriverFilter) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(f.Query)
	out := []models.Driver{}
	for _, d := range m.drivers {
		if f.Available != nil && d.Available != *f.Available {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) &&
			(d.VehicleType == nil || !strings.Contains(strings.ToLower(*d.VehicleType), q)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetDriver(_ context.Context, id int64) (models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) UpdateDriverAvailability(_ context.Context, id int64, available bool, lat, lon *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Available = available
	d.Latitude = copyFloat(lat)
	d.Longitude = copyFloat(lon)
	m.drivers[id] = d
	return nil
}

func (m *MemoryStore) LatestDrivers(_ context.Context, limit int) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateBooking(_ context.Context, b NewBooking) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[b.DriverID]; !ok {
		return 0, fmt.Errorf("create booking: driver %d does not exist", b.DriverID)
	}
	m.nextBookingID++
	m.bookings[m.nextBookingID] = models.Booking{
		ID:        m.nextBookingID,
		ClientUID: b.ClientUID,
		DriverID:  b.DriverID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    models.BookingPending,
	}
	return m.nextBookingID, nil
}

func (m *MemoryStore) CreatePayment(_ context.Context, p NewPayment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[p.BookingID]; !ok {
		return 0, fmt.Errorf("create payment: booking %d does not exist", p.BookingID)
	}
	m.nextPaymentID++
	m.payments[m.nextPaymentID] = models.Payment{
		ID:        m.nextPaymentID,
		BookingID: p.BookingID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    models.PaymentCreated,
	}
	return m.nextPaymentID, nil
}

// Bookings returns a snapshot of stored bookings ordered by id.
func (m *MemoryStore) Bookings() []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Payments returns a snapshot of stored payments ordered by id.
func (m *MemoryStore) Payments() []models.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserCount reports how many distinct users are stored.
func (m *MemoryStore) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
