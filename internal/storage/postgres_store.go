package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/driver-hiring/internal/models"
)

const driverColumns = `id, name, vehicle_type, experience_years, rating, latitude, longitude, available`

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a bounded pool and pings it once.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) UpsertUser(ctx context.Context, u models.UserUpsert) (models.User, error) {
	var out models.User
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users(uid, name, email, phone, role)
		 VALUES($1,$2,$3,$4,$5)
		 ON CONFLICT (uid) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone
		 RETURNING id, uid, name, email, phone, role`,
		u.UID, u.Name, u.Email, u.Phone, u.Role,
	).Scan(&out.ID, &out.UID, &out.Name, &out.Email, &out.Phone, &out.Role)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) GetUserByUID(ctx context.Context, uid string) (models.User, error) {
	var out models.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, uid, name, email, phone, role FROM users WHERE uid = $1`, uid,
	).Scan(&out.ID, &out.UID, &out.Name, &out.Email, &out.Phone, &out.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) ListDrivers(ctx context.Context, f DriverFilter) ([]models.Driver, error) {
	sql, args := buildDriverQuery(f)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return collectDrivers(rows)
}

// likeEscaper makes search text match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildDriverQuery appends one positional parameter per active filter.
func buildDriverQuery(f DriverFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + driverColumns + ` FROM drivers WHERE 1=1`)
	args := []any{}
	if f.Available != nil {
		args = append(args, *f.Available)
		b.WriteString(` AND available = $` + strconv.Itoa(len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Query)+"%")
		n := strconv.Itoa(len(args))
		b.WriteString(` AND (name ILIKE $` + n + ` ESCAPE '\' OR vehicle_type ILIKE $` + n + ` ESCAPE '\')`)
	}
	b.WriteString(` ORDER BY id`)
	return b.String(), args
}

func (p *PostgresStore) GetDriver(ctx context.Context, id int64) (models.Driver, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	if err != nil {
		return models.Driver{}, fmt.Errorf("get driver: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDriver)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Driver{}, ErrNotFound
	}
	if err != nil {
		return models.Driver{}, fmt.Errorf("get driver: %w", err)
	}
	return d, nil
}

func (p *PostgresStore) UpdateDriverAvailability(ctx context.Context, id int64, available bool, lat, lon *float64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE drivers SET available = $1, latitude = $2, longitude = $3 WHERE id = $4`,
		available, lat, lon, id,
	)
	if err != nil {
		return fmt.Errorf("update driver availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) LatestDrivers(ctx context.Context, limit int) ([]models.Driver, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest drivers: %w", err)
	}
	return collectDrivers(rows)
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b NewBooking) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO bookings(client_uid, driver_id, start_time, end_time, status)
		 VALUES($1,$2,$3,$4,$5) RETURNING id`,
		b.ClientUID, b.DriverID, b.StartTime, b.EndTime, models.BookingPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create booking: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) CreatePayment(ctx context.Context, pm NewPayment) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO payments(booking_id, razorpay_order_id, amount, currency, status)
		 VALUES($1,$2,$3,$4,$5) RETURNING id`,
		pm.BookingID, pm.OrderID, pm.Amount, pm.Currency, models.PaymentCreated,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PostgresStore) Close() { p.pool.Close() }

func scanDriver(row pgx.CollectableRow) (models.Driver, error) {
	var d models.Driver
	err := row.Scan(&d.ID, &d.Name, &d.VehicleType, &d.ExperienceYears, &d.Rating, &d.Latitude, &d.Longitude, &d.Available)
	return d, err
}

func collectDrivers(rows pgx.Rows) ([]models.Driver, error) {
	drivers, err := pgx.CollectRows(rows, scanDriver)
	if err != nil {
		return nil, fmt.Errorf("scan drivers: %w", err)
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	return drivers, nil
}
