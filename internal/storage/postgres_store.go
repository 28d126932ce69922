package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/campus-carpool/internal/models"
)

//go:embed migrations/001_init.sql
var initSQL string

// PostgresStore backs rides, fuel prices and universities with one
// database/sql pool on the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the schema and seeds universities that are missing.
func (p *PostgresStore) Migrate(ctx context.Context, seed []models.University) error {
	if _, err := p.db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, u := range seed {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO universities(id, name, city, lat, lng) VALUES($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
			u.ID, u.Name, u.City, u.Location.Lat, u.Location.Lon)
		if err != nil {
			return fmt.Errorf("seed university %s: %w", u.ID, err)
		}
	}
	return nil
}

const rideColumns = `id, passenger_id, driver_id, university_id, pickup_lat, pickup_lng, estimated_cost,
	payment_method, payment_status, status, created_at, updated_at, completed_at`

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO ride_requests(`+rideColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.PassengerID, r.DriverID, r.UniversityID, r.Pickup.Lat, r.Pickup.Lon, r.EstimatedCost,
		r.PaymentMethod, r.PaymentStatus, r.Status, r.CreatedAt, r.UpdatedAt, r.CompletedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM ride_requests WHERE id=$1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride, prev models.RideStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ride_requests SET status=$1, payment_status=$2, updated_at=$3, completed_at=$4 WHERE id=$5 AND status=$6`,
		r.Status, r.PaymentStatus, r.UpdatedAt, r.CompletedAt, r.ID, prev)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := p.GetRide(ctx, r.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) ListRides(ctx context.Context, userID string) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+rideColumns+` FROM ride_requests WHERE driver_id=$1 OR passenger_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRide(s scanner) (*models.Ride, error) {
	var (
		r         models.Ride
		completed sql.NullTime
	)
	err := s.Scan(&r.ID, &r.PassengerID, &r.DriverID, &r.UniversityID, &r.Pickup.Lat, &r.Pickup.Lon, &r.EstimatedCost,
		&r.PaymentMethod, &r.PaymentStatus, &r.Status, &r.CreatedAt, &r.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

// Current returns the most recently inserted fuel price.
func (p *PostgresStore) Current(ctx context.Context) (models.FuelPrice, error) {
	var price float64
	err := p.db.QueryRowContext(ctx, `SELECT price_usd FROM fuel_prices ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("fuel price: %w", ErrNotFound)
	}
	return models.FuelPrice(price), err
}

// Set appends a new price row; history is kept.
func (p *PostgresStore) Set(ctx context.Context, price models.FuelPrice) error {
	if err := validPrice(price); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO fuel_prices(price_usd) VALUES($1)`, float64(price))
	return err
}

// Universities exposes the university table as a UniversityStore.
func (p *PostgresStore) Universities() UniversityStore { return pgUniversities{db: p.db} }

type pgUniversities struct{ db *sql.DB }

func (u pgUniversities) Get(ctx context.Context, id string) (models.University, error) {
	var out models.University
	err := u.db.QueryRowContext(ctx, `SELECT id, name, city, lat, lng FROM universities WHERE id=$1`, id).
		Scan(&out.ID, &out.Name, &out.City, &out.Location.Lat, &out.Location.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return models.University{}, ErrNotFound
	}
	return out, err
}

func (u pgUniversities) List(ctx context.Context) ([]models.University, error) {
	rows, err := u.db.QueryContext(ctx, `SELECT id, name, city, lat, lng FROM universities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.University
	for rows.Next() {
		var x models.University
		if err := rows.Scan(&x.ID, &x.Name, &x.City, &x.Location.Lat, &x.Location.Lon); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
