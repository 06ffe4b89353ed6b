package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// NewPostgresStore connects with a bounded retry budget — the database
// container usually comes up a few seconds after the bot — and ensures
// the schema exists. Exhausting the retries is the one fatal startup
// condition.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	var pingErr error
	for i := 1; i <= connectAttempts; i++ {
		if pingErr = pool.Ping(ctx); pingErr == nil {
			break
		}
		log.Printf("Database unavailable (attempt %d/%d): %v", i, connectAttempts, pingErr)
		select {
		case <-time.After(connectDelay):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("ping after %d attempts: %w", connectAttempts, pingErr)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username TEXT,
			full_name TEXT,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS searches (
			id SERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES users(user_id) ON DELETE CASCADE,
			brand TEXT NOT NULL,
			brand_id BIGINT DEFAULT 0,
			model_name TEXT,
			model_id BIGINT DEFAULT 0,
			year_from INT DEFAULT 0,
			year_to INT DEFAULT 0,
			price_from INT DEFAULT 0,
			price_to INT DEFAULT 0,
			region_id BIGINT DEFAULT 0,
			fuel_id BIGINT DEFAULT 0,
			gearbox_id BIGINT DEFAULT 0,
			status TEXT DEFAULT 'active',
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS seen_cars (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			car_id BIGINT NOT NULL,
			seen_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, car_id)
		)`,
		`CREATE TABLE IF NOT EXISTS poll_runs (
			id UUID PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status TEXT,
			searches_checked INT DEFAULT 0,
			cars_found INT DEFAULT 0,
			cars_new INT DEFAULT 0,
			errors_count INT DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_user_status ON searches(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_cars_user ON seen_cars(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Users
// =============================================================================

func (s *PostgresStore) AddUser(ctx context.Context, u models.User) error {
	query := `
		INSERT INTO users (user_id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username, full_name = EXCLUDED.full_name`

	_, err := s.pool.Exec(ctx, query, u.UserID, u.Username, u.FullName)
	return err
}

// =============================================================================
// Searches
// =============================================================================

func (s *PostgresStore) AddSearch(ctx context.Context, search models.Search) error {
	query := `
		INSERT INTO searches
			(user_id, brand, brand_id, model_name, model_id, year_from, year_to,
			 price_from, price_to, region_id, fuel_id, gearbox_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'active')`

	_, err := s.pool.Exec(ctx, query,
		search.UserID, search.Brand, search.BrandID, search.ModelName, search.ModelID,
		search.YearFrom, search.YearTo, search.PriceFrom, search.PriceTo,
		search.RegionID, search.FuelID, search.GearboxID,
	)
	return err
}

const searchColumns = `id, user_id, brand, brand_id, COALESCE(model_name, ''), model_id,
	year_from, year_to, price_from, price_to, region_id, fuel_id, gearbox_id, status`

func (s *PostgresStore) GetActiveSearches(ctx context.Context) ([]models.Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE status = 'active'`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearches(rows)
}

func (s *PostgresStore) GetUserSearches(ctx context.Context, userID int64) ([]models.Search, error) {
	query := `SELECT ` + searchColumns + `
		FROM searches WHERE user_id = $1 AND status = 'active' ORDER BY id DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearches(rows)
}

func scanSearches(rows pgx.Rows) ([]models.Search, error) {
	var searches []models.Search
	for rows.Next() {
		var sr models.Search
		if err := rows.Scan(
			&sr.ID, &sr.UserID, &sr.Brand, &sr.BrandID, &sr.ModelName, &sr.ModelID,
			&sr.YearFrom, &sr.YearTo, &sr.PriceFrom, &sr.PriceTo,
			&sr.RegionID, &sr.FuelID, &sr.GearboxID, &sr.Status,
		); err != nil {
			return nil, err
		}
		searches = append(searches, sr)
	}
	return searches, rows.Err()
}

func (s *PostgresStore) DeleteSearch(ctx context.Context, searchID, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM searches WHERE id = $1 AND user_id = $2`, searchID, userID)
	return err
}

// =============================================================================
// Seen cars
// =============================================================================

// MarkSeen atomically records that the user has been shown a car.
// It returns true when the pair was newly inserted, i.e. the car has
// not been delivered to this user before. The conflict-free insert
// makes the check race-safe across concurrent cycles.
func (s *PostgresStore) MarkSeen(ctx context.Context, userID, carID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO seen_cars (user_id, car_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, car_id) DO NOTHING`,
		userID, carID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =============================================================================
// Poll runs
// =============================================================================

func (s *PostgresStore) CreatePollRun(ctx context.Context, run *models.PollRun) error {
	query := `
		INSERT INTO poll_runs (id, started_at, status, searches_checked, cars_found, cars_new, errors_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.StartedAt, run.Status, run.SearchesChecked, run.CarsFound, run.CarsNew, run.ErrorsCount,
	)
	return err
}

func (s *PostgresStore) UpdatePollRun(ctx context.Context, run *models.PollRun) error {
	query := `
		UPDATE poll_runs SET
			finished_at = $2, status = $3, searches_checked = $4,
			cars_found = $5, cars_new = $6, errors_count = $7
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.SearchesChecked, run.CarsFound, run.CarsNew, run.ErrorsCount,
	)
	return err
}
