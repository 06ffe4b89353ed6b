package storage

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// SQLiteStore mirrors the Postgres store on a local file, for dev runs
// and single-host deployments that do not want a database server.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		username TEXT,
		full_name TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		brand TEXT NOT NULL,
		brand_id INTEGER DEFAULT 0,
		model_name TEXT,
		model_id INTEGER DEFAULT 0,
		year_from INTEGER DEFAULT 0,
		year_to INTEGER DEFAULT 0,
		price_from INTEGER DEFAULT 0,
		price_to INTEGER DEFAULT 0,
		region_id INTEGER DEFAULT 0,
		fuel_id INTEGER DEFAULT 0,
		gearbox_id INTEGER DEFAULT 0,
		status TEXT DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS seen_cars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		car_id INTEGER NOT NULL,
		seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, car_id)
	);

	CREATE TABLE IF NOT EXISTS poll_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT,
		searches_checked INTEGER DEFAULT 0,
		cars_found INTEGER DEFAULT 0,
		cars_new INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_searches_user_status ON searches(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_seen_cars_user ON seen_cars(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AddUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, full_name)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET username = excluded.username, full_name = excluded.full_name`,
		u.UserID, u.Username, u.FullName,
	)
	return err
}

func (s *SQLiteStore) AddSearch(ctx context.Context, search models.Search) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO searches
			(user_id, brand, brand_id, model_name, model_id, year_from, year_to,
			 price_from, price_to, region_id, fuel_id, gearbox_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active')`,
		search.UserID, search.Brand, search.BrandID, search.ModelName, search.ModelID,
		search.YearFrom, search.YearTo, search.PriceFrom, search.PriceTo,
		search.RegionID, search.FuelID, search.GearboxID,
	)
	return err
}

const sqliteSearchColumns = `id, user_id, brand, brand_id, COALESCE(model_name, ''), model_id,
	year_from, year_to, price_from, price_to, region_id, fuel_id, gearbox_id, status`

func (s *SQLiteStore) GetActiveSearches(ctx context.Context) ([]models.Search, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSearchColumns+` FROM searches WHERE status = 'active'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteSearches(rows)
}

func (s *SQLiteStore) GetUserSearches(ctx context.Context, userID int64) ([]models.Search, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSearchColumns+`
		 FROM searches WHERE user_id = ? AND status = 'active' ORDER BY id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteSearches(rows)
}

func scanSQLiteSearches(rows *sql.Rows) ([]models.Search, error) {
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

func (s *SQLiteStore) DeleteSearch(ctx context.Context, searchID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM searches WHERE id = ? AND user_id = ?`, searchID, userID)
	return err
}

// MarkSeen has the same contract as PostgresStore.MarkSeen: true means
// the (user, car) pair was newly inserted.
func (s *SQLiteStore) MarkSeen(ctx context.Context, userID, carID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_cars (user_id, car_id)
		VALUES (?, ?)
		ON CONFLICT (user_id, car_id) DO NOTHING`,
		userID, carID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) CreatePollRun(ctx context.Context, run *models.PollRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_runs (id, started_at, status, searches_checked, cars_found, cars_new, errors_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt, run.Status, run.SearchesChecked, run.CarsFound, run.CarsNew, run.ErrorsCount,
	)
	return err
}

func (s *SQLiteStore) UpdatePollRun(ctx context.Context, run *models.PollRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE poll_runs SET
			finished_at = ?, status = ?, searches_checked = ?,
			cars_found = ?, cars_new = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.SearchesChecked, run.CarsFound, run.CarsNew, run.ErrorsCount,
		run.ID.String(),
	)
	return err
}
