package storage

import (
	"context"
	"fmt"

	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// Store is the persistence surface the bot and the poller consume.
// Both backends implement it.
type Store interface {
	AddUser(ctx context.Context, u models.User) error
	AddSearch(ctx context.Context, s models.Search) error
	GetActiveSearches(ctx context.Context) ([]models.Search, error)
	GetUserSearches(ctx context.Context, userID int64) ([]models.Search, error)
	DeleteSearch(ctx context.Context, searchID, userID int64) error
	MarkSeen(ctx context.Context, userID, carID int64) (bool, error)
	CreatePollRun(ctx context.Context, run *models.PollRun) error
	UpdatePollRun(ctx context.Context, run *models.PollRun) error
	Close()
}

// Open selects the backend from config: Postgres for deployments,
// SQLite for local runs.
func Open(ctx context.Context, cfg config.DBConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(ctx, cfg.URL)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}
}
