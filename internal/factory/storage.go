package factory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/config"
	"github.com/marzetti/salon-assistant/internal/localstate"
	storepkg "github.com/marzetti/salon-assistant/internal/store"
	storepg "github.com/marzetti/salon-assistant/internal/store/postgres"
	storesqlite "github.com/marzetti/salon-assistant/internal/store/sqlite"
)

// Backend is an open store together with its connection.
type Backend struct {
	Store storepkg.Store
	DB    *sql.DB
}

// Close releases the connection.
func (b *Backend) Close() error { return b.DB.Close() }

// NewStore opens the configured database and makes sure the schema exists.
// Unlike the knowledge index, the conversation tables are needed by the
// first request, so the bootstrap is synchronous and bounded by
// cfg.BootstrapTimeoutSeconds.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	bootstrapCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
	defer cancel()

	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%s_POSTGRES_DSN is required when DB_DRIVER=postgres", config.Prefix)
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := storepg.EnsureSchema(bootstrapCtx, db, cfg.EmbedDimensions); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap completed")
		return &Backend{Store: storepg.NewWithDB(db), DB: db}, nil

	case "sqlite":
		path, err := localstate.Resolve(cfg.SQLitePath, localstate.DBPath)
		if err != nil {
			return nil, err
		}
		db, err := storesqlite.Open(path)
		if err != nil {
			return nil, err
		}
		if err := storesqlite.EnsureSchema(bootstrapCtx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", path).Msg("store bootstrap completed")
		return &Backend{Store: storesqlite.NewWithDB(db), DB: db}, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
