package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/shopbot/core/logger"
)

const (
	driverName = "postgres"
	// readyTimeout bounds the wait for a database that is still starting.
	readyTimeout = 30 * time.Second
	readyPause   = 2 * time.Second
)

// Connect opens the order database, sizes its pool and waits until it
// answers pings.
func Connect(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	pool := cfg.MaxConnections
	if pool <= 0 {
		pool = 5
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	start := time.Now()
	if err := waitReady(ctx, db); err != nil {
		_ = db.Close()
		logger.DB.Error("db not reachable", append(cfg.logAttrs(),
			slog.String("event", "db.connect"),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.DB.Info("db connected", append(cfg.logAttrs(),
		slog.String("event", "db.connect"),
		slog.Int("pool", pool),
		slog.Duration("duration", time.Since(start)),
	)...)
	return db, nil
}

// waitReady pings db every readyPause until it answers or ctx is done.
func waitReady(ctx context.Context, db *sqlx.DB) error {
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		t := time.NewTimer(readyPause)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("database not ready: %w", err)
		case <-t.C:
		}
	}
}

func (c Config) logAttrs() []any {
	return []any{
		slog.String("driver", driverName),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}
