package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/repository"
)

// ConnectDB opens the configured database and bootstraps its tables.
// A bare SQLite path gets the default pragmas.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver == "sqlite" && !strings.HasPrefix(cfg.DSN, "file:") {
		cfg.DSN = repository.SQLiteDSN(cfg.DSN)
	}
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		db.Close(logger)
		return nil, err
	}

	return db, nil
}
