// Package cli implements the keystash command-line interface on top of the
// login core: account registration, the login factors, second-factor
// management, and voucher approval.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/mkarpov/keystash/internal/api"
	"github.com/mkarpov/keystash/internal/config"
	"github.com/mkarpov/keystash/internal/logging"
	"github.com/mkarpov/keystash/internal/login"
	"github.com/mkarpov/keystash/internal/repositories/stashes"
	"github.com/mkarpov/keystash/internal/storage"
)

// App wires the CLI commands to a login Core.
type App struct {
	config *config.Config
	core   *login.Core
	db     *sql.DB
	log    logging.Logger
	reader *bufio.Reader
}

// NewApp opens the stash database and builds the login core.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	db, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	client := api.NewHTTPClient(cfg.ServerEndpointURL, cfg.APIKey, log)
	store := stashes.NewSQLiteRepository(db)
	core := login.NewCore(cfg.AppID, client, store, log)

	return &App{
		config: cfg,
		core:   core,
		db:     db,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}
