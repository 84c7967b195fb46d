package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paissahouse/paissadb/gamedata"
	"github.com/paissahouse/paissadb/store"
)

// ImportGamedata loads the EXD CSV exports from dir and upserts the
// resulting worlds, districts and plot info. The api binary does the same
// at startup; this op exists for refreshing a database after a game patch
// without restarting the api.
func ImportGamedata(log *slog.Logger, uri, dir string) error {
	ctx := context.Background()

	data, err := gamedata.Load(log, dir)
	if err != nil {
		return fmt.Errorf("failed to load game data: %w", err)
	}
	log.Info("loaded game data",
		"dir", dir,
		"worlds", len(data.Worlds),
		"districts", len(data.Districts),
		"plot_info", len(data.PlotInfo),
	)

	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := store.UpsertGamedata(ctx, pool, data); err != nil {
		return fmt.Errorf("failed to upsert game data: %w", err)
	}

	log.Info("game data import completed")
	return nil
}
