package store

import (
	"context"

	"github.com/paissahouse/paissadb/paissa"
)

// UpsertSweeper registers or refreshes a sweeper identity from /hello.
func UpsertSweeper(ctx context.Context, q Querier, s paissa.Sweeper) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sweepers (id, name, world_id, last_seen)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			world_id = EXCLUDED.world_id,
			last_seen = now()
	`, s.ID, s.Name, s.WorldID)
	return err
}

// TouchSweeper refreshes last_seen for an authenticated ingest.
func TouchSweeper(ctx context.Context, q Querier, sweeperID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE sweepers SET last_seen = now() WHERE id = $1
	`, sweeperID)
	return err
}
