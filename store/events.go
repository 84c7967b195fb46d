package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/paissahouse/paissadb/paissa"
)

// InsertEvents appends audit rows for a batch of validated observations in
// one round trip.
func InsertEvents(ctx context.Context, q Querier, events []paissa.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO events (sweeper_id, timestamp, event_type, data)
			VALUES ($1, $2, $3, $4)
		`, e.SweeperID, e.Timestamp, e.EventType, e.Data)
	}
	results := q.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}
