// Package store holds the SQL layer shared by the api, worker and admin
// binaries. Every statement targets Postgres through pgx; callers pass
// either the process pool or an open transaction.
package store

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same functions serve both one-shot reads and transactional reconciles.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// LockPlot takes the transaction-scoped advisory lock that serializes
// reconciliation of a single plot across worker processes. The key is an
// FNV-64a hash of the packed plot location, so contention only occurs
// between observations of the same plot.
func LockPlot(ctx context.Context, tx Querier, worldID, districtID, wardNumber, plotNumber int) error {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(worldID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(districtID))
	binary.BigEndian.PutUint16(buf[8:10], uint16(wardNumber))
	binary.BigEndian.PutUint16(buf[10:12], uint16(plotNumber))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(h.Sum64()))
	return err
}
