// Package queue owns every Redis key in the pipeline: the scored event
// queue the admitter feeds and the reconciler drains, the pub/sub channel
// fanning state transitions out to the websocket processes, and the CSV
// dump lock and cache.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paissahouse/paissadb/paissa"
)

const (
	// EventQueueKey is the sorted set of pending dedup keys, scored by
	// observation timestamp.
	EventQueueKey = "events_pq"

	// ChannelWSMessages carries serialized transition broadcasts.
	ChannelWSMessages = "ws_messages"

	dumpLockKey  = "csv_dump_lock"
	dumpCacheKey = "csv_dump"

	payloadTTL = time.Hour
	dumpTTL    = 5 * time.Minute

	// popTimeout bounds each blocking pop so context cancellation is
	// observed between polls.
	popTimeout = 5 * time.Second
)

// Queue wraps the shared Redis client.
type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Admit queues a batch of keyed observations in one transactional
// pipeline. Payloads are written NX, so a key already queued or still
// inside its TTL window keeps its original payload, and ZADD NX keeps the
// earliest score. Replayed observations therefore collapse to no-ops.
// Returns how many entries were freshly queued; the remainder
// deduplicated onto existing keys.
func (q *Queue) Admit(ctx context.Context, entries []paissa.KeyedEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	pipe := q.rdb.TxPipeline()
	setCmds := make([]*redis.BoolCmd, 0, len(entries))
	for _, e := range entries {
		payload, err := json.Marshal(e.Entry)
		if err != nil {
			return 0, err
		}
		setCmds = append(setCmds, pipe.SetNX(ctx, e.Key, payload, payloadTTL))
		pipe.ZAddNX(ctx, EventQueueKey, redis.Z{Score: e.Score, Member: e.Key})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	queued := 0
	for _, cmd := range setCmds {
		if cmd.Val() {
			queued++
		}
	}
	return queued, nil
}

// PopMin blocks until the lowest-scored queued key is available or ctx is
// done, and removes it from the queue.
func (q *Queue) PopMin(ctx context.Context) (string, float64, error) {
	for {
		res, err := q.rdb.BZPopMin(ctx, popTimeout, EventQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			continue
		}
		if err != nil {
			return "", 0, err
		}
		member, _ := res.Member.(string)
		return member, res.Score, nil
	}
}

// TakePayload claims the payload stored under a popped key. A nil slice
// with nil error means the payload TTL elapsed before the key was popped;
// callers skip such keys.
func (q *Queue) TakePayload(ctx context.Context, key string) ([]byte, error) {
	data, err := q.rdb.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// Len returns the number of queued keys.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, EventQueueKey).Result()
}

// Publish broadcasts a fanout payload to every subscribed process.
func (q *Queue) Publish(ctx context.Context, payload []byte) error {
	return q.rdb.Publish(ctx, ChannelWSMessages, payload).Err()
}

// Subscribe attaches to the fanout channel. The caller owns the
// subscription and must close it.
func (q *Queue) Subscribe(ctx context.Context) *redis.PubSub {
	return q.rdb.Subscribe(ctx, ChannelWSMessages)
}

// TryDumpLock elects one process to rebuild the CSV dump. The lock is
// never released early; it expires with the cache freshness window.
func (q *Queue) TryDumpLock(ctx context.Context) (bool, error) {
	return q.rdb.SetNX(ctx, dumpLockKey, 1, dumpTTL).Result()
}

// CachedDump returns the cached CSV body, or nil when absent or expired.
func (q *Queue) CachedDump(ctx context.Context) ([]byte, error) {
	data, err := q.rdb.Get(ctx, dumpCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// CacheDump stores a freshly built CSV body.
func (q *Queue) CacheDump(ctx context.Context, body []byte) error {
	return q.rdb.Set(ctx, dumpCacheKey, body, dumpTTL).Err()
}
