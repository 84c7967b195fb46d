package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apitesting "github.com/paissahouse/paissadb/api/testing"
	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/queue"
)

func ptr[T any](v T) *T { return &v }

func keyedEntry(plot int, score float64) paissa.KeyedEntry {
	return paissa.KeyedEntry{
		Key:   paissa.WardInfoDedupKey(74, 339, 0, plot, ""),
		Score: score,
		Entry: paissa.PlotStateEntry{
			WorldID:        74,
			DistrictID:     339,
			WardNumber:     0,
			PlotNumber:     plot,
			Timestamp:      score,
			Price:          ptr(562_500),
			IsOwned:        false,
			PurchaseSystem: paissa.PurchaseSystemLottery | paissa.PurchaseSystemIndividual,
		},
	}
}

func TestPaissa_Queue_AdmitDeduplicates(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)
	ctx := t.Context()

	first := keyedEntry(3, 1000)
	queued, err := q.Admit(ctx, []paissa.KeyedEntry{first})
	require.NoError(t, err)
	require.Equal(t, 1, queued)

	// replaying the same observation with a later score changes nothing
	replay := keyedEntry(3, 2000)
	replay.Entry.Price = ptr(999_999)
	queued, err = q.Admit(ctx, []paissa.KeyedEntry{replay})
	require.NoError(t, err)
	require.Zero(t, queued)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	key, score, err := q.PopMin(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Key, key)
	require.Equal(t, float64(1000), score)

	payload, err := q.TakePayload(ctx, key)
	require.NoError(t, err)
	var entry paissa.PlotStateEntry
	require.NoError(t, json.Unmarshal(payload, &entry))
	require.Equal(t, first.Entry, entry)
}

func TestPaissa_Queue_PopMinOrdersByScore(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)
	ctx := t.Context()

	entries := []paissa.KeyedEntry{
		keyedEntry(1, 3000),
		keyedEntry(2, 1000),
		keyedEntry(3, 2000),
	}
	queued, err := q.Admit(ctx, entries)
	require.NoError(t, err)
	require.Equal(t, 3, queued)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	var scores []float64
	for range entries {
		_, score, err := q.PopMin(ctx)
		require.NoError(t, err)
		scores = append(scores, score)
	}
	require.Equal(t, []float64{1000, 2000, 3000}, scores)

	n, err = q.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPaissa_Queue_PopMinStopsOnCancel(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := q.PopMin(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("PopMin did not observe cancellation")
	}
}

func TestPaissa_Queue_TakePayloadClaimsOnce(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)
	ctx := t.Context()

	entry := keyedEntry(7, 1000)
	_, err := q.Admit(ctx, []paissa.KeyedEntry{entry})
	require.NoError(t, err)

	payload, err := q.TakePayload(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, payload)

	// a second worker popping the same key finds the payload gone
	payload, err = q.TakePayload(ctx, entry.Key)
	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestPaissa_Queue_PublishReachesSubscribers(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)
	ctx := t.Context()

	sub := q.Subscribe(ctx)
	defer sub.Close()

	// wait for the subscription before publishing
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	want := []byte(`{"type":"plot_open","data":{}}`)
	require.NoError(t, q.Publish(ctx, want))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, string(want), msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestPaissa_Queue_DumpLockAndCache(t *testing.T) {
	client := apitesting.NewTestRedisClient(t, testRedis)
	q := queue.New(client)
	ctx := t.Context()

	body, err := q.CachedDump(ctx)
	require.NoError(t, err)
	require.Nil(t, body)

	ok, err := q.TryDumpLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// somebody else loses the election while the lock lives
	ok, err = q.TryDumpLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	want := []byte("world,district,ward_number\n")
	require.NoError(t, q.CacheDump(ctx, want))

	body, err = q.CachedDump(ctx)
	require.NoError(t, err)
	require.Equal(t, want, body)
}
