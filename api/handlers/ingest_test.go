package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/paissahouse/paissadb/api/handlers"
	apitesting "github.com/paissahouse/paissadb/api/testing"
	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/queue"
	"github.com/paissahouse/paissadb/store"
)

func wardObservation(t *testing.T, serverTS float64, worldID int) json.RawMessage {
	t.Helper()
	entries := make([]map[string]any, 60)
	for i := range entries {
		entries[i] = map[string]any{
			"HousePrice":      1_000_000,
			"InfoFlags":       0,
			"HouseAppeals":    []int{1, 2, 3},
			"EstateOwnerName": "",
		}
	}
	raw, err := json.Marshal(map[string]any{
		"event_type":       "HOUSING_WARD_INFO",
		"client_timestamp": serverTS + 1,
		"server_timestamp": serverTS,
		"LandIdent": map[string]any{
			"LandId":          0,
			"WardNumber":      4,
			"TerritoryTypeId": 339,
			"WorldId":         worldID,
		},
		"HouseInfoEntries": entries,
		"PurchaseType":     2,
		"TenantType":       3,
	})
	require.NoError(t, err)
	return raw
}

func lotteryObservation(t *testing.T, clientTS float64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event_type":       "LOTTERY_INFO",
		"client_timestamp": clientTS,
		"WorldId":          74,
		"DistrictId":       339,
		"WardId":           4,
		"PlotId":           3,
		"PurchaseType":     2,
		"TenantType":       2,
		"AvailabilityType": 1,
		"PhaseEndsAt":      1700000000,
		"EntryCount":       3,
	})
	require.NoError(t, err)
	return raw
}

func ingestRequest(t *testing.T, cid int64, observations ...json.RawMessage) *http.Request {
	t.Helper()
	body, err := json.Marshal(observations)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	return req.WithContext(handlers.SetSweeperInContext(req.Context(), cid))
}

func decodeIngestResponse(t *testing.T, rec *httptest.ResponseRecorder) handlers.IngestResponse {
	t.Helper()
	var resp handlers.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPaissa_Handlers_PostIngest(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	client := apitesting.SetupTestRedis(t, testRedis)
	handlers.InitQueue()
	seedGamedata(t, pool)
	ctx := t.Context()

	sweeper := paissa.Sweeper{ID: 705396699, Name: "Blue Sky", WorldID: 74}
	require.NoError(t, store.UpsertSweeper(ctx, pool, sweeper))
	_, err := pool.Exec(ctx, `UPDATE sweepers SET last_seen = now() - interval '1 hour' WHERE id = $1`, sweeper.ID)
	require.NoError(t, err)

	q := queue.New(client)
	now := float64(time.Now().Unix())

	t.Run("queues a ward snapshot", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, sweeper.ID, wardObservation(t, now-30, 74)))
		require.Equal(t, http.StatusAccepted, rec.Code)

		resp := decodeIngestResponse(t, rec)
		require.Equal(t, "OK", resp.Message)
		require.Equal(t, 1, resp.Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(60), length)

		var eventCount int
		err = pool.QueryRow(ctx, `SELECT count(*) FROM events WHERE sweeper_id = $1 AND event_type = 'HOUSING_WARD_INFO'`, sweeper.ID).
			Scan(&eventCount)
		require.NoError(t, err)
		require.Equal(t, 1, eventCount)

		var lastSeen time.Time
		require.NoError(t, pool.QueryRow(ctx, `SELECT last_seen FROM sweepers WHERE id = $1`, sweeper.ID).Scan(&lastSeen))
		require.WithinDuration(t, time.Now(), lastSeen, time.Minute)
	})

	t.Run("replay dedups at the queue but still audits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, sweeper.ID, wardObservation(t, now-30, 74)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 1, decodeIngestResponse(t, rec).Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(60), length)

		var eventCount int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&eventCount))
		require.Equal(t, 2, eventCount)
	})

	t.Run("queues a lottery reading", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, sweeper.ID, lotteryObservation(t, now-5)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 1, decodeIngestResponse(t, rec).Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(61), length)

		payload, err := q.TakePayload(ctx, paissa.LotteryInfoDedupKey(74, 339, 4, 3))
		require.NoError(t, err)
		require.NotNil(t, payload)

		var entry paissa.PlotStateEntry
		require.NoError(t, json.Unmarshal(payload, &entry))
		require.Equal(t, 3, *entry.LottoEntries)
		require.Equal(t, paissa.LotteryPhaseAvailable, *entry.LottoPhase)
	})
}

func TestPaissa_Handlers_PostIngest_Drops(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	client := apitesting.SetupTestRedis(t, testRedis)
	handlers.InitQueue()
	seedGamedata(t, pool)
	ctx := t.Context()

	require.NoError(t, store.UpsertSweeper(ctx, pool, paissa.Sweeper{ID: 1, Name: "Blue Sky", WorldID: 74}))
	q := queue.New(client)
	now := float64(time.Now().Unix())

	t.Run("future timestamps", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1, wardObservation(t, now+120, 74)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Zero(t, decodeIngestResponse(t, rec).Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Zero(t, length)

		var eventCount int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&eventCount))
		require.Zero(t, eventCount)
	})

	t.Run("nulled ward data", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1, wardObservation(t, now-30, 0)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Zero(t, decodeIngestResponse(t, rec).Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Zero(t, length)
	})

	t.Run("mixed batch keeps the valid observation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1,
			wardObservation(t, now+120, 74),
			lotteryObservation(t, now-5)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 1, decodeIngestResponse(t, rec).Accepted)

		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), length)
	})

	t.Run("skew boundary sits at ten seconds", func(t *testing.T) {
		base := float64(1_700_000_000)
		handlers.SetClock(clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)))
		t.Cleanup(func() { handlers.SetClock(clockwork.NewRealClock()) })

		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1, lotteryObservation(t, base+9.999)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 1, decodeIngestResponse(t, rec).Accepted)

		rec = httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1, lotteryObservation(t, base+10.001)))
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Zero(t, decodeIngestResponse(t, rec).Accepted)
	})
}

func TestPaissa_Handlers_PostIngest_Rejects(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	client := apitesting.SetupTestRedis(t, testRedis)
	handlers.InitQueue()
	seedGamedata(t, pool)
	ctx := t.Context()

	require.NoError(t, store.UpsertSweeper(ctx, pool, paissa.Sweeper{ID: 1, Name: "Blue Sky", WorldID: 74}))
	q := queue.New(client)
	now := float64(time.Now().Unix())

	requireNothingQueued := func(t *testing.T) {
		t.Helper()
		length, err := q.Len(ctx)
		require.NoError(t, err)
		require.Zero(t, length)

		var eventCount int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&eventCount))
		require.Zero(t, eventCount)
	}

	t.Run("unauthenticated", func(t *testing.T) {
		body, err := json.Marshal([]json.RawMessage{wardObservation(t, now-30, 74)})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		requireNothingQueued(t)
	})

	t.Run("body is not an array", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(wardObservation(t, now-30, 74)))
		req = req.WithContext(handlers.SetSweeperInContext(req.Context(), 1))
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"error": "request body must be a JSON array of observations"}`, rec.Body.String())
		requireNothingQueued(t)
	})

	t.Run("unknown event type rejects the whole batch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1,
			wardObservation(t, now-30, 74),
			json.RawMessage(`{"event_type": "HOUSING_REQUEST", "client_timestamp": 1}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		requireNothingQueued(t)
	})

	t.Run("truncated ward snapshot", func(t *testing.T) {
		var ward map[string]any
		require.NoError(t, json.Unmarshal(wardObservation(t, now-30, 74), &ward))
		ward["HouseInfoEntries"] = ward["HouseInfoEntries"].([]any)[:59]
		raw, err := json.Marshal(ward)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handlers.PostIngest(rec, ingestRequest(t, 1, raw))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		requireNothingQueued(t)
	})
}
