package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/api/metrics"
	"github.com/paissahouse/paissadb/store"
)

var csvDumpHeader = []string{
	"id", "world", "district", "ward_number", "plot_number", "house_size",
	"lotto_entries", "price", "first_seen", "last_seen", "is_owned",
	"owner_name_hash", "owner_name_has_space", "lotto_phase", "lotto_phase_until",
}

// GetCSVDump serves a CSV snapshot of the full plot-state history. The
// dump is expensive, so one process builds it at a time and the body is
// cached in redis for the duration of the lock window.
func GetCSVDump(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cached, err := eventQueue.CachedDump(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to read cached dump", err))
		return
	}
	if cached != nil {
		metrics.CSVDumpsTotal.WithLabelValues("cache_hit").Inc()
		serveCSV(w, cached)
		return
	}

	locked, err := eventQueue.TryDumpLock(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to take dump lock", err))
		return
	}
	if !locked {
		// another process is building the dump right now
		metrics.CSVDumpsTotal.WithLabelValues("lock_busy").Inc()
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "dump in progress, retry shortly")
		return
	}

	start := time.Now()
	body, err := buildCSVDump(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to build csv dump", err))
		return
	}
	metrics.CSVDumpBuildDuration.Observe(time.Since(start).Seconds())
	metrics.CSVDumpsTotal.WithLabelValues("built").Inc()

	if err := eventQueue.CacheDump(ctx, body); err != nil {
		slog.Warn("failed to cache csv dump", "error", err)
	}
	serveCSV(w, body)
}

func buildCSVDump(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvDumpHeader); err != nil {
		return nil, err
	}

	err := store.EachDumpRow(ctx, config.PgPool, func(row store.DumpRow) error {
		return cw.Write([]string{
			strconv.FormatInt(row.ID, 10),
			csvString(row.World),
			csvString(row.District),
			strconv.Itoa(row.WardNumber),
			strconv.Itoa(row.PlotNumber),
			csvString(row.HouseSize),
			csvInt(row.LottoEntries),
			csvInt(row.Price),
			csvFloat(row.FirstSeen),
			csvFloat(row.LastSeen),
			strconv.FormatBool(row.IsOwned),
			csvString(row.OwnerNameHash),
			csvBool(row.OwnerNameHasSpace),
			csvInt((*int)(row.LottoPhase)),
			csvInt64(row.LottoPhaseUntil),
		})
	})
	if err != nil {
		return nil, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func serveCSV(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="paissadb.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Nullable columns render as empty CSV fields.

func csvString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func csvInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func csvInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func csvBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
