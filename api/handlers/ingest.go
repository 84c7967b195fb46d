package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/api/metrics"
	"github.com/paissahouse/paissadb/ffxiv"
	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/store"
)

// maxFutureSkew is how far ahead of the server clock an observation
// timestamp may be before the observation is discarded, in seconds.
const maxFutureSkew = 10

// IngestResponse reports how many observations of the batch passed
// validation. Queue-level dedup is not visible here.
type IngestResponse struct {
	Message  string `json:"message"`
	Accepted int    `json:"accepted"`
}

// PostIngest accepts a batch of observations from an authenticated
// sweeper, queues the normalized plot entries for reconciliation and
// records one audit row per accepted observation.
func PostIngest(w http.ResponseWriter, r *http.Request) {
	cid, ok := SweeperFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raws); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of observations")
		return
	}

	now := unixSeconds(clock.Now())

	var (
		entries          []paissa.KeyedEntry
		events           []paissa.Event
		droppedFuture    int
		droppedWorldZero int
	)
	for _, raw := range raws {
		packet, err := ffxiv.ParsePacket(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := packet.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ts := packet.Timestamp()
		if ts > now+maxFutureSkew {
			slog.Warn("skipping observation with timestamp too far in the future",
				"sweeper_id", cid, "timestamp", ts, "now", now)
			droppedFuture++
			continue
		}
		// the game server occasionally sends fully nulled ward data
		if ward, isWard := packet.(*ffxiv.HousingWardInfo); isWard && ward.LandIdent.WorldID == 0 {
			droppedWorldZero++
			continue
		}

		entries = append(entries, packet.StateEntries()...)
		events = append(events, paissa.Event{
			SweeperID: &cid,
			Timestamp: ts,
			EventType: packet.EventType(),
			Data:      strings.ReplaceAll(string(raw), "\x00", ""),
		})
	}

	queued, err := eventQueue.Admit(r.Context(), entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to queue observations", err))
		return
	}

	if err := store.InsertEvents(r.Context(), config.PgPool, events); err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to record observations", err))
		return
	}
	if err := store.TouchSweeper(r.Context(), config.PgPool, cid); err != nil {
		slog.Warn("failed to touch sweeper", "sweeper_id", cid, "error", err)
	}

	metrics.RecordIngestBatch(len(events), droppedFuture, droppedWorldZero)
	metrics.RecordIngestEntries(queued, len(entries)-queued)

	writeJSON(w, http.StatusAccepted, IngestResponse{Message: "OK", Accepted: len(events)})
}
