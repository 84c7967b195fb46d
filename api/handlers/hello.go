package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/store"
)

// HelloRequest is the registration payload the plugin sends on login.
type HelloRequest struct {
	CID     int64  `json:"cid"`
	Name    string `json:"name"`
	World   string `json:"world"`
	WorldID int    `json:"worldId"`
}

// HelloResponse carries the session token used for ingest and
// websocket auth.
type HelloResponse struct {
	Message      string  `json:"message"`
	ServerTime   float64 `json:"server_time"`
	SessionToken string  `json:"session_token"`
}

// PostHello registers or refreshes a sweeper and issues a session token.
func PostHello(w http.ResponseWriter, r *http.Request) {
	var req HelloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CID == 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "cid and name are required")
		return
	}

	sweeper := paissa.Sweeper{ID: req.CID, Name: req.Name, WorldID: req.WorldID}
	if err := store.UpsertSweeper(r.Context(), config.PgPool, sweeper); err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to register sweeper", err))
		return
	}

	now := time.Now()
	token, err := IssueToken(req.CID, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to issue session token", err))
		return
	}

	writeJSON(w, http.StatusOK, HelloResponse{
		Message:      "OK",
		ServerTime:   unixSeconds(now),
		SessionToken: token,
	})
}
