package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/store"
)

// GetWorlds lists every known world with its datacenter.
func GetWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := store.GetWorlds(r.Context(), config.PgPool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to list worlds", err))
		return
	}

	summaries := make([]paissa.WorldSummary, 0, len(worlds))
	for _, world := range worlds {
		summaries = append(summaries, paissa.WorldSummary{
			ID:             world.ID,
			Name:           world.Name,
			DatacenterID:   world.DatacenterID,
			DatacenterName: world.DatacenterName,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetWorldDetail returns the per-district open-plot rollup for one world.
func GetWorldDetail(w http.ResponseWriter, r *http.Request) {
	world, ok := worldFromRequest(w, r)
	if !ok {
		return
	}

	detail, err := store.GetWorldDetail(r.Context(), config.PgPool, world)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to build world detail", err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetDistrictDetail returns every open plot in one district with its
// open-time bounds.
func GetDistrictDetail(w http.ResponseWriter, r *http.Request) {
	world, ok := worldFromRequest(w, r)
	if !ok {
		return
	}

	districtID, err := strconv.Atoi(chi.URLParam(r, "districtID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "district id must be an integer")
		return
	}
	district, err := store.GetDistrict(r.Context(), config.PgPool, districtID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "district not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to load district", err))
		return
	}

	detail, err := store.GetDistrictDetail(r.Context(), config.PgPool, world, district)
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to build district detail", err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// worldFromRequest resolves the {worldID} URL param, writing the error
// response itself when the world is missing or the id is malformed.
func worldFromRequest(w http.ResponseWriter, r *http.Request) (paissa.World, bool) {
	worldID, err := strconv.Atoi(chi.URLParam(r, "worldID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "world id must be an integer")
		return paissa.World{}, false
	}

	world, err := store.GetWorld(r.Context(), config.PgPool, worldID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "world not found")
		return paissa.World{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, internalError("failed to load world", err))
		return paissa.World{}, false
	}
	return world, true
}
