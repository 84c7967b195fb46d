package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/paissahouse/paissadb/api/handlers"
	apitesting "github.com/paissahouse/paissadb/api/testing"
	"github.com/paissahouse/paissadb/paissa"
)

// routedRequest builds a GET request carrying chi URL params so the
// handlers can be called without a full router.
func routedRequest(t *testing.T, target string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPaissa_Handlers_GetWorlds(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	seedGamedata(t, pool)

	rec := httptest.NewRecorder()
	handlers.GetWorlds(rec, httptest.NewRequest(http.MethodGet, "/worlds", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var worlds []paissa.WorldSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &worlds))
	require.Equal(t, []paissa.WorldSummary{
		{ID: 74, Name: "Coeurl", DatacenterID: 8, DatacenterName: "Crystal"},
		{ID: 81, Name: "Zalera", DatacenterID: 8, DatacenterName: "Crystal"},
	}, worlds)
}

func TestPaissa_Handlers_GetWorldDetail(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	seedGamedata(t, pool)

	insertState(t, pool, openState(0, 0, 2000, 2500))
	insertState(t, pool, ownedState(0, 1, 1200, 1200, "Alice Smith"))
	lavender := openState(2, 5, 1500, 1500)
	lavender.DistrictID = 340
	insertState(t, pool, lavender)

	t.Run("rolls up districts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetWorldDetail(rec, routedRequest(t, "/worlds/74", map[string]string{"worldID": "74"}))
		require.Equal(t, http.StatusOK, rec.Code)

		var detail paissa.WorldDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		require.Equal(t, 74, detail.ID)
		require.Equal(t, "Coeurl", detail.Name)
		require.Equal(t, 2, detail.NumOpenPlots)
		require.Equal(t, float64(1500), detail.OldestPlotTime)

		require.Len(t, detail.Districts, 2)
		require.Equal(t, "Mist", detail.Districts[0].Name)
		require.Equal(t, 1, detail.Districts[0].NumOpenPlots)
		require.Equal(t, 1, detail.Districts[1].NumOpenPlots)
	})

	t.Run("world with no observations", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetWorldDetail(rec, routedRequest(t, "/worlds/81", map[string]string{"worldID": "81"}))
		require.Equal(t, http.StatusOK, rec.Code)

		var detail paissa.WorldDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		require.Zero(t, detail.NumOpenPlots)
		require.Len(t, detail.Districts, 2)
	})

	t.Run("unknown world", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetWorldDetail(rec, routedRequest(t, "/worlds/999", map[string]string{"worldID": "999"}))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"error": "world not found"}`, rec.Body.String())
	})

	t.Run("malformed world id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetWorldDetail(rec, routedRequest(t, "/worlds/coeurl", map[string]string{"worldID": "coeurl"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"error": "world id must be an integer"}`, rec.Body.String())
	})
}

func TestPaissa_Handlers_GetDistrictDetail(t *testing.T) {
	pool := apitesting.SetupTestDB(t, testDB)
	seedGamedata(t, pool)

	// plot (0,0) sold between 1900 and 2000, then reopened
	insertState(t, pool, ownedState(0, 0, 1000, 1900, "Alice Smith"))
	insertState(t, pool, openState(0, 0, 2000, 2500))
	// plot (0,1) open for all of recorded history
	insertState(t, pool, openState(0, 1, 1500, 1500))
	// plot (0,2) owned, never listed
	insertState(t, pool, ownedState(0, 2, 1000, 3000, "Bob Toughs"))

	t.Run("lists open plots with open-time bounds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetDistrictDetail(rec, routedRequest(t, "/worlds/74/339",
			map[string]string{"worldID": "74", "districtID": "339"}))
		require.Equal(t, http.StatusOK, rec.Code)

		var detail paissa.DistrictDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		require.Equal(t, 339, detail.ID)
		require.Equal(t, "Mist", detail.Name)
		require.Equal(t, 2, detail.NumOpenPlots)
		require.Len(t, detail.OpenPlots, 2)

		reopened := detail.OpenPlots[0]
		require.Equal(t, 0, reopened.PlotNumber)
		require.Equal(t, float64(1900), reopened.EstTimeOpenMin)
		require.Equal(t, float64(2000), reopened.EstTimeOpenMax)
		require.Equal(t, 562_500, reopened.Price)

		firstKnown := detail.OpenPlots[1]
		require.Equal(t, 1, firstKnown.PlotNumber)
		require.Zero(t, firstKnown.EstTimeOpenMin)
		require.Equal(t, float64(1500), firstKnown.EstTimeOpenMax)
	})

	t.Run("unknown district", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetDistrictDetail(rec, routedRequest(t, "/worlds/74/900",
			map[string]string{"worldID": "74", "districtID": "900"}))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"error": "district not found"}`, rec.Body.String())
	})

	t.Run("malformed district id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetDistrictDetail(rec, routedRequest(t, "/worlds/74/mist",
			map[string]string{"worldID": "74", "districtID": "mist"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"error": "district id must be an integer"}`, rec.Body.String())
	})

	t.Run("unknown world checked before district", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handlers.GetDistrictDetail(rec, routedRequest(t, "/worlds/999/339",
			map[string]string{"worldID": "999", "districtID": "339"}))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"error": "world not found"}`, rec.Body.String())
	})
}
