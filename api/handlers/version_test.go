package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paissahouse/paissadb/api/handlers"
)

func TestPaissa_Handlers_GetVersion(t *testing.T) {
	handlers.SetBuildInfo("1.2.3", "abc1234", "2026-01-02")
	t.Cleanup(func() { handlers.SetBuildInfo("dev", "none", "unknown") })

	rec := httptest.NewRecorder()
	handlers.GetVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, handlers.VersionResponse{
		Version: "1.2.3",
		Commit:  "abc1234",
		Date:    "2026-01-02",
	}, resp)
}
