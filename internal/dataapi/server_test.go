package dataapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/store"
)

const testCSV = `longitude,latitude,median_house_value,total_bedrooms,ocean_proximity,households
-122.23,37.88,452600,129,NEAR BAY,126
-122.22,37.86,358500,1106,NEAR BAY,1138
-120.51,35.48,128300,541,INLAND,472
-118.39,33.89,483100,310,NEAR OCEAN,295
-121.92,37.29,229200,,INLAND,606
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "housing.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	db, err := store.Open(filepath.Join(dir, "housing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db, store.TableName(csvPath), log.NewNop())
	kb := knowledge.NewBase(dir)

	_, err = Ingest(context.Background(), st, kb, csvPath)
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:  log.NewNop(),
		Store:   st,
		KB:      kb,
		CSVPath: csvPath,
	})
	require.NoError(t, err)
	return srv, dir
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeTool(t *testing.T, w *httptest.ResponseRecorder) toolResponse {
	t.Helper()
	var resp toolResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestQueryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tools/housing_query",
		`{"max_price":300000,"sort_by":"median_house_value"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeTool(t, w)
	assert.Empty(t, resp.Error)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, float64(128300), resp.Result[0].Get("median_house_value"))
	assert.Equal(t, float64(229200), resp.Result[1].Get("median_house_value"))
}

func TestQueryPreservesColumnOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tools/housing_query", `{"limit":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	// First key in the JSON object must be the table's first column.
	body := w.Body.String()
	assert.Less(t, strings.Index(body, `"longitude"`), strings.Index(body, `"ocean_proximity"`))
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tools/housing_stats",
		`{"group_by":"ocean_proximity","agg_type":"count"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeTool(t, w)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 3, resp.Count)
}

func TestStatsUnknownColumn(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tools/housing_stats",
		`{"group_by":"no_such_column"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeTool(t, w)
	assert.Equal(t, "Unknown column: no_such_column", resp.Error)
	assert.Empty(t, resp.Result)
}

func TestMalformedBodyStays200(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tools/housing_query", `{broken`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeTool(t, w)
	assert.Contains(t, resp.Error, "invalid request body")
}

func TestSchemaEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Filename     string            `json:"filename"`
		Columns      []string          `json:"columns"`
		Descriptions map[string]string `json:"column_descriptions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "housing.csv", resp.Filename)
	assert.Len(t, resp.Columns, 6)
	assert.Contains(t, resp.Columns, "median_house_value")
	assert.Contains(t, resp.Descriptions["ocean_proximity"], "Possible values")
}

func TestGenerateContextRebuildsKB(t *testing.T) {
	srv, dir := newTestServer(t)

	// Clobber the knowledge base, then ask the service to regenerate it.
	kbPath := filepath.Join(dir, knowledge.FileName)
	require.NoError(t, os.Remove(kbPath))

	w := do(t, srv, http.MethodPost, "/ingest/generate_context", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.Rows)
	assert.Equal(t, 6, resp.Columns)

	_, err := os.Stat(kbPath)
	assert.NoError(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "housing", resp["table"])
	assert.Equal(t, "housing.csv", resp["csv_source"])
	assert.Equal(t, "connected", resp["database"])
}
