package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dvollmer/homescope/internal/agent"
	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/pipeline"
	"github.com/dvollmer/homescope/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// httptest servers keep idle keep-alive conns briefly.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// newTestServer wires a full agent behind the API with a stub pipeline.
func newTestServer(t *testing.T, model *testutil.MockModel, pipelineHandler http.Handler) *Server {
	t.Helper()

	var gateway *pipeline.Client
	logger := log.NewNop()
	if pipelineHandler != nil {
		backend := httptest.NewServer(pipelineHandler)
		t.Cleanup(backend.Close)
		gateway = pipeline.New(backend.URL, logger)
	} else {
		// Closed port: unreachable.
		backend := httptest.NewServer(http.NotFoundHandler())
		backend.Close()
		gateway = pipeline.New(backend.URL, logger)
	}

	kb := knowledge.NewBase(t.TempDir())
	require.NoError(t, kb.Save(knowledge.Context{Filename: "housing.csv", Columns: map[string]string{}}))

	srv, err := NewServer(ServerConfig{
		Logger:          logger,
		Agent:           agent.New(model, gateway, kb, logger),
		Gateway:         gateway,
		ModelConfigured: true,
		CORSOrigins:     []string{"*"},
	})
	require.NoError(t, err)
	return srv
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestChatPlainText(t *testing.T) {
	model := testutil.NewMockModel("Hello! Ask me about houses.")
	srv := newTestServer(t, model, http.NotFoundHandler())

	w := postChat(t, srv, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello! Ask me about houses.", resp["response"])
}

func TestChatChartResponse(t *testing.T) {
	model := testutil.NewMockModel(`{"tool":"housing_stats","parameters":{"group_by":"ocean_proximity"}}`)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+pipeline.StatsPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"ocean_proximity":"INLAND","value":150000}],"count":1}`))
	})
	srv := newTestServer(t, model, mux)

	w := postChat(t, srv, `{"message":"plot average price by ocean proximity"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Response map[string]any `json:"response"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bar", resp.Response["mark"])
	assert.Contains(t, resp.Response, "$schema")
}

func TestChatPipelineDownStays200(t *testing.T) {
	// End-to-end scenario: gateway connection fails, HTTP status stays
	// success-class and the body names the companion service.
	model := testutil.NewMockModel(`{"tool":"housing_query","parameters":{"limit":5}}`)
	srv := newTestServer(t, model, nil)

	w := postChat(t, srv, `{"message":"find houses"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	text, ok := resp["response"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "pipeline")
	assert.Contains(t, text, "port 8000")
}

func TestChatInvalidBody(t *testing.T) {
	srv := newTestServer(t, testutil.NewMockModel("x"), http.NotFoundHandler())

	w := postChat(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatMissingMessage(t *testing.T) {
	srv := newTestServer(t, testutil.NewMockModel("x"), http.NotFoundHandler())

	w := postChat(t, srv, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "missing_message", resp.Error)
}

func TestHealthReportsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+pipeline.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := newTestServer(t, testutil.NewMockModel("x"), mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "online", resp["agent"])
	assert.Equal(t, modelLoaded, resp["model"])
	assert.Equal(t, pipelineOnline, resp["pipeline"])
}

func TestHealthPipelineOffline(t *testing.T) {
	srv := newTestServer(t, testutil.NewMockModel("x"), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, pipelineOffline, resp["pipeline"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, testutil.NewMockModel("x"), http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimitExhaustion(t *testing.T) {
	model := testutil.NewMockModel("hello")
	kb := knowledge.NewBase(t.TempDir())
	require.NoError(t, kb.Save(knowledge.Context{Filename: "housing.csv", Columns: map[string]string{}}))

	logger := log.NewNop()
	srv, err := NewServer(ServerConfig{
		Logger:          logger,
		Agent:           agent.New(model, pipeline.New("http://127.0.0.1:1", logger), kb, logger),
		ModelConfigured: true,
		RateBurst:       2,
	})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for range 3 {
		w := postChat(t, srv, `{"message":"hi"}`)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
