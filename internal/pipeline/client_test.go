package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/toolcall"
)

func TestQueryDecodesOrderedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, QueryPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, float64(5), got["limit"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"ocean_proximity":"INLAND","value":150000},{"ocean_proximity":"NEAR BAY","value":300000}],"count":2}`))
	}))
	defer srv.Close()

	c := New(srv.URL, log.NewNop())
	rs, err := c.Query(context.Background(), toolcall.Params{"limit": 5})
	require.NoError(t, err)

	assert.Equal(t, 2, rs.Count)
	require.Len(t, rs.Result, 2)
	assert.Equal(t, "ocean_proximity", rs.Result[0][0].Name, "payload column order preserved")
	assert.Equal(t, "INLAND", rs.Result[0].Get("ocean_proximity"))
	assert.Equal(t, float64(150000), rs.Result[0].Get("value"))
}

func TestStatsPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"result":[],"count":0}`))
	}))
	defer srv.Close()

	c := New(srv.URL, log.NewNop())
	rs, err := c.Stats(context.Background(), toolcall.Params{"group_by": "ocean_proximity"})
	require.NoError(t, err)
	assert.Equal(t, StatsPath, gotPath)
	assert.Empty(t, rs.Result)
}

func TestUnreachableWrapsSentinel(t *testing.T) {
	// A closed server port gives a connection failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, log.NewNop())
	_, err := c.Query(context.Background(), toolcall.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "port 8000")
}

func TestEmbeddedErrorNotInspected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[],"error":"Unknown column: bogus"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, log.NewNop())
	rs, err := c.Stats(context.Background(), toolcall.Params{"group_by": "bogus"})
	require.NoError(t, err, "body-level errors are the caller's business")
	assert.Equal(t, "Unknown column: bogus", rs.Error)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HealthPath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, log.NewNop())
	assert.True(t, c.Healthy(context.Background()))

	srv.Close()
	assert.False(t, c.Healthy(context.Background()))
}
