package statussrv

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/pool"
	"github.com/samettonyali/gross/internal/registry"
)

func noop(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {}

func TestHealthzReturnsOK(t *testing.T) {
	s := New(registry.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestStatusReportsRegisteredPools(t *testing.T) {
	reg := registry.New()
	reg.Add(registry.Entry{Name: "greylist", Pool: pool.New("greylist", noop, 1, 2, nil)})

	s := New(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Pools []struct {
			Name string `json:"name"`
		} `json:"pools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Pools, 1)
	assert.Equal(t, "greylist", body.Pools[0].Name)
}
