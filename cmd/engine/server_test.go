package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/engine"
	"solana-token-engine/internal/ingestion"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/storage/memory"
)

func testApp(t *testing.T) *app {
	t.Helper()
	l := ledger.New(memory.NewTransitionLogStore(), ledger.Options{})
	_, err := l.Accept(context.Background(), &domain.Decision{
		DecisionID: "d1", Mint: "mintA", Cycle: 1, Action: domain.ActionBuy, Price: 1, Size: 10, CreatedAt: 1,
	})
	require.NoError(t, err)

	list := ingestion.NewWatchlist(time.Hour, nil)
	list.Pin("mintA", domain.SourceWatchlist, "config")

	return &app{
		log:        zerolog.Nop(),
		startedAt:  time.Now(),
		ledger:     l,
		watchlist:  list,
		killSwitch: engine.NewKillSwitch(3, zerolog.Nop()),
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(newMux(testApp(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body.Status)
	assert.Equal(t, int64(1), body.LedgerSeq)
	assert.Equal(t, 1, body.Watchlist)
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "PENDING_OPEN", body.Positions[0].State)
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(testApp(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestKillSwitchEndpoint(t *testing.T) {
	a := testApp(t)
	mux := newMux(a)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/killswitch?reason=maintenance", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st KillSwitchStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Active)
	assert.Equal(t, "maintenance", st.Reason)
	assert.True(t, a.killSwitch.IsActive())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Contains(t, rec.Body.String(), `"status":"halted"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/killswitch", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, a.killSwitch.IsActive())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/killswitch", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
