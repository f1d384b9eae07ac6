package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
)

// statusServer serves /health, /metrics, /status and the kill switch.
type statusServer struct {
	http *http.Server
	log  zerolog.Logger
}

func newStatusServer(addr string, a *app, log zerolog.Logger) *statusServer {
	return &statusServer{
		http: &http.Server{
			Addr:              addr,
			Handler:           newMux(a),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

func (s *statusServer) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server error")
		}
	}()
}

func (s *statusServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/killswitch", a.handleKillSwitch)
	return mux
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status      string             `json:"status"`
	Uptime      string             `json:"uptime"`
	LedgerSeq   int64              `json:"ledger_seq"`
	RealizedPnL float64            `json:"realized_pnl"`
	Watchlist   int                `json:"watchlist"`
	KillSwitch  KillSwitchStatus   `json:"kill_switch"`
	Positions   []PositionResponse `json:"positions"`
}

type KillSwitchStatus struct {
	Active      bool       `json:"active"`
	Reason      string     `json:"reason,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

type PositionResponse struct {
	Mint        string   `json:"mint"`
	State       string   `json:"state"`
	Size        float64  `json:"size"`
	EntryPrice  *float64 `json:"entry_price,omitempty"`
	ExitPrice   *float64 `json:"exit_price,omitempty"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
}

func (a *app) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(a.startedAt).Truncate(time.Second).String(),
		LedgerSeq:   a.ledger.Seq(),
		RealizedPnL: a.ledger.RealizedPnLTotal(),
		Watchlist:   a.watchlist.Len(),
		KillSwitch:  a.killSwitchStatus(),
		Positions:   []PositionResponse{},
	}
	if resp.KillSwitch.Active {
		resp.Status = "halted"
	}
	for _, p := range a.ledger.Positions() {
		resp.Positions = append(resp.Positions, positionResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleKillSwitch reports on GET, trips on POST and resets on DELETE.
func (a *app) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "operator"
		}
		a.killSwitch.Activate(reason)
	case http.MethodDelete:
		a.killSwitch.Deactivate()
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, a.killSwitchStatus())
}

func (a *app) killSwitchStatus() KillSwitchStatus {
	active, reason, at := a.killSwitch.Status()
	st := KillSwitchStatus{Active: active, Reason: reason}
	if active && !at.IsZero() {
		st.ActivatedAt = &at
	}
	return st
}

func positionResponse(p *domain.Position) PositionResponse {
	return PositionResponse{
		Mint:        p.Mint,
		State:       string(p.State),
		Size:        p.Size,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   p.ExitPrice,
		RealizedPnL: p.RealizedPnL,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
