// Package server exposes the riskgate contract over plain net/http.
// It is deliberately framework-free: JSON in, JSON out, one handler
// per operation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orionhq/riskgate/ledger"
	"github.com/orionhq/riskgate/orders"
	"github.com/orionhq/riskgate/risk"
	"github.com/orionhq/riskgate/store"
)

type Server struct {
	addr         string
	tickInterval time.Duration

	previewer  *orders.Previewer
	gatekeeper *orders.Gatekeeper
	ledger     *ledger.Ledger
	presets    *risk.PresetStore
	store      *store.Store
}

func New(addr string, tickInterval time.Duration, p *orders.Previewer, g *orders.Gatekeeper,
	l *ledger.Ledger, ps *risk.PresetStore, st *store.Store) *Server {
	return &Server{
		addr:         addr,
		tickInterval: tickInterval,
		previewer:    p,
		gatekeeper:   g,
		ledger:       l,
		presets:      ps,
		store:        st,
	}
}

// Run serves until ctx is canceled, driving the auto-session scheduler
// and the reconciliation sweep in the background.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	if s.tickInterval > 0 {
		go s.tickLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("riskgate listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) tickLoop(ctx context.Context) {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if started, _, err := s.ledger.Tick(); err != nil {
				log.Printf("auto-session tick: %v", err)
			} else if started {
				log.Printf("auto-session started")
			}
			if n, err := s.gatekeeper.Sync(ctx); err != nil {
				log.Printf("reservation sync: %v", err)
			} else if n > 0 {
				log.Printf("reservation sync: %d updated", n)
			}
		}
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders/preview", s.handlePreview)
	mux.HandleFunc("POST /orders/approve", s.handleApprove)
	mux.HandleFunc("POST /orders/cancel", s.handleCancel)
	mux.HandleFunc("POST /orders/sync", s.handleSync)

	mux.HandleFunc("GET /session", s.handleSessionStatus)
	mux.HandleFunc("POST /session/start", s.handleSessionStart)
	mux.HandleFunc("POST /session/stop", s.handleSessionStop)
	mux.HandleFunc("GET /session/log", s.handleSessionLog)
	mux.HandleFunc("POST /session/symbol_limit", s.handleSymbolLimitSet)
	mux.HandleFunc("GET /session/symbol_limits", s.handleSymbolLimits)
	mux.HandleFunc("POST /session/symbol_limit/delete", s.handleSymbolLimitDelete)
	mux.HandleFunc("GET /session/auto", s.handleAutoGet)
	mux.HandleFunc("POST /session/auto", s.handleAutoSet)
	mux.HandleFunc("POST /session/auto/tick", s.handleAutoTick)

	mux.HandleFunc("GET /preset", s.handlePresetGet)
	mux.HandleFunc("PATCH /preset", s.handlePresetPatch)
	mux.HandleFunc("POST /preset", s.handlePresetPatch)

	mux.HandleFunc("POST /cooloff", s.handleCooloff)
	mux.HandleFunc("POST /breaker/clear", s.handleBreakerClear)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req orders.Request
	if !readJSON(w, r, &req) {
		return
	}
	res, err := s.previewer.Preview(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req orders.Request
	if !readJSON(w, r, &req) {
		return
	}
	res, err := s.gatekeeper.Approve(r.Context(), req, r.URL.Query().Get("order_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order_id required"})
		return
	}
	if err := s.gatekeeper.Cancel(orderID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order_id": orderID})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	n, err := s.gatekeeper.Sync(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": n})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ledger.Summary()
	if err != nil {
		writeErr(w, err)
		return
	}
	if sum == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  sum.Status == ledger.SessionActive,
		"summary": sum,
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Budget      float64 `json:"budget"`
		DurationMin *int64  `json:"duration_min"`
		Note        string  `json:"note"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Budget <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "budget must be > 0"})
		return
	}
	id, err := s.ledger.Start(body.Budget, body.DurationMin, body.Note)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": id})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	id, stopped, err := s.ledger.Stop()
	if err != nil {
		writeErr(w, err)
		return
	}
	if !stopped {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stopped_session_id": id})
}

func (s *Server) handleSessionLog(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ledger.Summary()
	if err != nil {
		writeErr(w, err)
		return
	}
	if sum == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil, "rows": []any{}})
		return
	}
	rows, err := s.ledger.Reservations(sum.ID, 500)
	if err != nil {
		writeErr(w, err)
		return
	}
	totals := map[string]float64{}
	for _, st := range []string{ledger.StatusOpen, ledger.StatusSpent, ledger.StatusReleased} {
		v, err := s.ledger.SumBy(sum.ID, "", []string{st}, "amount")
		if err != nil {
			writeErr(w, err)
			return
		}
		totals[st] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sum.ID, "rows": rows, "totals": totals})
}

func (s *Server) handleSymbolLimitSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol     string   `json:"symbol"`
		MaxDollars *float64 `json:"max_dollars"`
		MaxShares  *float64 `json:"max_shares"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbol required"})
		return
	}
	if err := s.ledger.SetSymbolLimit(body.Symbol, body.MaxDollars, body.MaxShares); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSymbolLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.ledger.SymbolLimits()
	if errors.Is(err, ledger.ErrNoActiveSession) {
		writeJSON(w, http.StatusOK, map[string]any{"active": false, "limits": []any{}})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "limits": limits})
}

func (s *Server) handleSymbolLimitDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if err := s.ledger.DeleteSymbolLimit(body.Symbol); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAutoGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.ledger.AutoConfig()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleAutoSet(w http.ResponseWriter, r *http.Request) {
	var cfg ledger.AutoConfig
	if !readJSON(w, r, &cfg) {
		return
	}
	if err := s.ledger.SetAutoConfig(cfg); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAutoTick(w http.ResponseWriter, r *http.Request) {
	started, reason, err := s.ledger.Tick()
	if err != nil {
		writeErr(w, err)
		return
	}
	out := map[string]any{"ok": true, "started": started}
	if reason != "" {
		out["reason"] = reason
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePresetGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.presets.Current()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePresetPatch(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !readJSON(w, r, &fields) {
		return
	}
	p, err := s.presets.Patch(fields)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCooloff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if err := risk.SetCooloff(s.store, body.Active); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cooloff": body.Active})
}

func (s *Server) handleBreakerClear(w http.ResponseWriter, r *http.Request) {
	if err := risk.ClearCircuitBreaker(s.store); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("bad request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto status codes: malformed intents are
// 400s, everything else is a hard 500 (a failed audit or ledger write
// must surface, never silently degrade).
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, orders.ErrValidation) || errors.Is(err, ledger.ErrNoActiveSession) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
