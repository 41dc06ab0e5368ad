// Package api provides the HTTP API for observing the agent.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/sentinel/internal/brain"
	"github.com/talgya/sentinel/internal/goals"
	"github.com/talgya/sentinel/internal/ratelimit"
)

// Link reports the state of the game connection.
type Link interface {
	Connected() bool
}

// Server serves the agent state over HTTP.
type Server struct {
	Brain    *brain.Brain
	Link     Link         // Optional
	Save     func() error // Backs POST /api/v1/snapshot. Nil = snapshot disabled.
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	started time.Time
	srv     *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	adminLimiter := ratelimit.New(30, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/goals", s.adminOnly(s.handleGoals))
	mux.HandleFunc("/api/v1/ledger", s.handleLedger)
	mux.HandleFunc("/api/v1/ledger/", s.handleLedgerEntry)
	mux.HandleFunc("/api/v1/threats", s.handleThreats)
	mux.HandleFunc("/api/v1/social", s.handleSocial)
	mux.HandleFunc("/api/v1/memory", s.handleMemory)
	mux.HandleFunc("/api/v1/chat", s.handleChat)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/goals/current/", s.adminOnly(s.handleCurrentGoal))
	mux.HandleFunc("/api/v1/snapshot", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleSnapshot)))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"agent":  s.Brain.Status(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.Link != nil {
		status["connected"] = s.Link.Connected()
	}
	writeJSON(w, status)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		completed, failed := s.Brain.Goals.Stats()
		resp := map[string]any{
			"goals":     s.Brain.Goals.Snapshot(),
			"completed": completed,
			"failed":    failed,
		}
		if g, ok := s.Brain.Goals.PeekCurrent(); ok {
			resp["current"] = g.ID
		}
		writeJSON(w, resp)

	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
			Parent      string `json:"parent,omitempty"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		p, ok := parsePriority(req.Priority)
		if !ok {
			http.Error(w, "unknown priority "+strconv.Quote(req.Priority), http.StatusBadRequest)
			return
		}

		g := goals.New(req.Name, req.Description, p)
		var (
			id  string
			err error
		)
		if req.Parent != "" {
			id, err = s.Brain.Goals.AddSubgoal(req.Parent, g)
		} else {
			id, err = s.Brain.Goals.Submit(g)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("goal submitted via API", "id", id, "name", req.Name, "priority", p)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCurrentGoal serves POST /api/v1/goals/current/{complete,fail}.
func (s *Server) handleCurrentGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var (
		g  goals.Goal
		ok bool
	)
	switch action := strings.TrimPrefix(r.URL.Path, "/api/v1/goals/current/"); action {
	case "complete":
		g, ok = s.Brain.Goals.Complete()
	case "fail":
		g, ok = s.Brain.Goals.Fail()
	default:
		http.Error(w, "unknown action "+strconv.Quote(action), http.StatusNotFound)
		return
	}
	if !ok {
		http.Error(w, "no active goal", http.StatusConflict)
		return
	}
	slog.Info("goal closed via API", "name", g.Name, "status", g.Status)
	writeJSON(w, map[string]any{"goal": g})
}

func parsePriority(name string) (goals.Priority, bool) {
	if name == "" {
		return goals.Medium, true
	}
	for p := goals.Critical; p.Valid(); p++ {
		if strings.EqualFold(p.String(), name) {
			return p, true
		}
	}
	return 0, false
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"entries":      s.Brain.Ledger.Entries(),
		"total_trades": s.Brain.Ledger.TotalTrades(),
		"summary":      s.Brain.Ledger.Summary(),
	})
}

// handleLedgerEntry serves GET /api/v1/ledger/:player.
func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimPrefix(r.URL.Path, "/api/v1/ledger/")
	if player == "" {
		s.handleLedger(w, r)
		return
	}
	e, ok := s.Brain.Ledger.Entry(player)
	if !ok {
		http.Error(w, "unknown player", http.StatusNotFound)
		return
	}
	resp := map[string]any{"player": player, "entry": e}
	if item := r.URL.Query().Get("item"); item != "" {
		qty := 1
		if v, err := strconv.Atoi(r.URL.Query().Get("qty")); err == nil && v > 0 {
			qty = min(v, brain.MaxRequestQty)
		}
		resp["decision"] = s.Brain.Ledger.EvaluateRequest(player, item, qty)
	}
	writeJSON(w, resp)
}

func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"current":  s.Brain.LastThreats(),
		"recent":   s.Brain.Threats.Recent(),
		"accuracy": s.Brain.Threats.Accuracy(),
	}
	if t, ok := s.Brain.Threats.MostUrgent(); ok {
		resp["most_urgent"] = t
	}
	writeJSON(w, resp)
}

func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"profiles": s.Brain.Social.Profiles(),
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	n := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && v > 0 {
		n = min(v, 200)
	}
	resp := map[string]any{
		"episodes":  s.Brain.Memory.Recent(n),
		"important": s.Brain.Memory.Important(5),
		"total":     s.Brain.Memory.Len(),
	}
	if home, ok := s.Brain.Memory.Home(); ok {
		resp["home"] = home
	}
	writeJSON(w, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"lines": s.Brain.RecentChat(20)})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Save == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if err := s.Save(); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick":    s.Brain.Status().Tick,
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
