package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Server ties the registry, the HTTP API and the WebSocket push channel
// together. Request/response traffic is plain JSON over HTTP; pushes go
// out over /ws sockets keyed by session token.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	registry *Registry
	hub      *Hub
	upgrader websocket.Upgrader
}

// New builds the full server: hub, registry and configured tables.
func New(cfg *Config, logger *log.Logger, clock quartz.Clock, seed int64) *Server {
	hub := NewHub(logger)
	registry := NewRegistry(cfg, logger, clock, seed, hub)
	hub.SetPresence(registry)
	return &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Bot clients connect from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Registry exposes the routing layer, mainly for tests.
func (s *Server) Registry() *Registry { return s.registry }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/join", s.handleJoin)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("POST /api/v1/action", s.handleAction)
	mux.HandleFunc("POST /api/v1/leave", s.handleLeave)
	mux.HandleFunc("POST /api/v1/sitout", s.handleSitOut)
	mux.HandleFunc("POST /api/v1/return", s.handleReturn)
	mux.HandleFunc("POST /api/v1/rebuy", s.handleRebuy)
	mux.HandleFunc("GET /api/v1/tables", s.handleTables)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Run serves until ctx is cancelled, then shuts down cleanly.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr(), Handler: s.Handler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		s.hub.Close()
		s.registry.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	payload := errorPayload(err)
	s.writeJSON(w, httpStatus(payload), payload)
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	err := json.NewDecoder(r.Body).Decode(&v)
	return v, err
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, err := decode[JoinRequest](r)
	if err != nil {
		s.writeError(w, errInvalidName("malformed join request"))
		return
	}
	resp, err := s.registry.Join(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := s.registry.State(r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req, err := decode[ActionRequest](r)
	if err != nil {
		s.writeError(w, errUnknownAction("malformed action request"))
		return
	}
	applied, err := s.registry.Action(req.Token, req.Action, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ActionResponse{Applied: applied})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	req, err := decode[TokenRequest](r)
	if err != nil {
		s.writeError(w, errInvalidName("malformed leave request"))
		return
	}
	stack, err := s.registry.Leave(req.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Forget(req.Token)
	s.writeJSON(w, http.StatusOK, LeaveResponse{FinalStack: stack})
}

func (s *Server) handleSitOut(w http.ResponseWriter, r *http.Request) {
	req, err := decode[TokenRequest](r)
	if err != nil {
		s.writeError(w, errInvalidName("malformed sit-out request"))
		return
	}
	if err := s.registry.SitOut(req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	req, err := decode[TokenRequest](r)
	if err != nil {
		s.writeError(w, errInvalidName("malformed return request"))
		return
	}
	if err := s.registry.Return(req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRebuy(w http.ResponseWriter, r *http.Request) {
	req, err := decode[RebuyRequest](r)
	if err != nil {
		s.writeError(w, errBuyInOutOfRange("malformed rebuy request"))
		return
	}
	stack, err := s.registry.Rebuy(req.Token, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RebuyResponse{Stack: stack})
}

func (s *Server) handleTables(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, TablesResponse{Tables: s.registry.Tables()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, errInvalidLimit("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	hands, err := s.registry.History(tableID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := HistoryResponse{TableID: tableID, Hands: hands}
	if resp.TableID == "" && len(s.registry.order) > 0 {
		resp.TableID = s.registry.order[0]
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWS upgrades the push channel. The token must belong to a seated
// player; the socket then receives that table's event stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	tableID, ok := s.registry.TableIDFor(token)
	if !ok {
		http.Error(w, "unknown token", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)
		return
	}
	s.hub.Attach(conn, token, tableID)
}
