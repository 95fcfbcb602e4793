// Package server exposes the bridge to UI surfaces over HTTP.
//
//	GET  /ws              attach a surface (WebSocket, ?surface=popup|options|cli)
//	GET  /api/state       read-only BridgeState
//	POST /api/menu/click  {"itemId": "...", "url": "..."}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/five82/kdebridge/internal/menu"
	"github.com/five82/kdebridge/internal/protocol"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 64 * 1024
)

// Bridge is the core the server reads from and acts on. Implementations run
// each call on the event loop.
type Bridge interface {
	State(ctx context.Context) (protocol.BridgeState, error)
	ClickMenu(ctx context.Context, itemID, url string) error
}

// Options configures a Server.
type Options struct {
	Surfaces http.Handler
	Bridge   Bridge
	Logger   *log.Logger
}

// Server is the daemon's HTTP front end.
type Server struct {
	opts   Options
	logger *log.Logger
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

type clickRequest struct {
	ItemID string `json:"itemId"`
	URL    string `json:"url"`
}

// New returns a server for opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{opts: opts, logger: logger}
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.opts.Surfaces != nil {
		mux.Handle("GET /ws", s.opts.Surfaces)
	}
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/menu/click", s.handleMenuClick)
	return mux
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. WebSocket connections are hijacked and closed by their owner.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.logger,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[server] listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.opts.Bridge.State(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleMenuClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	err := s.opts.Bridge.ClickMenu(r.Context(), req.ItemID, req.URL)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, menu.ErrUnknownItem):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, menu.ErrDisabledItem):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, menu.ErrMissingURL):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("[server] write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
