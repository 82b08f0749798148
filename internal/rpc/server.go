// Package rpc exposes the market maker engine over JSON-RPC 2.0 with an
// optional websocket event stream on /ws.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/LeJamon/goAMMd/internal/config"
)

// Server is the HTTP front end: JSON-RPC on /, health on /health and the
// websocket stream on /ws.
type Server struct {
	handler *Handler
	hub     *Hub
	log     *slog.Logger
	http    *http.Server
	cfg     config.ServerConfig
}

// NewServer wires the handler and optional hub into an http.Server. A nil
// hub disables the /ws endpoint.
func NewServer(cfg config.ServerConfig, handler *Handler, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{handler: handler, hub: hub, log: log, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRPC)
	mux.HandleFunc("/health", s.serveHealth)
	if hub != nil {
		mux.Handle("/ws", hub)
	}

	s.http = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	s.log.Info("rpc server listening", "addr", addr, "ws", s.hub != nil)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
		})
		return
	}
	if req.Method == "" {
		writeResponse(w, Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeInvalidRequest, Message: "missing method"},
			ID:      req.ID,
		})
		return
	}

	result, rpcErr := s.handler.Handle(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.log.Debug("rpc request failed", "method", req.Method,
			"code", rpcErr.Code, "err", rpcErr.Message)
		writeResponse(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	writeResponse(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
