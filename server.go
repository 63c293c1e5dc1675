package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"i4.energy/across/loragw/lorae5"
)

// Executor runs modem commands on behalf of the HTTP API. *Gateway
// implements it.
type Executor interface {
	Execute(ctx context.Context, cmd lorae5.Command) (Result, error)
	Health() Health
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger  *slog.Logger
	Gateway Executor
	// Token, if set, must be presented as a bearer token on /command and /ws
	Token string
	// Stream serves GET /ws when set
	Stream http.Handler
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /command", s.authorized(s.handleCommand))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.Stream != nil {
		mux.HandleFunc("GET /ws", s.authorized(s.Stream.ServeHTTP))
	}
	mux.ServeHTTP(w, r)
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
				s.sendError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleCommand executes one modem command and returns its result
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Command == "" {
		s.sendError(w, "'command' field is required", http.StatusBadRequest)
		return
	}

	cmd, err := ParseCommand(req.Command, req.Arg)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.Gateway.Execute(r.Context(), cmd)
	if err != nil {
		s.Logger.Error("Command failed", "command", req.Command, "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Command executed", "command", req.Command, "attempts", result.Attempts)
	s.sendJSON(w, result, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.Gateway.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.sendJSON(w, health, status)
}

// statusFor maps a command error to an HTTP status code.
func statusFor(err error) int {
	var modemErr *lorae5.ModemError
	switch {
	case errors.Is(err, lorae5.ErrReplyTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &modemErr), lorae5.IsTransportError(err):
		return http.StatusBadGateway
	case errors.Is(err, lorae5.ErrBusy), errors.Is(err, lorae5.ErrAlreadyClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
