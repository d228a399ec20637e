package http

import (
	"encoding/json"
	"errors"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
)

type loginRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Role domain.Role `json:"role"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	granted, err := s.deps.Auth.Login(role, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Warn("login rejected", "role", role)
			sharedobs.WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("login accepted", "role", granted)
	sharedobs.WriteJSON(w, http.StatusOK, loginResponse{Role: granted})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	display := domain.NoTelemetry
	if s.deps.Telemetry != nil {
		if reading, ok := s.deps.Telemetry.Latest(); ok {
			display = reading.Display()
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, display)
}

// requireAuthority gates next behind HTTP Basic credentials for the
// authority role.
func (s *Server) requireAuthority(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="waveguard"`)
			sharedobs.WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: "credentials required"})
			return
		}
		if _, err := s.deps.Auth.Login(domain.RoleAuthority, user, pass); err != nil {
			s.logger.Warn("authority websocket rejected", "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="waveguard"`)
			sharedobs.WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		next(w, r)
	}
}
