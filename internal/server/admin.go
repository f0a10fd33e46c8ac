package server

import (
	"net/http"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/env"
	json "github.com/goccy/go-json"
)

// adminMiddleware checks for valid admin API key from either
// 'Authorization: Bearer <key>' or 'X-API-Key: <key>' headers.
func (s *Server) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminKey := s.cfg.AdminAPIKey
		if adminKey == "" {
			adminKey, _ = env.Get("ADMIN_API_KEY")
		}
		if adminKey == "" {
			s.logger.Error().Msg("ADMIN_API_KEY not configured")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		var providedToken string
		authHeader := r.Header.Get("Authorization")
		xAPIKeyHeader := r.Header.Get("X-API-Key")

		if authHeader != "" {
			// Expect "Bearer <token>" format, case-insensitive
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				s.logger.Warn().
					Str("method", r.Method).
					Str("uri", r.RequestURI).
					Str("remote_addr", r.RemoteAddr).
					Msg("Invalid Authorization header format for admin endpoint")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			providedToken = parts[1]
		} else if xAPIKeyHeader != "" {
			// Use the key from X-API-Key header directly
			providedToken = xAPIKeyHeader
		} else {
			s.logger.Warn().
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Msg("Missing required Authorization or X-API-Key header for admin endpoint")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Verify admin key
		if providedToken != adminKey {
			s.logger.Warn().
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid admin API key provided")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Admin authorized
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Msg("Admin request authorized")

		next(w, r)
	}
}

// credentialsHandler handles POST /admin/credentials
func (s *Server) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	updater, ok := s.credsFetcher.(credentials.KeyUpdater)
	if !ok {
		s.logger.Error().Str("source", s.credsFetcher.Source()).Msg("Credentials source is read-only")
		http.Error(w, "Key updates not supported by current credential source", http.StatusBadRequest)
		return
	}

	var reqBody struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(reqBody.APIKey) == "" {
		http.Error(w, "Missing required field: apiKey", http.StatusBadRequest)
		return
	}

	if err := updater.UpdateKey(strings.TrimSpace(reqBody.APIKey)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to update API key")
		http.Error(w, "Failed to update credentials", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Str("source", updater.Source()).Msg("API key updated successfully")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Credentials updated successfully",
	})
}

// credentialsStatusHandler handles GET /admin/credentials/status
func (s *Server) credentialsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, credentials.Describe(s.credsFetcher, s.cfg.Provider()))
}
