package server

import (
	"net/http"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/dvcrn/responses-bridge/internal/config"
	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/obs"
	"github.com/dvcrn/responses-bridge/internal/stream"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// sseFlushWriter wraps a ResponseWriter to flush after each write.
type sseFlushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw sseFlushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.f.Flush()
	}
	return n, err
}

func (fw sseFlushWriter) Flush() {
	fw.f.Flush()
}

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Server struct {
	cfg          config.Config
	credsFetcher credentials.CredentialsFetcher
	httpClient   HTTPClient
	mux          *http.ServeMux
	logger       zerolog.Logger
	metrics      *obs.Metrics

	// streams holds the in-flight streams, keyed by request id.
	streams *haxmap.Map[string, *streamInfo]
	ids     stream.IDFunc
	now     func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(s *Server) { s.httpClient = c }
}

// WithMetrics records stream metrics on m.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithIDs sets the id generator of every stream; tests use
// stream.SequentialIDs.
func WithIDs(ids stream.IDFunc) Option {
	return func(s *Server) { s.ids = ids }
}

// WithClock sets the clock used for created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(cfg config.Config, logger zerolog.Logger, credsFetcher credentials.CredentialsFetcher, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		credsFetcher: credsFetcher,
		httpClient:   NewHTTPClient(),
		mux:          http.NewServeMux(),
		logger:       logger,
		streams:      haxmap.New[string, *streamInfo](),
		ids:          stream.RandomIDs,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/responses", s.responsesHandler)
	s.mux.HandleFunc("/v1/responses/ws", s.responsesWebSocketHandler)
	s.mux.HandleFunc("/v1/chat/completions", s.chatCompletionsHandler)
	s.mux.HandleFunc("/v1/models", s.modelsHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/admin/streams", s.adminMiddleware(s.streamsHandler))
	s.mux.HandleFunc("/admin/credentials", s.adminMiddleware(s.credentialsHandler))
	s.mux.HandleFunc("/admin/credentials/status", s.adminMiddleware(s.credentialsStatusHandler))
	s.mux.HandleFunc("/", s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

// apiError is the OpenAI-shaped error body.
type apiError struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiError{Error: apiErrorDetail{Message: message, Type: errType}}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
