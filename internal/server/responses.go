package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/assemble"
	"github.com/dvcrn/responses-bridge/internal/pipeline"
	"github.com/dvcrn/responses-bridge/internal/stream"
)

// upstreamError is a non-2xx backend answer, relayed to the client as is.
type upstreamError struct {
	resp *http.Response
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.resp.StatusCode)
}

// openStream sends p to the backend and returns the normalized event
// sequence of its answer. The caller must drain or abandon the sequence
// before returning from the handler; the upstream body is closed when the
// sequence ends.
func (s *Server) openStream(ctx context.Context, endpoint string, p Prompt) (iter.Seq2[stream.Event, error], error) {
	if p.Model == "" {
		p.Model = s.cfg.DefaultModel
	}
	up, err := s.buildUpstreamRequest(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	s.logger.Info().
		Str("endpoint", endpoint).
		Str("backend", s.cfg.Backend).
		Str("model", p.Model).
		Int("message_count", len(p.Messages)).
		Int("tool_count", len(p.Tools)).
		Bool("stream", p.Stream).
		Msg("Processing request")

	resp, err := s.makeUpstreamRequestWithRetry(ctx, up)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &upstreamError{resp: resp}
	}

	events := pipeline.Events(ctx, resp.Body, pipeline.Config{
		Provider: s.cfg.Provider(),
		Framing:  s.cfg.Framing(),
		Stream: stream.Config{
			Model:    p.Model,
			Markdown: s.cfg.Markdown(),
			IDs:      s.ids,
			Now:      s.now,
		},
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	info := newStreamInfo(endpoint, s.cfg.Backend, p.Model, s.now())
	return func(yield func(stream.Event, error) bool) {
		defer resp.Body.Close()
		for ev, err := range s.track(info, events) {
			if !yield(ev, err) {
				return
			}
		}
	}, nil
}

// writeOpenError reports a failure of openStream.
func (s *Server) writeOpenError(w http.ResponseWriter, err error) {
	var ue *upstreamError
	if errors.As(err, &ue) {
		s.relayUpstreamError(w, ue.resp)
		return
	}
	s.logger.Error().Err(err).Msg("Error making request to upstream backend")
	s.writeError(w, http.StatusServiceUnavailable, "upstream_error", "Failed to communicate with upstream API: "+err.Error())
}

// relayUpstreamError copies a backend error response to the client.
func (s *Server) relayUpstreamError(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading error response body")
	}
	s.logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Str("response_body", truncate(string(responseBody), 1200)).
		Msg("Received error response from upstream API")

	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(responseBody); err != nil {
		s.logger.Error().Err(err).Msg("Error writing error response body to client")
	}
}

func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading request body")
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	prompt, err := parseResponsesRequest(body)
	if err != nil {
		s.logger.Debug().Err(err).Str("body_preview", truncate(string(body), 1200)).Msg("Rejected responses request")
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	events, err := s.openStream(r.Context(), "responses", prompt)
	if err != nil {
		s.writeOpenError(w, err)
		return
	}

	if !prompt.Stream {
		resp, err := assemble.Assemble(events)
		if err != nil {
			s.logger.Error().Err(err).Msg("Upstream stream failed")
			s.writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	out := s.startSSE(w)
	if err := pipeline.WriteSSE(out, events); err != nil {
		s.logger.Error().Err(err).Msg("Error streaming responses events")
	}
}

// startSSE writes the event-stream headers and returns a writer that flushes
// after every write when the ResponseWriter supports it.
func (s *Server) startSSE(w http.ResponseWriter) io.Writer {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Warn().Msg("ResponseWriter does not support flushing - streaming may be buffered")
		return w
	}
	flusher.Flush()
	return sseFlushWriter{w: w, f: flusher}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(truncated)"
}
