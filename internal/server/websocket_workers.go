//go:build js && wasm

package server

import "net/http"

// Workers cannot hijack the connection; websocket clients get 501.
func (s *Server) responsesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotImplemented, "invalid_request_error", "websocket transport is not supported in this deployment")
}
