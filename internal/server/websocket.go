//go:build !js || !wasm

package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const websocketCreateType = "response.create"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// responsesWebSocketHandler serves GET /v1/responses/ws. Each text message
// of type response.create starts one response; its events come back as one
// text message each, in order.
func (s *Server) responsesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Warn().Err(err).Msg("Websocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		payload = bytes.TrimSpace(payload)
		if len(payload) == 0 {
			continue
		}

		if err := s.serveWebSocketCreate(r, conn, payload); err != nil {
			s.logger.Error().Err(err).Msg("Websocket write failed")
			return
		}
	}
}

// serveWebSocketCreate answers one create message. Only write failures are
// returned; request and upstream problems are reported as error events.
func (s *Server) serveWebSocketCreate(r *http.Request, conn *websocket.Conn, payload []byte) error {
	if typ := gjson.GetBytes(payload, "type").String(); typ != websocketCreateType {
		return writeWebSocketError(conn, http.StatusBadRequest, "invalid_request_error", "unsupported message type "+typ)
	}
	prompt, err := parseResponsesRequest(payload)
	if err != nil {
		return writeWebSocketError(conn, http.StatusBadRequest, "invalid_request_error", err.Error())
	}

	events, err := s.openStream(r.Context(), "responses.ws", prompt)
	if err != nil {
		var ue *upstreamError
		if errors.As(err, &ue) {
			defer ue.resp.Body.Close()
			body, _ := io.ReadAll(ue.resp.Body)
			return writeWebSocketError(conn, ue.resp.StatusCode, "upstream_error", strings.TrimSpace(string(body)))
		}
		return writeWebSocketError(conn, http.StatusServiceUnavailable, "upstream_error", err.Error())
	}

	for ev, err := range events {
		if err != nil {
			return writeWebSocketError(conn, http.StatusBadGateway, "upstream_error", err.Error())
		}
		b, err := ev.MarshalJSON()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
		if stream.IsTerminal(ev) {
			break
		}
	}
	return nil
}

func writeWebSocketError(conn *websocket.Conn, status int, errType, message string) error {
	d := newDoc(`{"type":"error"}`)
	d.set("status", status)
	d.set("error.type", errType)
	d.set("error.message", message)
	if d.err != nil {
		return d.err
	}
	return conn.WriteMessage(websocket.TextMessage, d.b)
}
