package server

import (
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/dvcrn/responses-bridge/internal/assemble"
	"github.com/dvcrn/responses-bridge/internal/stream"
)

const chatChunkTemplate = `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":null}]}`

// chatEncoder re-encodes Responses events as chat.completion.chunk payloads.
type chatEncoder struct {
	id      string
	model   string
	created int64

	// roleSent indicates whether the assistant role chunk was emitted
	roleSent     bool
	toolIndex    map[string]int // item id -> index in tool_calls
	sawToolCalls bool
}

func newChatEncoder(model string) *chatEncoder {
	return &chatEncoder{model: model, toolIndex: make(map[string]int)}
}

func (e *chatEncoder) chunk(fields ...kv) ([]byte, error) {
	d := newDoc(chatChunkTemplate)
	d.set("id", e.id)
	d.set("created", e.created)
	d.set("model", e.model)
	for _, f := range fields {
		d.set(f.key, f.value)
	}
	return d.b, d.err
}

type kv struct {
	key   string
	value any
}

// withRole prepends the role chunk when it has not been sent yet.
func (e *chatEncoder) withRole(chunk []byte, err error) ([][]byte, error) {
	if err != nil {
		return nil, err
	}
	if e.roleSent {
		return [][]byte{chunk}, nil
	}
	role, err := e.chunk(kv{"choices.0.delta.role", "assistant"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal role chunk: %w", err)
	}
	e.roleSent = true
	return [][]byte{role, chunk}, nil
}

// Encode returns the chunks ev maps to, possibly none.
func (e *chatEncoder) Encode(ev stream.Event) ([][]byte, error) {
	switch ev := ev.(type) {
	case stream.Created:
		e.id = "chatcmpl-" + ev.Response.ID
		e.created = ev.Response.CreatedAt
		if ev.Response.Model != "" {
			e.model = ev.Response.Model
		}
		return nil, nil

	case stream.ItemAdded:
		if ev.Item.Type != stream.ItemFunctionCall {
			return nil, nil
		}
		idx, ok := e.toolIndex[ev.Item.ID]
		if !ok {
			idx = len(e.toolIndex)
			e.toolIndex[ev.Item.ID] = idx
		}
		e.sawToolCalls = true
		return e.withRole(e.chunk(
			kv{"choices.0.delta.tool_calls.0.index", idx},
			kv{"choices.0.delta.tool_calls.0.id", ev.Item.CallID},
			kv{"choices.0.delta.tool_calls.0.type", "function"},
			kv{"choices.0.delta.tool_calls.0.function.name", ev.Item.Name},
			kv{"choices.0.delta.tool_calls.0.function.arguments", ""},
		))

	case stream.FunctionArgsDelta:
		idx, ok := e.toolIndex[ev.ItemID]
		if !ok {
			return nil, nil
		}
		return e.withRole(e.chunk(
			kv{"choices.0.delta.tool_calls.0.index", idx},
			kv{"choices.0.delta.tool_calls.0.function.arguments", ev.Delta},
		))

	case stream.TextDelta:
		return e.withRole(e.chunk(kv{"choices.0.delta.content", ev.Delta}))

	case stream.Completed:
		return e.final(ev.Response)

	case stream.Incomplete:
		return e.final(ev.Response)

	case stream.Failed:
		d := newDoc(`{"error":{"type":"upstream_error"}}`)
		if ev.Response.Error != nil {
			d.set("error.code", ev.Response.Error.Code)
			d.set("error.message", ev.Response.Error.Message)
		}
		return [][]byte{d.b}, d.err
	}
	return nil, nil
}

func (e *chatEncoder) final(resp stream.Response) ([][]byte, error) {
	usage := chatUsage(resp.Usage)
	b, err := e.chunk(
		kv{"choices.0.finish_reason", finishReason(resp, e.sawToolCalls)},
		kv{"usage", usage},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal final chunk: %w", err)
	}
	return [][]byte{b}, nil
}

// finishReason maps a terminal response onto the chat finish_reason values.
func finishReason(resp stream.Response, sawToolCalls bool) string {
	if resp.Status == stream.StatusIncomplete && resp.IncompleteDetails != nil {
		switch resp.IncompleteDetails.Reason {
		case stream.ReasonMaxOutputTokens:
			return "length"
		case stream.ReasonContentFilter:
			return "content_filter"
		}
	}
	if sawToolCalls {
		return "tool_calls"
	}
	return "stop"
}

func chatUsage(u *stream.Usage) ChatUsage {
	if u == nil {
		return ChatUsage{}
	}
	out := ChatUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	if out.TotalTokens == 0 {
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
	}
	return out
}

// writeChatSSE streams events as chat chunks terminated by [DONE].
func writeChatSSE(w io.Writer, model string, events iter.Seq2[stream.Event, error]) error {
	enc := newChatEncoder(model)
	for ev, err := range events {
		if err != nil {
			return err
		}
		chunks, err := enc.Encode(ev)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", c); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

// chatCompletion converts an assembled response into a buffered chat
// completion.
func chatCompletion(resp stream.Response) ChatCompletionResponse {
	msg := ChatMessage{Role: "assistant"}
	sawToolCalls := false
	for _, item := range resp.Output {
		if item.Type != stream.ItemFunctionCall {
			continue
		}
		sawToolCalls = true
		msg.ToolCalls = append(msg.ToolCalls, ChatToolCall{
			ID:       item.CallID,
			Type:     "function",
			Function: ChatFunctionCall{Name: item.Name, Arguments: item.Arguments},
		})
	}
	if text := resp.OutputText(); text != "" || !sawToolCalls {
		msg.Content = &text
	}
	return ChatCompletionResponse{
		ID:      "chatcmpl-" + resp.ID,
		Object:  "chat.completion",
		Created: resp.CreatedAt,
		Model:   resp.Model,
		Choices: []ChatCompletionChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishReason(resp, sawToolCalls),
		}},
		Usage: chatUsage(resp.Usage),
	}
}

func (s *Server) chatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
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

	prompt, err := parseChatRequest(body)
	if err != nil {
		s.logger.Debug().Err(err).Str("body_preview", truncate(string(body), 1200)).Msg("Rejected chat completion request")
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	events, err := s.openStream(r.Context(), "chat.completions", prompt)
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
		if resp.Status == stream.StatusFailed && resp.Error != nil {
			s.writeError(w, http.StatusBadGateway, "upstream_error", resp.Error.Message)
			return
		}
		s.writeJSON(w, http.StatusOK, chatCompletion(resp))
		return
	}

	out := s.startSSE(w)
	model := prompt.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	if err := writeChatSSE(out, model, events); err != nil {
		s.logger.Error().Err(err).Msg("Error streaming chat completion chunks")
	}
}
