package server

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errInvalidRequest = errors.New("invalid request body")

// Prompt is a client request reduced to what every backend can express.
type Prompt struct {
	Model           string
	Instructions    string
	Messages        []Message
	Tools           []Tool
	MaxOutputTokens int
	Stream          bool
}

// Message is one conversation turn. Role is "user", "assistant" or "tool".
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Tool struct {
	Name        string
	Description string
	// Parameters is the raw JSON schema, empty when absent.
	Parameters string
}

// parseResponsesRequest reads a Responses API create request.
func parseResponsesRequest(body []byte) (Prompt, error) {
	if !gjson.ValidBytes(body) {
		return Prompt{}, errInvalidRequest
	}
	r := gjson.ParseBytes(body)
	p := Prompt{
		Model:           r.Get("model").String(),
		Instructions:    r.Get("instructions").String(),
		MaxOutputTokens: int(r.Get("max_output_tokens").Int()),
		Stream:          r.Get("stream").Bool(),
		Tools:           parseTools(r.Get("tools")),
	}

	input := r.Get("input")
	switch {
	case input.Type == gjson.String:
		p.Messages = append(p.Messages, Message{Role: "user", Content: input.String()})
	case input.IsArray():
		input.ForEach(func(_, item gjson.Result) bool {
			p.addInputItem(item)
			return true
		})
	}
	if len(p.Messages) == 0 {
		return Prompt{}, errors.New("input must contain at least one message")
	}
	return p, nil
}

func (p *Prompt) addInputItem(item gjson.Result) {
	switch item.Get("type").String() {
	case "function_call":
		call := ToolCall{
			ID:        item.Get("call_id").String(),
			Name:      item.Get("name").String(),
			Arguments: item.Get("arguments").String(),
		}
		// Parallel calls belong to one assistant turn.
		if n := len(p.Messages); n > 0 && p.Messages[n-1].Role == "assistant" && len(p.Messages[n-1].ToolCalls) > 0 {
			p.Messages[n-1].ToolCalls = append(p.Messages[n-1].ToolCalls, call)
			return
		}
		p.Messages = append(p.Messages, Message{Role: "assistant", ToolCalls: []ToolCall{call}})
	case "function_call_output":
		p.Messages = append(p.Messages, Message{
			Role:       "tool",
			ToolCallID: item.Get("call_id").String(),
			Content:    item.Get("output").String(),
		})
	case "message", "":
		p.addMessage(item.Get("role").String(), contentText(item.Get("content")))
	}
}

func (p *Prompt) addMessage(role, text string) {
	switch role {
	case "system", "developer":
		p.Instructions = joinNonEmpty(p.Instructions, text)
	case "assistant":
		p.Messages = append(p.Messages, Message{Role: "assistant", Content: text})
	default:
		p.Messages = append(p.Messages, Message{Role: "user", Content: text})
	}
}

// parseChatRequest reads a Chat Completions request.
func parseChatRequest(body []byte) (Prompt, error) {
	if !gjson.ValidBytes(body) {
		return Prompt{}, errInvalidRequest
	}
	r := gjson.ParseBytes(body)
	p := Prompt{
		Model:  r.Get("model").String(),
		Stream: r.Get("stream").Bool(),
		Tools:  parseTools(r.Get("tools")),
	}
	if v := r.Get("max_completion_tokens"); v.Exists() {
		p.MaxOutputTokens = int(v.Int())
	} else {
		p.MaxOutputTokens = int(r.Get("max_tokens").Int())
	}

	r.Get("messages").ForEach(func(_, m gjson.Result) bool {
		role := m.Get("role").String()
		switch role {
		case "tool":
			p.Messages = append(p.Messages, Message{
				Role:       "tool",
				ToolCallID: m.Get("tool_call_id").String(),
				Content:    contentText(m.Get("content")),
			})
		case "assistant":
			msg := Message{Role: "assistant", Content: contentText(m.Get("content"))}
			m.Get("tool_calls").ForEach(func(_, c gjson.Result) bool {
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:        c.Get("id").String(),
					Name:      c.Get("function.name").String(),
					Arguments: c.Get("function.arguments").String(),
				})
				return true
			})
			p.Messages = append(p.Messages, msg)
		default:
			p.addMessage(role, contentText(m.Get("content")))
		}
		return true
	})
	if len(p.Messages) == 0 {
		return Prompt{}, errors.New("messages must contain at least one message")
	}
	return p, nil
}

// parseTools accepts both the flat Responses form and the nested chat form.
func parseTools(tools gjson.Result) []Tool {
	var out []Tool
	tools.ForEach(func(_, t gjson.Result) bool {
		if typ := t.Get("type").String(); typ != "" && typ != "function" {
			return true
		}
		fn := t
		if f := t.Get("function"); f.IsObject() {
			fn = f
		}
		tool := Tool{
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
		}
		if params := fn.Get("parameters"); params.IsObject() {
			tool.Parameters = params.Raw
		}
		if tool.Name != "" {
			out = append(out, tool)
		}
		return true
	})
	return out
}

// contentText flattens a string or a list of text parts.
func contentText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	var parts []string
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "text", "input_text", "output_text", "":
			if t := part.Get("text"); t.Exists() {
				parts = append(parts, t.String())
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
