package decode

import (
	"maps"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// openAIDecoder reads chat.completion.chunk frames. Tool call arguments arrive
// as fragments keyed by index; they are held until the choice finishes. With
// stream_options.include_usage the usage arrives in a trailing chunk after the
// finish reason, so the completion waits for it or for the end of the body.
type openAIDecoder struct {
	calls  map[int64]*pendingCall
	usage  *Usage
	finish string
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func newOpenAIDecoder() *openAIDecoder {
	return &openAIDecoder{calls: make(map[int64]*pendingCall)}
}

func (d *openAIDecoder) Decode(frame string) []Piece {
	if !gjson.Valid(frame) {
		return nil
	}
	root := gjson.Parse(frame)

	if e := root.Get("error"); e.Exists() {
		return []Piece{Error{Code: firstNonEmpty(e.Get("code").String(), e.Get("type").String()), Message: e.Get("message").String()}}
	}

	if u := root.Get("usage"); u.IsObject() {
		d.usage = &Usage{
			InputTokens:     int(u.Get("prompt_tokens").Int()),
			OutputTokens:    int(u.Get("completion_tokens").Int()),
			ReasoningTokens: int(u.Get("completion_tokens_details.reasoning_tokens").Int()),
			TotalTokens:     int(u.Get("total_tokens").Int()),
		}
	}

	var pieces []Piece
	choice := root.Get("choices.0")
	delta := choice.Get("delta")
	if content := delta.Get("content"); content.Type == gjson.String && content.Str != "" {
		pieces = append(pieces, Text{Text: content.Str})
	}

	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		idx := tc.Get("index").Int()
		call, ok := d.calls[idx]
		if !ok {
			call = &pendingCall{}
			d.calls[idx] = call
		}
		if id := tc.Get("id").String(); id != "" {
			call.id = id
		}
		if name := tc.Get("function.name").String(); name != "" {
			call.name = name
		}
		call.args.WriteString(tc.Get("function.arguments").String())
		return true
	})

	if reason := choice.Get("finish_reason").String(); reason != "" {
		pieces = append(pieces, d.releaseCalls()...)
		d.finish = reason
	}
	if d.finish != "" && d.usage != nil {
		pieces = append(pieces, d.completion())
	}
	return pieces
}

func (d *openAIDecoder) Flush() []Piece {
	pieces := d.releaseCalls()
	if d.finish != "" {
		pieces = append(pieces, d.completion())
	}
	return pieces
}

func (d *openAIDecoder) completion() Piece {
	c := Completion{Reason: d.finish, Usage: d.usage}
	d.finish = ""
	return c
}

func (d *openAIDecoder) releaseCalls() []Piece {
	if len(d.calls) == 0 {
		return nil
	}
	pieces := make([]Piece, 0, len(d.calls))
	for _, idx := range sortedIndices(d.calls) {
		call := d.calls[idx]
		pieces = append(pieces, ToolCall{
			Name:      toolName(call.name),
			Arguments: call.args.String(),
			CallID:    call.id,
		})
	}
	clear(d.calls)
	return pieces
}

func sortedIndices(calls map[int64]*pendingCall) []int64 {
	indices := slices.Collect(maps.Keys(calls))
	slices.Sort(indices)
	return indices
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
