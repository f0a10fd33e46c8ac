package decode

import (
	"strings"

	"github.com/tidwall/gjson"
)

// anthropicDecoder reads Messages API stream events. tool_use blocks are
// assembled from input_json_delta fragments and released on
// content_block_stop; the stop reason arrives in message_delta and is
// released on message_stop.
type anthropicDecoder struct {
	blocks     map[int64]*pendingCall
	stopReason string
	usage      Usage
	sawUsage   bool
}

func newAnthropicDecoder() *anthropicDecoder {
	return &anthropicDecoder{blocks: make(map[int64]*pendingCall)}
}

func (d *anthropicDecoder) Decode(frame string) []Piece {
	if !gjson.Valid(frame) {
		return nil
	}
	root := gjson.Parse(frame)

	switch root.Get("type").String() {
	case "message_start":
		if u := root.Get("message.usage"); u.Exists() {
			d.sawUsage = true
			d.usage.InputTokens = int(u.Get("input_tokens").Int())
			d.usage.OutputTokens = int(u.Get("output_tokens").Int())
		}

	case "content_block_start":
		block := root.Get("content_block")
		if block.Get("type").String() == "tool_use" {
			call := &pendingCall{id: block.Get("id").String(), name: block.Get("name").String()}
			// Some proxies send the full input up front instead of deltas.
			if in := block.Get("input"); in.IsObject() && len(in.Map()) > 0 {
				call.args.WriteString(in.Raw)
			}
			d.blocks[root.Get("index").Int()] = call
		}

	case "content_block_delta":
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			if text := delta.Get("text").String(); text != "" {
				return []Piece{Text{Text: text}}
			}
		case "input_json_delta":
			if call, ok := d.blocks[root.Get("index").Int()]; ok {
				call.args.WriteString(delta.Get("partial_json").String())
			}
		}

	case "content_block_stop":
		idx := root.Get("index").Int()
		call, ok := d.blocks[idx]
		if !ok {
			return nil
		}
		delete(d.blocks, idx)
		return []Piece{finishToolUse(call)}

	case "message_delta":
		if reason := root.Get("delta.stop_reason").String(); reason != "" {
			d.stopReason = reason
		}
		if out := root.Get("usage.output_tokens"); out.Exists() {
			d.sawUsage = true
			d.usage.OutputTokens = int(out.Int())
		}

	case "message_stop":
		c := Completion{Reason: d.stopReason}
		if d.sawUsage {
			u := d.usage
			u.TotalTokens = u.InputTokens + u.OutputTokens
			c.Usage = &u
		}
		return []Piece{c}

	case "error":
		e := root.Get("error")
		return []Piece{Error{Code: e.Get("type").String(), Message: e.Get("message").String()}}
	}
	return nil
}

func (d *anthropicDecoder) Flush() []Piece {
	if len(d.blocks) == 0 {
		return nil
	}
	pieces := make([]Piece, 0, len(d.blocks))
	for _, idx := range sortedIndices(d.blocks) {
		pieces = append(pieces, finishToolUse(d.blocks[idx]))
	}
	clear(d.blocks)
	return pieces
}

func finishToolUse(call *pendingCall) ToolCall {
	args := strings.TrimSpace(call.args.String())
	if args == "" {
		args = "{}"
	}
	return ToolCall{Name: toolName(call.name), Arguments: args, CallID: call.id}
}
