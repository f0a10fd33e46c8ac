package stream

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Status is the lifecycle status of a response or an output item.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

// ItemType distinguishes the output item variants.
type ItemType string

const (
	ItemMessage      ItemType = "message"
	ItemFunctionCall ItemType = "function_call"
)

// Incomplete reasons.
const (
	ReasonMaxOutputTokens = "max_output_tokens"
	ReasonContentFilter   = "content_filter"
)

// Response is the response object carried by lifecycle events and produced by
// the assembler.
type Response struct {
	ID                string             `json:"id"`
	Object            string             `json:"object"`
	CreatedAt         int64              `json:"created_at"`
	Model             string             `json:"model"`
	Status            Status             `json:"status"`
	Output            []Item             `json:"output"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details"`
	Error             *ErrorDetail       `json:"error"`
	Usage             *Usage             `json:"usage,omitempty"`
}

// OutputText concatenates the text of every message item.
func (r Response) OutputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != ItemMessage {
			continue
		}
		for _, part := range item.Content {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

type IncompleteDetails struct {
	Reason string `json:"reason"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Usage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
	TotalTokens         int                 `json:"total_tokens"`
}

type OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// Item is one output item: an assistant message or a function call.
type Item struct {
	ID        string
	Type      ItemType
	Status    Status
	Role      string
	Content   []ContentPart
	Name      string
	Arguments string
	CallID    string
}

// ContentPart is one part of a message item. Only output_text is produced.
type ContentPart struct {
	Type string
	Text string
}

// PartOutputText is the content part type of assistant text.
const PartOutputText = "output_text"

func textPart(text string) ContentPart {
	return ContentPart{Type: PartOutputText, Text: text}
}

var (
	partJSON         = []byte(`{"type":"output_text","text":"","annotations":[]}`)
	messageJSON      = []byte(`{"type":"message","content":[]}`)
	functionCallJSON = []byte(`{"type":"function_call"}`)
)

func (p ContentPart) MarshalJSON() ([]byte, error) {
	out := partJSON
	var err error
	if p.Type != "" && p.Type != PartOutputText {
		if out, err = sjson.SetBytes(out, "type", p.Type); err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(out, "text", p.Text)
}

func (i Item) MarshalJSON() ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch i.Type {
	case ItemFunctionCall:
		out, err = setAll(functionCallJSON,
			kv{"id", i.ID},
			kv{"status", string(i.Status)},
			kv{"name", i.Name},
			kv{"arguments", i.Arguments},
			kv{"call_id", i.CallID},
		)
	default:
		out, err = setAll(messageJSON,
			kv{"id", i.ID},
			kv{"status", string(i.Status)},
			kv{"role", i.Role},
		)
		for _, part := range i.Content {
			if err != nil {
				break
			}
			var raw []byte
			if raw, err = part.MarshalJSON(); err == nil {
				out, err = sjson.SetRawBytes(out, "content.-1", raw)
			}
		}
	}
	return out, err
}

func (i *Item) UnmarshalJSON(data []byte) error {
	*i = parseItem(gjson.ParseBytes(data))
	return nil
}

func parseItem(r gjson.Result) Item {
	item := Item{
		ID:     r.Get("id").String(),
		Type:   ItemType(r.Get("type").String()),
		Status: Status(r.Get("status").String()),
	}
	switch item.Type {
	case ItemFunctionCall:
		item.Name = r.Get("name").String()
		item.Arguments = r.Get("arguments").String()
		item.CallID = r.Get("call_id").String()
	default:
		item.Role = r.Get("role").String()
		r.Get("content").ForEach(func(_, part gjson.Result) bool {
			item.Content = append(item.Content, ContentPart{
				Type: part.Get("type").String(),
				Text: part.Get("text").String(),
			})
			return true
		})
	}
	return item
}

func parseResponse(r gjson.Result) Response {
	resp := Response{
		ID:        r.Get("id").String(),
		Object:    r.Get("object").String(),
		CreatedAt: r.Get("created_at").Int(),
		Model:     r.Get("model").String(),
		Status:    Status(r.Get("status").String()),
	}
	r.Get("output").ForEach(func(_, item gjson.Result) bool {
		resp.Output = append(resp.Output, parseItem(item))
		return true
	})
	if d := r.Get("incomplete_details"); d.IsObject() {
		resp.IncompleteDetails = &IncompleteDetails{Reason: d.Get("reason").String()}
	}
	if e := r.Get("error"); e.IsObject() {
		resp.Error = &ErrorDetail{Code: e.Get("code").String(), Message: e.Get("message").String()}
	}
	if u := r.Get("usage"); u.IsObject() {
		resp.Usage = &Usage{
			InputTokens:  int(u.Get("input_tokens").Int()),
			OutputTokens: int(u.Get("output_tokens").Int()),
			OutputTokensDetails: OutputTokensDetails{
				ReasoningTokens: int(u.Get("output_tokens_details.reasoning_tokens").Int()),
			},
			TotalTokens: int(u.Get("total_tokens").Int()),
		}
	}
	return resp
}

type kv struct {
	key   string
	value any
}

func setAll(template []byte, fields ...kv) ([]byte, error) {
	out := template
	var err error
	for _, f := range fields {
		if out, err = sjson.SetBytes(out, f.key, f.value); err != nil {
			return nil, err
		}
	}
	return out, nil
}
