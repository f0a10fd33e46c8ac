package decode

import (
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// geminiDecoder reads streamGenerateContent chunks. Gemini delivers function
// calls whole, so it keeps no state.
type geminiDecoder struct{}

func (d *geminiDecoder) Decode(frame string) []Piece {
	if !gjson.Valid(frame) {
		return nil
	}
	root := gjson.Parse(frame)
	if !root.IsObject() {
		return nil
	}

	if e := root.Get("error"); e.Exists() {
		return []Piece{geminiError(e)}
	}

	var pieces []Piece
	candidate := root.Get("candidates.0")
	candidate.Get("content.parts").ForEach(func(_, raw gjson.Result) bool {
		var part genai.Part
		if err := json.Unmarshal([]byte(raw.Raw), &part); err != nil {
			return true
		}
		if p := geminiPart(&part); p != nil {
			pieces = append(pieces, p)
		}
		return true
	})

	reason := genai.FinishReason(candidate.Get("finishReason").String())
	if reason == "" || reason == genai.FinishReasonUnspecified {
		// A blocked prompt has no candidates, only feedback.
		reason = genai.FinishReason(root.Get("promptFeedback.blockReason").String())
	}
	if reason != "" && reason != genai.FinishReasonUnspecified {
		pieces = append(pieces, Completion{
			Reason: string(reason),
			Usage:  geminiUsage(root.Get("usageMetadata")),
		})
	}
	return pieces
}

func (d *geminiDecoder) Flush() []Piece { return nil }

func geminiPart(part *genai.Part) Piece {
	switch {
	case part.Thought:
		return nil
	case part.FunctionCall != nil:
		args := []byte("{}")
		if part.FunctionCall.Args != nil {
			b, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil
			}
			args = b
		}
		return ToolCall{
			Name:      toolName(part.FunctionCall.Name),
			Arguments: string(args),
			CallID:    part.FunctionCall.ID,
		}
	case part.Text != "":
		return Text{Text: part.Text}
	}
	return nil
}

func geminiUsage(raw gjson.Result) *Usage {
	if !raw.Exists() {
		return nil
	}
	var meta genai.GenerateContentResponseUsageMetadata
	if err := json.Unmarshal([]byte(raw.Raw), &meta); err != nil {
		return nil
	}
	return &Usage{
		InputTokens:     int(meta.PromptTokenCount),
		OutputTokens:    int(meta.CandidatesTokenCount) + int(meta.ThoughtsTokenCount),
		ReasoningTokens: int(meta.ThoughtsTokenCount),
		TotalTokens:     int(meta.TotalTokenCount),
	}
}

func geminiError(e gjson.Result) Error {
	code := e.Get("status").String()
	if code == "" {
		code = e.Get("code").String()
	}
	return Error{Code: code, Message: e.Get("message").String()}
}
