package server

import (
	"strings"
	"testing"

	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestChatEncoder_ToolCall(t *testing.T) {
	t.Parallel()

	enc := newChatEncoder("m")
	encode := func(ev stream.Event) []string {
		chunks, err := enc.Encode(ev)
		require.NoError(t, err)
		out := make([]string, len(chunks))
		for i, c := range chunks {
			out[i] = string(c)
		}
		return out
	}

	assert.Empty(t, encode(stream.Created{Response: stream.Response{ID: "resp_1", CreatedAt: 42, Model: "gemini"}}))

	start := encode(stream.ItemAdded{Item: stream.Item{ID: "fc_2", Type: stream.ItemFunctionCall, Name: "lookup", CallID: "call_1"}})
	require.Len(t, start, 2, "role chunk comes first")
	assert.Equal(t, "assistant", gjson.Get(start[0], "choices.0.delta.role").String())
	assert.Equal(t, int64(42), gjson.Get(start[1], "created").Int())
	assert.Equal(t, "gemini", gjson.Get(start[1], "model").String())
	assert.Equal(t, "call_1", gjson.Get(start[1], "choices.0.delta.tool_calls.0.id").String())
	assert.Equal(t, "lookup", gjson.Get(start[1], "choices.0.delta.tool_calls.0.function.name").String())
	assert.Equal(t, int64(0), gjson.Get(start[1], "choices.0.delta.tool_calls.0.index").Int())

	args := encode(stream.FunctionArgsDelta{ItemID: "fc_2", Delta: `{"q":1}`})
	require.Len(t, args, 1)
	assert.Equal(t, `{"q":1}`, gjson.Get(args[0], "choices.0.delta.tool_calls.0.function.arguments").String())

	assert.Empty(t, encode(stream.FunctionArgsDelta{ItemID: "fc_unknown", Delta: "x"}))

	final := encode(stream.Completed{Response: stream.Response{Status: stream.StatusCompleted}})
	require.Len(t, final, 1)
	assert.Equal(t, "tool_calls", gjson.Get(final[0], "choices.0.finish_reason").String())
	assert.True(t, gjson.Get(final[0], "usage").IsObject())
}

func TestChatEncoder_Failed(t *testing.T) {
	t.Parallel()

	chunks, err := newChatEncoder("m").Encode(stream.Failed{Response: stream.Response{
		Status: stream.StatusFailed,
		Error:  &stream.ErrorDetail{Code: "RESOURCE_EXHAUSTED", Message: "quota"},
	}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "quota", gjson.GetBytes(chunks[0], "error.message").String())
	assert.Equal(t, "RESOURCE_EXHAUSTED", gjson.GetBytes(chunks[0], "error.code").String())
}

func TestFinishReason(t *testing.T) {
	t.Parallel()

	incomplete := func(reason string) stream.Response {
		return stream.Response{Status: stream.StatusIncomplete, IncompleteDetails: &stream.IncompleteDetails{Reason: reason}}
	}
	tests := []struct {
		name  string
		resp  stream.Response
		tools bool
		want  string
	}{
		{name: "completed", resp: stream.Response{Status: stream.StatusCompleted}, want: "stop"},
		{name: "tool calls", resp: stream.Response{Status: stream.StatusCompleted}, tools: true, want: "tool_calls"},
		{name: "max tokens", resp: incomplete(stream.ReasonMaxOutputTokens), want: "length"},
		{name: "content filter", resp: incomplete(stream.ReasonContentFilter), tools: true, want: "content_filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, finishReason(tt.resp, tt.tools))
		})
	}
}

func TestChatCompletion_TextOnly(t *testing.T) {
	t.Parallel()

	resp := stream.Response{
		ID:     "resp_1",
		Model:  "m",
		Status: stream.StatusCompleted,
		Output: []stream.Item{{Type: stream.ItemMessage, Content: []stream.ContentPart{{Type: stream.PartOutputText, Text: "hi"}}}},
		Usage:  &stream.Usage{InputTokens: 2, OutputTokens: 1},
	}
	out := chatCompletion(resp)
	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "hi", *out.Choices[0].Message.Content)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Equal(t, 3, out.Usage.TotalTokens)
	assert.True(t, strings.HasPrefix(out.ID, "chatcmpl-"))
}
