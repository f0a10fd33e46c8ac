package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEvent_WireShape(t *testing.T) {
	t.Parallel()

	_, events := run(New(testConfig()),
		Init{},
		Text{Fragment: "Hi.\n\n"},
		ToolCall{Name: "get_weather", Arguments: `{"location":"Tokyo"}`, CallID: "call_abc"},
		Complete{Reason: "MAX_TOKENS", Usage: &Usage{InputTokens: 5, OutputTokens: 2, TotalTokens: 7}},
	)

	byType := map[string]gjson.Result{}
	for _, ev := range events {
		data, err := ev.MarshalJSON()
		require.NoError(t, err)
		require.True(t, gjson.ValidBytes(data), string(data))
		r := gjson.ParseBytes(data)
		assert.Equal(t, ev.Type(), r.Get("type").String())
		assert.Equal(t, int64(ev.Sequence()), r.Get("sequence_number").Int())
		if _, ok := byType[ev.Type()]; !ok {
			byType[ev.Type()] = r
		}
	}

	created := byType[TypeCreated]
	assert.Equal(t, "resp_1", created.Get("response.id").String())
	assert.Equal(t, "in_progress", created.Get("response.status").String())
	assert.Equal(t, "gemini-2.5-flash", created.Get("response.model").String())

	added := byType[TypeItemAdded]
	assert.Equal(t, "message", added.Get("item.type").String())
	assert.Equal(t, "assistant", added.Get("item.role").String())
	assert.True(t, added.Get("item.content").IsArray())

	delta := byType[TypeTextDelta]
	assert.Equal(t, "Hi.\n\n", delta.Get("delta").String())
	assert.Equal(t, "msg_2", delta.Get("item_id").String())
	assert.Equal(t, int64(0), delta.Get("content_index").Int())

	partDone := byType[TypeContentPartDone]
	assert.Equal(t, "output_text", partDone.Get("part.type").String())
	assert.True(t, partDone.Get("part.annotations").IsArray())

	args := byType[TypeFunctionArgsDone]
	assert.Equal(t, `{"location":"Tokyo"}`, args.Get("arguments").String())

	incomplete := byType[TypeIncomplete]
	assert.Equal(t, "incomplete", incomplete.Get("response.status").String())
	assert.Equal(t, "max_output_tokens", incomplete.Get("response.incomplete_details.reason").String())
	assert.Equal(t, int64(7), incomplete.Get("response.usage.total_tokens").Int())
	assert.Equal(t, "call_abc", incomplete.Get("response.output.1.call_id").String())
	assert.Equal(t, "Hi.\n\n", incomplete.Get("response.output.0.content.0.text").String())
}

func TestParseEvent_Replay(t *testing.T) {
	t.Parallel()

	_, events := run(New(testConfig()),
		Init{},
		Text{Fragment: "Some **bold** text.\n\nMore"},
		ToolCall{Name: "search", Arguments: `{"q":"go"}`},
		Fail{Code: "INTERNAL", Message: "boom"},
	)

	for _, ev := range events {
		data, err := ev.MarshalJSON()
		require.NoError(t, err)
		parsed, err := ParseEvent(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, ev, parsed)
	}
}

func TestParseEvent_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseEvent([]byte(`{"type":"response.reasoning.delta"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = ParseEvent([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminal(Completed{}))
	assert.True(t, IsTerminal(Incomplete{}))
	assert.True(t, IsTerminal(Failed{}))
	assert.False(t, IsTerminal(TextDelta{}))
	assert.False(t, IsTerminal(ItemDone{}))
}
