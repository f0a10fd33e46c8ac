package assemble

import (
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reduce(actions ...stream.Action) []stream.Event {
	s := stream.New(stream.Config{
		Model: "test-model",
		IDs:   stream.SequentialIDs,
		Now:   func() time.Time { return time.Unix(1700000000, 0) },
	})
	var all []stream.Event
	for _, a := range actions {
		var evs []stream.Event
		s, evs = stream.Reduce(s, a)
		all = append(all, evs...)
	}
	return all
}

func seq(events []stream.Event, tail error) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
		if tail != nil {
			yield(nil, tail)
		}
	}
}

func TestAssemble_MatchesTerminalResponse(t *testing.T) {
	t.Parallel()

	events := reduce(
		stream.Init{},
		stream.Text{Fragment: "Let me check.\n\n"},
		stream.ToolCall{Name: "get_weather", Arguments: `{"location":"Tokyo"}`},
		stream.Text{Fragment: "It is sunny."},
		stream.Complete{Reason: "STOP", Usage: &stream.Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}},
	)

	resp, err := Assemble(seq(events, nil))
	require.NoError(t, err)

	completed, ok := events[len(events)-1].(stream.Completed)
	require.True(t, ok)
	assert.Equal(t, completed.Response, resp)
	assert.Equal(t, "Let me check.\n\nIt is sunny.", resp.OutputText())
	require.Len(t, resp.Output, 3)
	assert.Equal(t, stream.ItemFunctionCall, resp.Output[1].Type)
	assert.Equal(t, `{"location":"Tokyo"}`, resp.Output[1].Arguments)
}

func TestAssemble_Incomplete(t *testing.T) {
	t.Parallel()

	events := reduce(stream.Init{}, stream.Text{Fragment: "cut off"}, stream.Complete{Reason: "MAX_TOKENS"})
	resp, err := Assemble(seq(events, nil))
	require.NoError(t, err)
	assert.Equal(t, stream.StatusIncomplete, resp.Status)
	require.NotNil(t, resp.IncompleteDetails)
	assert.Equal(t, stream.ReasonMaxOutputTokens, resp.IncompleteDetails.Reason)
	assert.Equal(t, "cut off", resp.OutputText())
}

func TestAssemble_Failed(t *testing.T) {
	t.Parallel()

	events := reduce(stream.Init{}, stream.Fail{Code: "UNAVAILABLE", Message: "overloaded"})
	resp, err := Assemble(seq(events, nil))
	require.NoError(t, err)
	assert.Equal(t, stream.StatusFailed, resp.Status)
	assert.Equal(t, &stream.ErrorDetail{Code: "UNAVAILABLE", Message: "overloaded"}, resp.Error)
	assert.Empty(t, resp.Output)
}

func TestAssemble_PartialReplay(t *testing.T) {
	t.Parallel()

	events := reduce(
		stream.Init{},
		stream.ToolCall{Name: "lookup", Arguments: `{"id":7}`},
		stream.Text{Fragment: "First.\n\nSecond part still going"},
	)
	// The stream never closed the message.
	for _, ev := range events {
		if done, ok := ev.(stream.ItemDone); ok {
			require.NotEqual(t, "msg_4", done.Item.ID)
		}
	}

	a := New()
	for _, ev := range events {
		a.Add(ev)
	}
	assert.False(t, a.Terminal())

	resp := a.Response()
	assert.Equal(t, stream.StatusIncomplete, resp.Status)
	assert.Equal(t, "resp_1", resp.ID)
	require.Len(t, resp.Output, 2)

	assert.Equal(t, stream.ItemFunctionCall, resp.Output[0].Type)
	assert.Equal(t, stream.StatusCompleted, resp.Output[0].Status)

	msg := resp.Output[1]
	assert.Equal(t, stream.ItemMessage, msg.Type)
	assert.Equal(t, stream.StatusIncomplete, msg.Status)
	// Only the text the segmenter already released is known to the assembler.
	assert.Equal(t, "First.\n\n", msg.Content[0].Text)
}

func TestAssemble_UnfinishedToolCall(t *testing.T) {
	t.Parallel()

	a := New()
	a.Add(stream.ItemAdded{SequenceNumber: 1, Item: stream.Item{ID: "fc_1", Type: stream.ItemFunctionCall, Name: "f", CallID: "call_1"}})
	a.Add(stream.FunctionArgsDelta{SequenceNumber: 2, ItemID: "fc_1", Delta: `{"a":`})

	resp := a.Response()
	require.Len(t, resp.Output, 1)
	assert.Equal(t, `{"a":`, resp.Output[0].Arguments)
	assert.Equal(t, stream.StatusIncomplete, resp.Output[0].Status)
	assert.Equal(t, "response", resp.Object)
}

func TestAssemble_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("read failed")
	events := reduce(stream.Init{}, stream.Text{Fragment: "a\n\nb"})
	resp, err := Assemble(seq(events, boom))
	require.ErrorIs(t, err, boom)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "a\n\n", resp.OutputText())
}
