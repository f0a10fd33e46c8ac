package stream

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Wire type strings of the Responses streaming protocol.
const (
	TypeCreated           = "response.created"
	TypeItemAdded         = "response.output_item.added"
	TypeContentPartAdded  = "response.content_part.added"
	TypeTextDelta         = "response.output_text.delta"
	TypeTextDone          = "response.output_text.done"
	TypeContentPartDone   = "response.content_part.done"
	TypeFunctionArgsDelta = "response.function_call_arguments.delta"
	TypeFunctionArgsDone  = "response.function_call_arguments.done"
	TypeItemDone          = "response.output_item.done"
	TypeCompleted         = "response.completed"
	TypeIncomplete        = "response.incomplete"
	TypeFailed            = "response.failed"
)

// Event is one emitted unit of the Responses streaming protocol. MarshalJSON
// produces the wire form.
type Event interface {
	Type() string
	Sequence() int
	MarshalJSON() ([]byte, error)
	event()
}

type Created struct {
	SequenceNumber int
	Response       Response
}

type ItemAdded struct {
	SequenceNumber int
	OutputIndex    int
	Item           Item
}

type ContentPartAdded struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	ContentIndex   int
	Part           ContentPart
}

type TextDelta struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	ContentIndex   int
	Delta          string
}

type TextDone struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	ContentIndex   int
	Text           string
}

type ContentPartDone struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	ContentIndex   int
	Part           ContentPart
}

type FunctionArgsDelta struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	Delta          string
}

type FunctionArgsDone struct {
	SequenceNumber int
	ItemID         string
	OutputIndex    int
	Arguments      string
}

type ItemDone struct {
	SequenceNumber int
	OutputIndex    int
	Item           Item
}

type Completed struct {
	SequenceNumber int
	Response       Response
}

// Incomplete ends a stream that stopped early; the reason is in
// Response.IncompleteDetails.
type Incomplete struct {
	SequenceNumber int
	Response       Response
}

// Reason returns the truncation reason.
func (e Incomplete) Reason() string {
	if e.Response.IncompleteDetails == nil {
		return ""
	}
	return e.Response.IncompleteDetails.Reason
}

// Failed ends a stream whose backend reported an error.
type Failed struct {
	SequenceNumber int
	Response       Response
}

func (Created) Type() string           { return TypeCreated }
func (ItemAdded) Type() string         { return TypeItemAdded }
func (ContentPartAdded) Type() string  { return TypeContentPartAdded }
func (TextDelta) Type() string         { return TypeTextDelta }
func (TextDone) Type() string          { return TypeTextDone }
func (ContentPartDone) Type() string   { return TypeContentPartDone }
func (FunctionArgsDelta) Type() string { return TypeFunctionArgsDelta }
func (FunctionArgsDone) Type() string  { return TypeFunctionArgsDone }
func (ItemDone) Type() string          { return TypeItemDone }
func (Completed) Type() string         { return TypeCompleted }
func (Incomplete) Type() string        { return TypeIncomplete }
func (Failed) Type() string            { return TypeFailed }

func (e Created) Sequence() int           { return e.SequenceNumber }
func (e ItemAdded) Sequence() int         { return e.SequenceNumber }
func (e ContentPartAdded) Sequence() int  { return e.SequenceNumber }
func (e TextDelta) Sequence() int         { return e.SequenceNumber }
func (e TextDone) Sequence() int          { return e.SequenceNumber }
func (e ContentPartDone) Sequence() int   { return e.SequenceNumber }
func (e FunctionArgsDelta) Sequence() int { return e.SequenceNumber }
func (e FunctionArgsDone) Sequence() int  { return e.SequenceNumber }
func (e ItemDone) Sequence() int          { return e.SequenceNumber }
func (e Completed) Sequence() int         { return e.SequenceNumber }
func (e Incomplete) Sequence() int        { return e.SequenceNumber }
func (e Failed) Sequence() int            { return e.SequenceNumber }

func (Created) event()           {}
func (ItemAdded) event()         {}
func (ContentPartAdded) event()  {}
func (TextDelta) event()         {}
func (TextDone) event()          {}
func (ContentPartDone) event()   {}
func (FunctionArgsDelta) event() {}
func (FunctionArgsDone) event()  {}
func (ItemDone) event()          {}
func (Completed) event()         {}
func (Incomplete) event()        {}
func (Failed) event()            {}

// Interface compliance checks.
var (
	_ Event = Created{}
	_ Event = ItemAdded{}
	_ Event = ContentPartAdded{}
	_ Event = TextDelta{}
	_ Event = TextDone{}
	_ Event = ContentPartDone{}
	_ Event = FunctionArgsDelta{}
	_ Event = FunctionArgsDone{}
	_ Event = ItemDone{}
	_ Event = Completed{}
	_ Event = Incomplete{}
	_ Event = Failed{}
)

// IsTerminal reports whether ev ends a stream.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Completed, Incomplete, Failed:
		return true
	}
	return false
}

func header(ev Event) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"sequence_number":%d}`, ev.Type(), ev.Sequence()))
}

func (e Created) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"response", e.Response})
}

func (e ItemAdded) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"output_index", e.OutputIndex}, kv{"item", e.Item})
}

func (e ContentPartAdded) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"content_index", e.ContentIndex},
		kv{"part", e.Part},
	)
}

func (e TextDelta) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"content_index", e.ContentIndex},
		kv{"delta", e.Delta},
	)
}

func (e TextDone) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"content_index", e.ContentIndex},
		kv{"text", e.Text},
	)
}

func (e ContentPartDone) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"content_index", e.ContentIndex},
		kv{"part", e.Part},
	)
}

func (e FunctionArgsDelta) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"delta", e.Delta},
	)
}

func (e FunctionArgsDone) MarshalJSON() ([]byte, error) {
	return setAll(header(e),
		kv{"item_id", e.ItemID},
		kv{"output_index", e.OutputIndex},
		kv{"arguments", e.Arguments},
	)
}

func (e ItemDone) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"output_index", e.OutputIndex}, kv{"item", e.Item})
}

func (e Completed) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"response", e.Response})
}

func (e Incomplete) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"response", e.Response})
}

func (e Failed) MarshalJSON() ([]byte, error) {
	return setAll(header(e), kv{"response", e.Response})
}

// ErrUnknownEvent is returned by ParseEvent for a type it does not model.
var ErrUnknownEvent = errors.New("stream: unknown event type")

// ParseEvent decodes one wire event, as found in a captured SSE stream.
func ParseEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("stream: invalid json: %.64s", data)
	}
	r := gjson.ParseBytes(data)
	seq := int(r.Get("sequence_number").Int())
	itemID := r.Get("item_id").String()
	outputIndex := int(r.Get("output_index").Int())
	contentIndex := int(r.Get("content_index").Int())
	part := func() ContentPart {
		p := r.Get("part")
		return ContentPart{Type: p.Get("type").String(), Text: p.Get("text").String()}
	}

	switch t := r.Get("type").String(); t {
	case TypeCreated:
		return Created{SequenceNumber: seq, Response: parseResponse(r.Get("response"))}, nil
	case TypeItemAdded:
		return ItemAdded{SequenceNumber: seq, OutputIndex: outputIndex, Item: parseItem(r.Get("item"))}, nil
	case TypeContentPartAdded:
		return ContentPartAdded{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, ContentIndex: contentIndex, Part: part()}, nil
	case TypeTextDelta:
		return TextDelta{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, ContentIndex: contentIndex, Delta: r.Get("delta").String()}, nil
	case TypeTextDone:
		return TextDone{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, ContentIndex: contentIndex, Text: r.Get("text").String()}, nil
	case TypeContentPartDone:
		return ContentPartDone{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, ContentIndex: contentIndex, Part: part()}, nil
	case TypeFunctionArgsDelta:
		return FunctionArgsDelta{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, Delta: r.Get("delta").String()}, nil
	case TypeFunctionArgsDone:
		return FunctionArgsDone{SequenceNumber: seq, ItemID: itemID, OutputIndex: outputIndex, Arguments: r.Get("arguments").String()}, nil
	case TypeItemDone:
		return ItemDone{SequenceNumber: seq, OutputIndex: outputIndex, Item: parseItem(r.Get("item"))}, nil
	case TypeCompleted:
		return Completed{SequenceNumber: seq, Response: parseResponse(r.Get("response"))}, nil
	case TypeIncomplete:
		return Incomplete{SequenceNumber: seq, Response: parseResponse(r.Get("response"))}, nil
	case TypeFailed:
		return Failed{SequenceNumber: seq, Response: parseResponse(r.Get("response"))}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
}
