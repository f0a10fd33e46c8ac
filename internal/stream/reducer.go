package stream

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// Action is an input to Reduce.
type Action interface {
	action()
}

// Init starts the stream: it assigns the response id and emits Created.
type Init struct{}

// Text appends a fragment of assistant text.
type Text struct {
	Fragment string
}

// ToolCall reports one complete function call.
type ToolCall struct {
	Name      string
	Arguments string
	CallID    string
}

// Complete ends generation with the backend's finish reason.
type Complete struct {
	Reason string
	Usage  *Usage
}

// Fail ends the stream with an error the backend reported.
type Fail struct {
	Code    string
	Message string
}

func (Init) action()     {}
func (Text) action()     {}
func (ToolCall) action() {}
func (Complete) action() {}
func (Fail) action()     {}

var (
	_ Action = Init{}
	_ Action = Text{}
	_ Action = ToolCall{}
	_ Action = Complete{}
	_ Action = Fail{}
)

// Reduce applies a to s and returns the successor state with the events the
// transition emits. Actions other than Init are no-ops once the stream has
// reached a terminal event; Text, ToolCall, Complete and Fail on an idle
// state start it first.
func Reduce(s State, a Action) (State, []Event) {
	r := reduction{s: s}
	switch a := a.(type) {
	case Init:
		r.init()
	case Text:
		if r.begin() {
			r.text(a.Fragment)
		}
	case ToolCall:
		if r.begin() {
			r.toolCall(a)
		}
	case Complete:
		if r.begin() {
			r.complete(a)
		}
	case Fail:
		if r.begin() {
			r.fail(a)
		}
	}
	return r.s, r.events
}

type reduction struct {
	s      State
	events []Event
}

func (r *reduction) seq() int {
	r.s.SequenceNumber++
	return r.s.SequenceNumber
}

// begin reports whether the stream accepts content, starting an idle one.
func (r *reduction) begin() bool {
	switch {
	case r.s.Phase == PhaseIdle:
		r.init()
		return true
	case r.s.Phase.Terminal():
		return false
	}
	return true
}

func (r *reduction) init() {
	r.s = r.s.Reset()
	r.s.ResponseID = r.s.newID("resp")
	r.s.CreatedAt = r.s.cfg.Now().Unix()
	r.s.Phase = PhaseStreaming
	r.events = append(r.events, Created{SequenceNumber: r.seq(), Response: r.s.Snapshot()})
}

func (r *reduction) text(fragment string) {
	if fragment == "" {
		return
	}
	r.openMessage()

	m := *r.s.Message
	m.Text += fragment
	r.s.Message = &m

	var deltas []string
	r.s.Segmenter, deltas = r.s.Segmenter.Feed(fragment)
	r.emitDeltas(deltas)
}

func (r *reduction) openMessage() {
	if r.s.Message != nil {
		return
	}
	m := &OpenMessage{ID: r.s.newID("msg"), OutputIndex: r.s.OutputIndex}
	r.s.Message = m
	r.s.OutputIndex++
	r.s.ContentIndex = 0

	r.events = append(r.events,
		ItemAdded{
			SequenceNumber: r.seq(),
			OutputIndex:    m.OutputIndex,
			Item:           Item{ID: m.ID, Type: ItemMessage, Status: StatusInProgress, Role: "assistant"},
		},
		ContentPartAdded{
			SequenceNumber: r.seq(),
			ItemID:         m.ID,
			OutputIndex:    m.OutputIndex,
			Part:           textPart(""),
		},
	)
}

func (r *reduction) emitDeltas(deltas []string) {
	m := r.s.Message
	for _, d := range deltas {
		r.events = append(r.events, TextDelta{
			SequenceNumber: r.seq(),
			ItemID:         m.ID,
			OutputIndex:    m.OutputIndex,
			Delta:          d,
		})
		r.s.ContentIndex += utf8.RuneCountInString(d)
	}
}

// closeMessage flushes the segmenter and finishes the open message item.
func (r *reduction) closeMessage(status Status) {
	if r.s.Message == nil {
		return
	}
	var rest []string
	r.s.Segmenter, rest = r.s.Segmenter.Finish()
	r.emitDeltas(rest)

	m := r.s.Message
	part := textPart(m.Text)
	item := Item{
		ID:      m.ID,
		Type:    ItemMessage,
		Status:  status,
		Role:    "assistant",
		Content: []ContentPart{part},
	}
	r.events = append(r.events,
		TextDone{SequenceNumber: r.seq(), ItemID: m.ID, OutputIndex: m.OutputIndex, Text: m.Text},
		ContentPartDone{SequenceNumber: r.seq(), ItemID: m.ID, OutputIndex: m.OutputIndex, Part: part},
		ItemDone{SequenceNumber: r.seq(), OutputIndex: m.OutputIndex, Item: item},
	)
	r.s.Output = append(slices.Clip(r.s.Output), item)
	r.s.Message = nil
	r.s.ContentIndex = 0
}

func (r *reduction) toolCall(call ToolCall) {
	signature := call.Name + "\x00" + call.Arguments
	if _, seen := r.s.Signatures[signature]; seen {
		return
	}
	r.closeMessage(StatusCompleted)

	callID := call.CallID
	if callID == "" {
		callID = r.s.newID("call")
	}
	itemID := r.s.newID("fc")
	outputIndex := r.s.OutputIndex
	r.s.OutputIndex++

	r.s.Signatures = maps.Clone(r.s.Signatures)
	r.s.Signatures[signature] = callID
	r.s.ToolCalls = maps.Clone(r.s.ToolCalls)
	r.s.ToolCalls[callID] = ToolCallRecord{
		ItemID:      itemID,
		OutputIndex: outputIndex,
		Name:        call.Name,
		Arguments:   call.Arguments,
	}

	item := Item{
		ID:     itemID,
		Type:   ItemFunctionCall,
		Status: StatusInProgress,
		Name:   call.Name,
		CallID: callID,
	}
	r.events = append(r.events, ItemAdded{SequenceNumber: r.seq(), OutputIndex: outputIndex, Item: item})
	if call.Arguments != "" {
		r.events = append(r.events, FunctionArgsDelta{
			SequenceNumber: r.seq(),
			ItemID:         itemID,
			OutputIndex:    outputIndex,
			Delta:          call.Arguments,
		})
	}
	r.events = append(r.events, FunctionArgsDone{
		SequenceNumber: r.seq(),
		ItemID:         itemID,
		OutputIndex:    outputIndex,
		Arguments:      call.Arguments,
	})

	item.Status = StatusCompleted
	item.Arguments = call.Arguments
	r.events = append(r.events, ItemDone{SequenceNumber: r.seq(), OutputIndex: outputIndex, Item: item})
	r.s.Output = append(slices.Clip(r.s.Output), item)
}

func (r *reduction) complete(c Complete) {
	status, reason := TerminalStatus(c.Reason)
	itemStatus := StatusCompleted
	if status == StatusIncomplete {
		itemStatus = StatusIncomplete
	}
	r.closeMessage(itemStatus)
	if c.Usage != nil {
		u := *c.Usage
		r.s.Usage = &u
	}

	if status == StatusIncomplete {
		r.s.Phase = PhaseIncomplete
		resp := r.s.Snapshot()
		resp.IncompleteDetails = &IncompleteDetails{Reason: reason}
		r.events = append(r.events, Incomplete{SequenceNumber: r.seq(), Response: resp})
		return
	}
	r.s.Phase = PhaseCompleted
	r.events = append(r.events, Completed{SequenceNumber: r.seq(), Response: r.s.Snapshot()})
}

func (r *reduction) fail(f Fail) {
	r.closeMessage(StatusIncomplete)
	r.s.Phase = PhaseFailed
	resp := r.s.Snapshot()
	resp.Error = &ErrorDetail{Code: f.Code, Message: f.Message}
	r.events = append(r.events, Failed{SequenceNumber: r.seq(), Response: resp})
}

// TerminalStatus maps a backend finish reason to the terminal status and, for
// an incomplete response, the reason reported to the client.
func TerminalStatus(reason string) (Status, string) {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "max_tokens", "length", "max_output_tokens":
		return StatusIncomplete, ReasonMaxOutputTokens
	case "safety", "recitation", "blocklist", "prohibited_content", "spii",
		"content_filter", "refusal":
		return StatusIncomplete, ReasonContentFilter
	}
	return StatusCompleted, ""
}
