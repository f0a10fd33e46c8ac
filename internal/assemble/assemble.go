// Package assemble folds a Responses event sequence back into one response
// object, for callers that want a synchronous result from a streaming
// backend.
package assemble

import (
	"iter"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/stream"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// pending accumulates an item between its ItemAdded and ItemDone events.
type pending struct {
	item stream.Item
	text strings.Builder
	args strings.Builder
	// part is set once ContentPartDone delivered the finished text.
	part *stream.ContentPart
}

// Assembler consumes events one at a time. The zero value is not usable; use
// New.
type Assembler struct {
	resp     stream.Response
	open     *orderedmap.OrderedMap[string, *pending]
	output   []stream.Item
	terminal bool
}

// New returns an empty assembler.
func New() *Assembler {
	return &Assembler{open: orderedmap.New[string, *pending]()}
}

// Add folds one event into the response.
func (a *Assembler) Add(ev stream.Event) {
	switch e := ev.(type) {
	case stream.Created:
		a.resp = e.Response
		a.resp.Output = nil
	case stream.ItemAdded:
		a.open.Set(e.Item.ID, &pending{item: e.Item})
	case stream.TextDelta:
		if p, ok := a.open.Get(e.ItemID); ok {
			p.text.WriteString(e.Delta)
		}
	case stream.ContentPartDone:
		if p, ok := a.open.Get(e.ItemID); ok {
			part := e.Part
			p.part = &part
		}
	case stream.FunctionArgsDelta:
		if p, ok := a.open.Get(e.ItemID); ok {
			p.args.WriteString(e.Delta)
		}
	case stream.FunctionArgsDone:
		if p, ok := a.open.Get(e.ItemID); ok {
			p.item.Arguments = e.Arguments
			p.args.Reset()
		}
	case stream.ItemDone:
		item := e.Item
		if p, ok := a.open.Delete(item.ID); ok && item.Type == stream.ItemMessage && len(item.Content) == 0 {
			item.Content = p.content()
		}
		a.output = append(a.output, item)
	case stream.Completed:
		a.finish(e.Response)
	case stream.Incomplete:
		a.finish(e.Response)
	case stream.Failed:
		a.finish(e.Response)
	}
}

func (a *Assembler) finish(r stream.Response) {
	a.terminal = true
	if a.resp.ID == "" {
		a.resp = r
	}
	a.resp.Status = r.Status
	a.resp.IncompleteDetails = r.IncompleteDetails
	a.resp.Error = r.Error
	a.resp.Usage = r.Usage
}

func (p *pending) content() []stream.ContentPart {
	if p.part != nil {
		return []stream.ContentPart{*p.part}
	}
	return []stream.ContentPart{{Type: stream.PartOutputText, Text: p.text.String()}}
}

// unfinished returns the item as accumulated so far, marked incomplete.
func (p *pending) unfinished() stream.Item {
	item := p.item
	item.Status = stream.StatusIncomplete
	switch item.Type {
	case stream.ItemFunctionCall:
		if item.Arguments == "" {
			item.Arguments = p.args.String()
		}
	default:
		item.Content = p.content()
	}
	return item
}

// Terminal reports whether a Completed, Incomplete or Failed event was seen.
func (a *Assembler) Terminal() bool {
	return a.terminal
}

// Response returns the response folded so far. Items that never received
// their ItemDone are included, in the order they were added, with status
// incomplete; so is the response itself when no terminal event arrived.
func (a *Assembler) Response() stream.Response {
	resp := a.resp
	if resp.Object == "" {
		resp.Object = "response"
	}
	resp.Output = make([]stream.Item, 0, len(a.output)+a.open.Len())
	resp.Output = append(resp.Output, a.output...)
	for pair := a.open.Oldest(); pair != nil; pair = pair.Next() {
		resp.Output = append(resp.Output, pair.Value.unfinished())
	}
	if !a.terminal {
		resp.Status = stream.StatusIncomplete
	}
	return resp
}

// Assemble drains events and returns the folded response. On error the
// response holds everything received before it.
func Assemble(events iter.Seq2[stream.Event, error]) (stream.Response, error) {
	a := New()
	for ev, err := range events {
		if err != nil {
			return a.Response(), err
		}
		a.Add(ev)
	}
	return a.Response(), nil
}
