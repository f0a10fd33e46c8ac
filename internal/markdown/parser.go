package markdown

import (
	"strconv"
	"strings"
)

// EventKind is the position of an event in an element's lifecycle.
type EventKind int

const (
	Begin EventKind = iota + 1
	Delta
	End
)

func (k EventKind) String() string {
	switch k {
	case Begin:
		return "begin"
	case Delta:
		return "delta"
	case End:
		return "end"
	}
	return "unknown"
}

// ElementType names a block or inline element.
type ElementType string

const (
	Paragraph      ElementType = "paragraph"
	Heading        ElementType = "heading"
	CodeBlock      ElementType = "code_block"
	Blockquote     ElementType = "blockquote"
	List           ElementType = "list"
	ListItem       ElementType = "list_item"
	Table          ElementType = "table"
	TableHeader    ElementType = "table_header"
	TableBody      ElementType = "table_body"
	TableRow       ElementType = "table_row"
	TableCell      ElementType = "table_cell"
	HorizontalRule ElementType = "horizontal_rule"
	Strong         ElementType = "strong"
	Emphasis       ElementType = "emphasis"
	Strikethrough  ElementType = "strikethrough"
	InlineCodeSpan ElementType = "inline_code"
)

var inlineTypes = map[InlineKind]ElementType{
	InlineStrong:        Strong,
	InlineEmphasis:      Emphasis,
	InlineStrikethrough: Strikethrough,
	InlineCode:          InlineCodeSpan,
}

// Event is one begin, delta or end notification. Parent is empty for
// top-level blocks.
type Event struct {
	Kind    EventKind
	Type    ElementType
	ID      string
	Parent  string
	Text    string
	Level   int
	Lang    string
	Ordered bool
	Align   string
}

type openBlock struct {
	id      string
	typ     ElementType
	ordered bool
}

// Parser is an incremental, line-oriented markdown parser. Complete lines are
// classified as they arrive; the trailing partial line waits for its newline
// or for Close.
type Parser struct {
	opts    Options
	buf     string
	nextID  int
	stack   []openBlock
	fence   Fence
	inFence bool
	table   []string
	out     []Event
}

// NewParser returns a parser with no open blocks.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts.withDefaults()}
}

// Write consumes text and returns the events it completes.
func (p *Parser) Write(text string) []Event {
	p.buf += text
	for {
		nl := strings.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimRight(p.buf[:nl], "\r")
		p.buf = p.buf[nl+1:]
		p.line(line)
	}
	return p.drain()
}

// Close flushes the partial line and closes every open element.
func (p *Parser) Close() []Event {
	if p.buf != "" {
		line := p.buf
		p.buf = ""
		p.line(line)
	}
	p.flushTable()
	p.inFence = false
	p.closeAll()
	return p.drain()
}

func (p *Parser) drain() []Event {
	out := p.out
	p.out = nil
	return out
}

func (p *Parser) line(l string) {
	if p.inFence {
		if p.fence.closedBy(l) {
			p.inFence = false
			p.closeAll()
			return
		}
		p.delta(p.top().id, l+"\n")
		return
	}

	if p.table != nil {
		if isTableLine(l) {
			p.table = append(p.table, l)
			return
		}
		p.flushTable()
	}

	trimmed := strings.TrimSpace(l)
	if trimmed == "" {
		p.closeAll()
		return
	}

	if fence, info, ok := parseFenceOpener(l); ok {
		p.closeAll()
		p.begin(Event{Type: CodeBlock, Lang: info})
		p.fence, p.inFence = fence, true
		return
	}

	if level, text, ok := parseHeading(l); ok {
		p.closeAll()
		id := p.begin(Event{Type: Heading, Level: level})
		p.inline(id, text)
		p.closeTop()
		return
	}

	if isThematicBreak(trimmed) {
		p.closeAll()
		p.begin(Event{Type: HorizontalRule})
		p.closeTop()
		return
	}

	if isTableLine(l) {
		p.closeAll()
		p.table = []string{l}
		return
	}

	if content, ok := strings.CutPrefix(trimmed, ">"); ok {
		content = strings.TrimPrefix(content, " ")
		if top, ok := p.peek(); ok && top.typ == Blockquote && len(p.stack) == 1 {
			p.delta(top.id, "\n")
			p.inline(top.id, content)
			return
		}
		p.closeAll()
		id := p.begin(Event{Type: Blockquote})
		p.inline(id, content)
		return
	}

	if item, ok := parseListItem(l); ok {
		if len(p.stack) > 0 && p.stack[0].typ == List && p.stack[0].ordered == item.ordered {
			for len(p.stack) > 1 {
				p.closeTop()
			}
		} else {
			p.closeAll()
			p.begin(Event{Type: List, Ordered: item.ordered})
		}
		id := p.begin(Event{Type: ListItem, Ordered: item.ordered, Level: item.level})
		p.inline(id, item.text)
		return
	}

	if top, ok := p.peek(); ok {
		switch {
		case top.typ == Paragraph:
			p.delta(top.id, "\n")
			p.inline(top.id, trimmed)
			return
		case top.typ == ListItem && strings.HasPrefix(l, " "):
			p.delta(top.id, "\n")
			p.inline(top.id, trimmed)
			return
		}
	}
	p.closeAll()
	id := p.begin(Event{Type: Paragraph})
	p.inline(id, trimmed)
}

// inline emits text under parent, surfacing emphasis spans as nested
// elements whose content is delivered in a single delta.
func (p *Parser) inline(parent, text string) {
	spans, _ := findSpans(text)
	pos := 0
	for _, sp := range spans {
		p.words(parent, text[pos:sp.start])
		id := p.newID()
		typ := inlineTypes[sp.kind]
		p.out = append(p.out, Event{Kind: Begin, Type: typ, ID: id, Parent: parent})
		if c := sp.content(text); c != "" {
			p.out = append(p.out, Event{Kind: Delta, Type: typ, ID: id, Parent: parent, Text: c})
		}
		p.out = append(p.out, Event{Kind: End, Type: typ, ID: id, Parent: parent})
		pos = sp.end
	}
	p.words(parent, text[pos:])
}

func (p *Parser) words(id, text string) {
	if text == "" {
		return
	}
	for _, chunk := range mergeTokens(tokens(text), p.opts.MaxDeltaChunkSize) {
		p.delta(id, chunk)
	}
}

func (p *Parser) newID() string {
	p.nextID++
	return p.opts.IDPrefix + strconv.Itoa(p.nextID)
}

func (p *Parser) begin(ev Event) string {
	ev.Kind = Begin
	ev.ID = p.newID()
	if top, ok := p.peek(); ok {
		ev.Parent = top.id
	}
	p.stack = append(p.stack, openBlock{id: ev.ID, typ: ev.Type, ordered: ev.Ordered})
	p.out = append(p.out, ev)
	return ev.ID
}

func (p *Parser) delta(id, text string) {
	typ, parent := p.lookup(id)
	p.out = append(p.out, Event{Kind: Delta, Type: typ, ID: id, Parent: parent, Text: text})
}

func (p *Parser) lookup(id string) (ElementType, string) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].id == id {
			parent := ""
			if i > 0 {
				parent = p.stack[i-1].id
			}
			return p.stack[i].typ, parent
		}
	}
	return "", ""
}

func (p *Parser) peek() (openBlock, bool) {
	if len(p.stack) == 0 {
		return openBlock{}, false
	}
	return p.stack[len(p.stack)-1], true
}

func (p *Parser) top() openBlock {
	b, _ := p.peek()
	return b
}

func (p *Parser) closeTop() {
	b := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	parent := ""
	if top, ok := p.peek(); ok {
		parent = top.id
	}
	p.out = append(p.out, Event{Kind: End, Type: b.typ, ID: b.id, Parent: parent})
}

func (p *Parser) closeAll() {
	for len(p.stack) > 0 {
		p.closeTop()
	}
}

func parseHeading(l string) (int, string, bool) {
	level := runLength(l, '#')
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := l[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	text := strings.TrimSpace(rest)
	text = strings.TrimSpace(strings.TrimRight(text, "#"))
	return level, text, true
}

func isThematicBreak(trimmed string) bool {
	compact := strings.ReplaceAll(trimmed, " ", "")
	if len(compact) < 3 {
		return false
	}
	c := compact[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	return runLength(compact, c) == len(compact)
}

func isTableLine(l string) bool {
	return strings.HasPrefix(strings.TrimSpace(l), "|")
}

type listItem struct {
	ordered bool
	level   int
	text    string
}

func parseListItem(l string) (listItem, bool) {
	indent := len(l) - len(strings.TrimLeft(l, " "))
	rest := l[indent:]
	if rest == "" {
		return listItem{}, false
	}

	var ordered bool
	var n int
	switch rest[0] {
	case '-', '*', '+':
		n = 1
	default:
		for n < len(rest) && n < 9 && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 0 || n >= len(rest) || (rest[n] != '.' && rest[n] != ')') {
			return listItem{}, false
		}
		n++
		ordered = true
	}
	if n < len(rest) && rest[n] != ' ' && rest[n] != '\t' {
		return listItem{}, false
	}
	return listItem{
		ordered: ordered,
		level:   indent / 2,
		text:    strings.TrimSpace(rest[n:]),
	}, true
}
