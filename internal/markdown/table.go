package markdown

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var tableMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func (p *Parser) flushTable() {
	lines := p.table
	p.table = nil
	if len(lines) == 0 {
		return
	}
	raw := strings.Join(lines, "\n") + "\n"

	if p.opts.TableOutputMode == TableStructured {
		if tbl, src, err := parseTable(raw); err == nil && tbl != nil {
			p.emitTable(tbl, src)
			return
		}
	}

	id := p.begin(Event{Type: Table})
	p.delta(id, raw)
	p.closeTop()
}

// parseTable runs a one-shot goldmark parse over the complete table text and
// returns the first table node, or nil when the text is not a valid table
// (for example when the delimiter row is missing).
func parseTable(raw string) (*east.Table, []byte, error) {
	src := []byte(raw)
	doc := tableMarkdown.Parser().Parse(text.NewReader(src))

	var found *east.Table
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*east.Table); ok {
			found = t
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk table: %w", err)
	}
	return found, src, nil
}

func (p *Parser) emitTable(tbl *east.Table, src []byte) {
	p.begin(Event{Type: Table})
	inBody := false
	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		switch row.(type) {
		case *east.TableHeader:
			p.begin(Event{Type: TableHeader})
			p.emitRow(row, src)
			p.closeTop()
		case *east.TableRow:
			if !inBody {
				p.begin(Event{Type: TableBody})
				inBody = true
			}
			p.emitRow(row, src)
		}
	}
	if inBody {
		p.closeTop()
	}
	p.closeTop()
}

func (p *Parser) emitRow(row ast.Node, src []byte) {
	p.begin(Event{Type: TableRow})
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cell, ok := c.(*east.TableCell)
		if !ok {
			continue
		}
		id := p.begin(Event{Type: TableCell, Align: cell.Alignment.String()})
		if content := inlineText(cell, src); content != "" {
			p.delta(id, content)
		}
		p.closeTop()
	}
	p.closeTop()
}

// inlineText flattens the inline children of n to plain text.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}
