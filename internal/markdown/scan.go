package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fence is an open fenced code block: its delimiter character and run length.
type Fence struct {
	Char byte
	Len  int
}

// parseFenceOpener reports whether line (without its newline) opens a fence,
// returning the fence and its info string.
func parseFenceOpener(line string) (Fence, string, bool) {
	if line == "" || (line[0] != '`' && line[0] != '~') {
		return Fence{}, "", false
	}
	c := line[0]
	n := runLength(line, c)
	if n < 3 {
		return Fence{}, "", false
	}
	info := strings.TrimSpace(line[n:])
	if c == '`' && strings.IndexByte(info, '`') >= 0 {
		return Fence{}, "", false
	}
	return Fence{Char: c, Len: n}, info, true
}

// closedBy reports whether line closes f: same character, at least as long,
// followed by nothing but whitespace.
func (f Fence) closedBy(line string) bool {
	n := runLength(line, f.Char)
	if n < f.Len {
		return false
	}
	return strings.TrimSpace(line[n:]) == ""
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// InlineKind is the kind of an inline emphasis span.
type InlineKind int

const (
	InlineNone InlineKind = iota
	InlineStrong
	InlineEmphasis
	InlineStrikethrough
	InlineCode
)

// span is a closed inline construct. start and end cover the delimiters;
// the content is s[start+delim : end-delim].
type span struct {
	kind  InlineKind
	start int
	end   int
	delim int
}

func (sp span) content(s string) string {
	return s[sp.start+sp.delim : sp.end-sp.delim]
}

// findSpans returns the closed inline spans of s, left to right and
// non-overlapping, and the offset of the first opener that is still waiting
// for its closer (-1 if none).
func findSpans(s string) ([]span, int) {
	var spans []span
	open := -1
	markOpen := func(i int) {
		if open < 0 {
			open = i
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch c {
		case '`':
			n := runLength(s[i:], '`')
			if end := findCodeCloser(s, i+n, n); end >= 0 {
				spans = append(spans, span{kind: InlineCode, start: i, end: end + n, delim: n})
				i = end + n
				continue
			}
			markOpen(i)
			i += n

		case '*', '_', '~':
			delim, kind := delimiterAt(s, i)
			if kind == InlineNone {
				i++
				continue
			}
			d := len(delim)
			if !canOpen(s, i, d) {
				i += d
				continue
			}
			if end := findEmphasisCloser(s, i+d, delim); end >= 0 {
				spans = append(spans, span{kind: kind, start: i, end: end + d, delim: d})
				i = end + d
				continue
			}
			markOpen(i)
			i += d

		default:
			i++
		}
	}
	return spans, open
}

func delimiterAt(s string, i int) (string, InlineKind) {
	c := s[i]
	double := i+1 < len(s) && s[i+1] == c
	switch {
	case c == '~' && double:
		return "~~", InlineStrikethrough
	case c == '~':
		return "", InlineNone
	case double:
		return s[i : i+2], InlineStrong
	default:
		return s[i : i+1], InlineEmphasis
	}
}

// canOpen applies the left-flanking rule: the delimiter must be followed by a
// non-space, and an underscore must not sit inside a word.
func canOpen(s string, i, d int) bool {
	if i+d >= len(s) {
		// Nothing follows yet; more input may complete it.
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[i+d:])
	if unicode.IsSpace(next) {
		return false
	}
	if s[i] == '_' && i > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if isWordRune(prev) {
			return false
		}
	}
	return true
}

func findEmphasisCloser(s string, from int, delim string) int {
	c := delim[0]
	for k := from; k+len(delim) <= len(s); k++ {
		if s[k:k+len(delim)] != delim {
			continue
		}
		if k == from {
			continue
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:k])
		if unicode.IsSpace(prev) {
			continue
		}
		after := k + len(delim)
		// A single delimiter must not be half of a double one.
		if len(delim) == 1 && ((after < len(s) && s[after] == c) || s[k-1] == c) {
			continue
		}
		if c == '_' && after < len(s) {
			next, _ := utf8.DecodeRuneInString(s[after:])
			if isWordRune(next) {
				continue
			}
		}
		return k
	}
	return -1
}

func findCodeCloser(s string, from, n int) int {
	for k := from; k < len(s); {
		if s[k] != '`' {
			k++
			continue
		}
		run := runLength(s[k:], '`')
		if run == n {
			return k
		}
		k += run
	}
	return -1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokens splits s into runs of spaces, runs of newlines and words.
func tokens(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		j := tokenEnd(s, i)
		out = append(out, s[i:j])
		i = j
	}
	return out
}

// leadingToken returns the first token of s, or "" for empty s.
func leadingToken(s string) string {
	if s == "" {
		return ""
	}
	return s[:tokenEnd(s, 0)]
}

func tokenEnd(s string, i int) int {
	j := i + 1
	switch class := tokenClass(s[i]); class {
	case classSpace, classNewline:
		for j < len(s) && tokenClass(s[j]) == class {
			j++
		}
	default:
		for j < len(s) && tokenClass(s[j]) == classWord {
			j++
		}
	}
	return j
}

const (
	classWord = iota
	classSpace
	classNewline
)

func tokenClass(c byte) int {
	switch c {
	case ' ', '\t':
		return classSpace
	case '\n', '\r':
		return classNewline
	}
	return classWord
}

// spanTokens is tokens with every emphasis span kept as one token.
func spanTokens(s string) []string {
	spans, _ := findSpans(s)
	var out []string
	pos := 0
	for _, t := range tokens(s) {
		if len(out) > 0 && insideSpan(spans, pos) {
			out[len(out)-1] += t
		} else {
			out = append(out, t)
		}
		pos += len(t)
	}
	return out
}

// mergeTokens joins consecutive tokens while the result stays within max
// bytes. A token longer than max is kept whole.
func mergeTokens(toks []string, max int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, t := range toks {
		if cur.Len() > 0 && cur.Len()+len(t) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(t)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
