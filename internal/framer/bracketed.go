package framer

import "strings"

// BracketedJSONFramer recovers the object elements of one streamed top-level
// JSON array. It scans byte by byte; every structural character is ASCII, so
// multi-byte UTF-8 sequences split across chunks pass through untouched.
type BracketedJSONFramer struct {
	seenArrayStart bool
	depth          int
	inString       bool
	escapeNext     bool
	acc            strings.Builder
}

// NewBracketedJSON returns a framer waiting for the opening '['.
func NewBracketedJSON() *BracketedJSONFramer {
	return &BracketedJSONFramer{}
}

// Push scans chunk and returns every object it completes.
func (f *BracketedJSONFramer) Push(chunk string) []string {
	var frames []string
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]

		if !f.seenArrayStart {
			if c == '[' {
				f.seenArrayStart = true
			}
			continue
		}

		if f.depth == 0 {
			// Separators, whitespace and the closing ']' between elements.
			if c == '{' {
				f.depth = 1
				f.acc.WriteByte(c)
			}
			continue
		}

		f.acc.WriteByte(c)

		if f.escapeNext {
			f.escapeNext = false
			continue
		}
		if f.inString {
			switch c {
			case '\\':
				f.escapeNext = true
			case '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			f.inString = true
		case '{':
			f.depth++
		case '}':
			f.depth--
			if f.depth == 0 {
				frames = append(frames, f.acc.String())
				f.acc.Reset()
			}
		}
	}
	return frames
}

// Flush drops an unterminated trailing object.
func (f *BracketedJSONFramer) Flush() []string {
	f.acc.Reset()
	f.depth = 0
	f.inString = false
	f.escapeNext = false
	return nil
}
