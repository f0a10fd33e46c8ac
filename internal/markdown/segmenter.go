// Package markdown cuts streamed markdown into deltas that never split a
// construct, and parses it incrementally into typed block events.
package markdown

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// runawayFactor bounds how long unbreakable prose may be held, as a multiple
// of the flush threshold, before it is cut regardless of structure.
const runawayFactor = 4

// Segmenter decides where a growing text buffer may be cut. It is a value:
// Feed and Finish return the successor and leave the receiver untouched, so a
// Segmenter can live inside an immutable reducer state.
type Segmenter struct {
	opts Options
	buf  string
	// modes holds the open fences; empty means plain text.
	modes []Fence
	// midLine is set when buf does not start at the beginning of a line.
	midLine bool
	// scanned is how far into buf the closer search has progressed while a
	// fence is open. Zero means the opener line is still unchecked.
	scanned int
	// flushing is set once the current stretch of prose passed the flush
	// threshold; it lasts until the next paragraph boundary or fence.
	flushing bool
}

// NewSegmenter returns an empty segmenter.
func NewSegmenter(opts Options) Segmenter {
	return Segmenter{opts: opts.withDefaults()}
}

// Feed appends text and returns every delta that is now safe to emit.
func (s Segmenter) Feed(text string) (Segmenter, []string) {
	if text == "" {
		return s, nil
	}
	s.buf += text
	out := s.scan(false)
	return s, out
}

// Finish flushes everything still buffered, including an unterminated fence.
func (s Segmenter) Finish() (Segmenter, []string) {
	out := s.scan(true)
	return NewSegmenter(s.opts), out
}

// Buffered returns the text not yet emitted.
func (s Segmenter) Buffered() string { return s.buf }

// InFence reports whether a fenced block is open.
func (s Segmenter) InFence() bool { return len(s.modes) > 0 }

// Modes returns a copy of the open fence stack.
func (s Segmenter) Modes() []Fence { return slices.Clone(s.modes) }

func (s *Segmenter) scan(final bool) []string {
	var out []string
	emit := func(n int) {
		chunk := s.buf[:n]
		s.buf = s.buf[n:]
		s.midLine = !strings.HasSuffix(chunk, "\n")
		out = append(out, chunk)
	}
	// emitProse cuts buf[:n] into merged word chunks. Unless force is set,
	// the last chunk stays buffered while the token after it could still be
	// merged into it.
	emitProse := func(n int, force bool) int {
		chunks := mergeTokens(spanTokens(s.buf[:n]), s.opts.MaxDeltaChunkSize)
		if !force && len(chunks) > 0 {
			last := chunks[len(chunks)-1]
			next := leadingToken(s.buf[n:])
			if next == "" || len(last)+len(next) <= s.opts.MaxDeltaChunkSize {
				chunks = chunks[:len(chunks)-1]
			}
		}
		total := 0
		for _, chunk := range chunks {
			emit(len(chunk))
			total += len(chunk)
		}
		return total
	}
	// emitBlock emits prose that ends at a paragraph boundary or a fence.
	emitBlock := func(n int) {
		if s.flushing {
			emitProse(n, true)
			s.flushing = false
			return
		}
		emit(n)
	}

	for len(s.buf) > 0 {
		if s.InFence() {
			end, ok := s.findCloser(final)
			if !ok {
				if final {
					emit(len(s.buf))
					s.popFence()
				}
				break
			}
			emit(end)
			s.popFence()
			continue
		}

		limit, fenceAt, fence := s.findOpener(final)
		idx := strings.Index(s.buf[:limit], "\n\n")

		if !s.flushing {
			// Prose starts flushing once the held stretch reaches the
			// threshold before its paragraph ends.
			reach := limit
			if idx >= 0 {
				reach = idx + 1
			}
			s.flushing = reach >= s.opts.ProseFlushThreshold
		}

		if idx >= 0 {
			emitBlock(idx + 2)
			continue
		}

		if fenceAt >= 0 {
			if fenceAt > 0 {
				emitBlock(fenceAt)
			}
			s.flushing = false
			s.modes = append(slices.Clip(s.modes), fence)
			s.scanned = 0
			continue
		}

		if final {
			emitBlock(len(s.buf))
			break
		}
		if !s.flushing {
			break
		}

		cut, runaway := s.proseCut(limit)
		if cut == 0 {
			break
		}
		if runaway {
			emit(cut)
			continue
		}
		if emitProse(cut, false) == 0 {
			break
		}
	}
	return out
}

func (s *Segmenter) popFence() {
	s.modes = s.modes[:len(s.modes)-1]
	s.scanned = 0
}

// findOpener looks for a fence opener at a line start. It returns the limit
// emission may not pass, plus the opener's offset (-1 if none). A line that
// starts with a fence character but has not ended yet cannot be classified,
// so it limits emission without being an opener.
func (s *Segmenter) findOpener(final bool) (limit, at int, f Fence) {
	limit, at = len(s.buf), -1
	ls := 0
	if s.midLine {
		ls = nextLineStart(s.buf, 0)
	}
	for ; ls >= 0 && ls < len(s.buf); ls = nextLineStart(s.buf, ls) {
		if c := s.buf[ls]; c != '`' && c != '~' {
			continue
		}
		line := s.buf[ls:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		} else if !final {
			return ls, -1, Fence{}
		}
		if fence, _, ok := parseFenceOpener(strings.TrimRight(line, "\r")); ok {
			return ls, ls, fence
		}
	}
	return limit, at, Fence{}
}

// findCloser returns the end offset (past the newline) of the line closing
// the innermost fence.
func (s *Segmenter) findCloser(final bool) (int, bool) {
	f := s.modes[len(s.modes)-1]
	pos := s.scanned
	if pos == 0 {
		// Skip the opener line.
		pos = nextLineStart(s.buf, 0)
		if pos < 0 {
			return 0, false
		}
	}
	for pos < len(s.buf) {
		nl := strings.IndexByte(s.buf[pos:], '\n')
		if nl < 0 {
			if final && f.closedBy(strings.TrimRight(s.buf[pos:], "\r")) {
				return len(s.buf), true
			}
			break
		}
		if f.closedBy(strings.TrimRight(s.buf[pos:pos+nl], "\r")) {
			return pos + nl + 1, true
		}
		pos += nl + 1
	}
	s.scanned = pos
	return 0, false
}

// proseCut picks how much of buf[:limit] can be emitted as word-aware chunks.
// The trailing token is held because it may still grow; cuts never fall
// inside an emphasis span, after an emphasis opener that is still waiting for
// its closer, or inside a table row. When the held text runs far past the
// threshold without a usable cut, it is cut at the threshold and runaway is
// reported.
func (s *Segmenter) proseCut(limit int) (cut int, runaway bool) {
	region := s.buf[:limit]
	threshold := s.opts.ProseFlushThreshold
	runawayAt := runawayFactor * threshold

	spans, open := findSpans(region)
	first, pos := 0, 0
	toks := tokens(region)
	for i, tok := range toks {
		pos += len(tok)
		if i == len(toks)-1 && limit == len(s.buf) {
			break
		}
		if open >= 0 && pos > open {
			break
		}
		if insideSpan(spans, pos) || s.insideTableRow(pos) {
			continue
		}
		if first == 0 {
			first = pos
		}
		cut = pos
	}
	// Runaway only when no cut exists within the first runawayAt bytes.
	if len(region) < runawayAt || (first > 0 && first < runawayAt) {
		return cut, false
	}

	cut = threshold
	for cut > 0 && !utf8.RuneStart(s.buf[cut]) {
		cut--
	}
	return cut, cut > 0
}

func insideSpan(spans []span, pos int) bool {
	for _, sp := range spans {
		if sp.start < pos && pos < sp.end {
			return true
		}
	}
	return false
}

// insideTableRow reports whether pos falls in the middle of a line that
// starts with a pipe.
func (s *Segmenter) insideTableRow(pos int) bool {
	if pos == 0 || s.buf[pos-1] == '\n' {
		return false
	}
	start := strings.LastIndexByte(s.buf[:pos], '\n') + 1
	if start == 0 && s.midLine {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(s.buf[start:pos], " "), "|")
}

func nextLineStart(s string, from int) int {
	nl := strings.IndexByte(s[from:], '\n')
	if nl < 0 {
		return -1
	}
	return from + nl + 1
}
