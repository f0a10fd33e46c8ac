package framer

import (
	"bytes"
	"strings"
)

const doneMarker = "[DONE]"

var blankLine = []byte("\n\n")

// SSEFramer splits a text/event-stream into data payloads.
type SSEFramer struct {
	buf []byte
	// scanned is how far into buf the blank line search has progressed.
	scanned int
	// cr is set when the previous chunk ended in "\r"; it may pair with a
	// "\n" at the start of the next chunk.
	cr bool
}

// NewSSE returns an empty SSE framer.
func NewSSE() *SSEFramer {
	return &SSEFramer{}
}

// Push appends chunk and returns the payloads of every block it completes.
func (f *SSEFramer) Push(chunk string) []string {
	if f.cr {
		chunk = "\r" + chunk
		f.cr = false
	}
	if strings.HasSuffix(chunk, "\r") {
		chunk = chunk[:len(chunk)-1]
		f.cr = true
	}
	f.buf = append(f.buf, strings.ReplaceAll(chunk, "\r\n", "\n")...)

	var frames []string
	for {
		idx := bytes.Index(f.buf[f.scanned:], blankLine)
		if idx < 0 {
			// The last byte may be the first half of a blank line.
			f.scanned = max(len(f.buf)-1, 0)
			break
		}
		end := f.scanned + idx
		block := string(f.buf[:end])
		f.buf = f.buf[end+len(blankLine):]
		f.scanned = 0
		if payload, ok := parseBlock(block); ok {
			frames = append(frames, payload)
		}
	}
	return frames
}

// Flush treats any non-blank leftover as a final block.
func (f *SSEFramer) Flush() []string {
	rest := string(f.buf)
	if f.cr {
		rest += "\r"
	}
	f.buf, f.scanned, f.cr = nil, 0, false

	rest = strings.TrimRight(rest, "\r\n")
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	if payload, ok := parseBlock(rest); ok {
		return []string{payload}
	}
	return nil
}

// parseBlock joins the data: lines of one event block. Blocks without data,
// and the [DONE] terminator, produce nothing.
func parseBlock(block string) (string, bool) {
	var data []string
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		value := strings.TrimPrefix(line, "data:")
		value = strings.TrimPrefix(value, " ")
		data = append(data, value)
	}
	if len(data) == 0 {
		return "", false
	}
	payload := strings.Join(data, "\n")
	if payload == doneMarker {
		return "", false
	}
	return payload, true
}
