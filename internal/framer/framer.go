// Package framer recovers complete textual frames from an arbitrarily chunked
// upstream transport.
package framer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Kind selects the wire discipline of an upstream stream.
type Kind string

const (
	// SSE is the text/event-stream convention: blank-line separated blocks of data: lines.
	SSE Kind = "sse"
	// BracketedJSON is a single top-level JSON array streamed element by element.
	BracketedJSON Kind = "json"
)

// ErrUnknownKind is returned by New for an unsupported framing kind.
var ErrUnknownKind = errors.New("framer: unknown kind")

// Framer turns raw transport chunks into complete frames. Push may be called
// any number of times; Flush is called once when the transport ends.
type Framer interface {
	Push(chunk string) []string
	Flush() []string
}

var (
	_ Framer = (*SSEFramer)(nil)
	_ Framer = (*BracketedJSONFramer)(nil)
)

// New returns a fresh framer for kind.
func New(kind Kind) (Framer, error) {
	switch kind {
	case SSE:
		return NewSSE(), nil
	case BracketedJSON:
		return NewBracketedJSON(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

const readSize = 32 * 1024

// Frames lazily pulls chunks from r and yields every frame f recovers. The
// sequence ends after the transport's end-of-input has been flushed, after a
// read error, or when ctx is canceled. In the error cases the error is yielded
// once as the final element.
func Frames(ctx context.Context, r io.Reader, f Framer) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		buf := make([]byte, readSize)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			n, err := r.Read(buf)
			if n > 0 {
				for _, frame := range f.Push(string(buf[:n])) {
					if !yield(frame, nil) {
						return
					}
				}
			}

			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				for _, frame := range f.Flush() {
					if !yield(frame, nil) {
						return
					}
				}
				return
			}
			// A read interrupted by cancellation reports the context error.
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			yield("", fmt.Errorf("framer: read: %w", err))
			return
		}
	}
}
