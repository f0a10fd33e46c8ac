// Package pipeline drives one upstream body through framing, decoding and
// reduction, yielding Responses events as the consumer pulls them.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/dvcrn/responses-bridge/internal/framer"
	"github.com/dvcrn/responses-bridge/internal/obs"
	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Config describes one stream.
type Config struct {
	Provider decode.Provider
	Framing  framer.Kind
	Stream   stream.Config
	Logger   zerolog.Logger
	// Metrics may be nil.
	Metrics *obs.Metrics
}

// Stream statuses recorded when a stream ends without a terminal event.
const (
	statusCanceled = "canceled"
	statusError    = "error"
)

// Events reads r to the end and yields the event sequence it encodes. It
// starts with Created; a body that ends without a completion marker is
// completed with what was accumulated. Reading stops at the first terminal
// event. When ctx is canceled or r fails, the error is yielded as the last
// element and no terminal event is produced.
func Events(ctx context.Context, r io.Reader, cfg Config) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		f, err := framer.New(cfg.Framing)
		if err != nil {
			yield(nil, err)
			return
		}
		dec, err := decode.New(cfg.Provider)
		if err != nil {
			yield(nil, err)
			return
		}

		provider := string(cfg.Provider)
		log := cfg.Logger.With().Str("provider", provider).Logger()
		state := stream.New(cfg.Stream)
		status := statusCanceled
		cfg.Metrics.StreamStarted(ctx, provider)
		defer func() {
			if state.Phase.Terminal() {
				status = state.Phase.String()
			}
			cfg.Metrics.StreamFinished(ctx, provider, status)
			log.Debug().
				Str("response_id", state.ResponseID).
				Str("status", status).
				Int("events", state.SequenceNumber).
				Msg("stream finished")
		}()

		emit := func(a stream.Action) bool {
			var events []stream.Event
			state, events = stream.Reduce(state, a)
			for _, ev := range events {
				cfg.Metrics.Event(ctx, ev.Type())
				if !yield(ev, nil) {
					return false
				}
			}
			return true
		}
		emitPieces := func(pieces []decode.Piece) bool {
			for _, p := range pieces {
				if !emit(Action(p)) {
					return false
				}
			}
			return true
		}

		if !emit(stream.Init{}) {
			return
		}
		for frame, err := range framer.Frames(ctx, r, f) {
			if err != nil {
				if ctx.Err() == nil {
					status = statusError
				}
				log.Warn().Err(err).Msg("upstream stream interrupted")
				yield(nil, err)
				return
			}
			valid := gjson.Valid(frame)
			cfg.Metrics.Frame(ctx, provider, !valid)
			if !valid {
				log.Debug().Str("frame", truncate(frame, 128)).Msg("skipping malformed frame")
				continue
			}
			if !emitPieces(dec.Decode(frame)) || state.Phase.Terminal() {
				return
			}
		}

		if !emitPieces(dec.Flush()) {
			return
		}
		if !state.Phase.Terminal() {
			log.Debug().Msg("upstream ended without a finish marker")
			emit(stream.Complete{})
		}
	}
}

// Action maps a decoded piece onto the reducer action it drives.
func Action(p decode.Piece) stream.Action {
	switch p := p.(type) {
	case decode.Text:
		return stream.Text{Fragment: p.Text}
	case decode.ToolCall:
		return stream.ToolCall{Name: p.Name, Arguments: p.Arguments, CallID: p.CallID}
	case decode.Completion:
		return stream.Complete{Reason: p.Reason, Usage: usage(p.Usage)}
	case decode.Error:
		return stream.Fail{Code: p.Code, Message: p.Message}
	}
	panic(fmt.Sprintf("pipeline: unhandled piece %T", p))
}

func usage(u *decode.Usage) *stream.Usage {
	if u == nil {
		return nil
	}
	return &stream.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		OutputTokensDetails: stream.OutputTokensDetails{
			ReasoningTokens: u.ReasoningTokens,
		},
		TotalTokens: u.TotalTokens,
	}
}

// WriteSSE writes each event as an SSE block named after its type, flushing
// after every block when w supports it. It returns the first stream or write
// error.
func WriteSSE(w io.Writer, events iter.Seq2[stream.Event, error]) error {
	flusher, _ := w.(http.Flusher)
	for ev, err := range events {
		if err != nil {
			return err
		}
		data, err := ev.MarshalJSON()
		if err != nil {
			return fmt.Errorf("pipeline: encode %s: %w", ev.Type(), err)
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
			return fmt.Errorf("pipeline: write: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
