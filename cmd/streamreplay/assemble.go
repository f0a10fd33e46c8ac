package main

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/dvcrn/responses-bridge/internal/assemble"
	"github.com/dvcrn/responses-bridge/internal/framer"
	"github.com/dvcrn/responses-bridge/internal/stream"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func assembleCommand() *cobra.Command {
	var (
		flags    pipelineFlags
		upstream bool
	)
	cmd := &cobra.Command{
		Use:   "assemble [file]",
		Short: "Rebuild the final response from a captured event stream",
		Long: `assemble reads a Responses SSE capture and prints the response it
describes. Captures that stop early produce an incomplete response. With
--upstream the input is a raw backend body, decoded as by the events command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			var events iter.Seq2[stream.Event, error]
			if upstream {
				if events, err = flags.events(cmd, in); err != nil {
					return err
				}
			} else {
				events = capturedEvents(cmd.Context(), in)
			}

			resp, err := assemble.Assemble(events)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&upstream, "upstream", false, "input is a raw backend body rather than Responses events")
	return cmd
}

// capturedEvents parses a Responses SSE capture.
func capturedEvents(ctx context.Context, r io.Reader) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		for frame, err := range framer.Frames(ctx, r, framer.NewSSE()) {
			if err != nil {
				yield(nil, err)
				return
			}
			ev, err := stream.ParseEvent([]byte(frame))
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
