package main

import (
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/dvcrn/responses-bridge/internal/framer"
	"github.com/dvcrn/responses-bridge/internal/logger"
	"github.com/dvcrn/responses-bridge/internal/markdown"
	"github.com/dvcrn/responses-bridge/internal/pipeline"
	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// pipelineFlags are shared by the commands that decode raw backend bodies.
type pipelineFlags struct {
	provider       string
	framing        string
	model          string
	chunkSize      int
	flushThreshold int
	tableMode      string
	randomIDs      bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", string(decode.Gemini), "backend dialect: gemini, openai or anthropic")
	cmd.Flags().StringVar(&f.framing, "framing", "", "body framing: sse or json (default: json for gemini, sse otherwise)")
	cmd.Flags().StringVar(&f.model, "model", "replay", "model name reported in the response")
	cmd.Flags().IntVar(&f.chunkSize, "max-delta-chunk-size", 0, "merge prose tokens up to this many bytes")
	cmd.Flags().IntVar(&f.flushThreshold, "prose-flush-threshold", 0, "prose held before word-boundary flushing")
	cmd.Flags().StringVar(&f.tableMode, "table-mode", string(markdown.TableText), "table output mode: text or structured")
	cmd.Flags().BoolVar(&f.randomIDs, "random-ids", false, "use random ids instead of reproducible sequential ones")
}

func (f *pipelineFlags) config(cmd *cobra.Command) (pipeline.Config, error) {
	provider := decode.Provider(f.provider)
	if _, err := decode.New(provider); err != nil {
		return pipeline.Config{}, err
	}
	kind := framer.Kind(f.framing)
	if kind == "" {
		kind = framer.SSE
		if provider == decode.Gemini {
			kind = framer.BracketedJSON
		}
	}

	ids := stream.SequentialIDs
	if f.randomIDs {
		ids = stream.RandomIDs
	}
	return pipeline.Config{
		Provider: provider,
		Framing:  kind,
		Stream: stream.Config{
			Model: f.model,
			Markdown: markdown.Options{
				MaxDeltaChunkSize:   f.chunkSize,
				ProseFlushThreshold: f.flushThreshold,
				TableOutputMode:     markdown.TableMode(f.tableMode),
			},
			IDs: ids,
			Now: time.Now,
		},
		Logger: commandLogger(cmd),
	}, nil
}

func commandLogger(cmd *cobra.Command) zerolog.Logger {
	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logger.NewWithOptions(logger.Options{Env: "dev", Level: level})
}

func (f *pipelineFlags) events(cmd *cobra.Command, r io.Reader) (iter.Seq2[stream.Event, error], error) {
	cfg, err := f.config(cmd)
	if err != nil {
		return nil, err
	}
	return pipeline.Events(cmd.Context(), r, cfg), nil
}

func eventsCommand() *cobra.Command {
	var (
		flags pipelineFlags
		jsonl bool
	)
	cmd := &cobra.Command{
		Use:   "events [file]",
		Short: "Print the Responses events of a captured backend body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			events, err := flags.events(cmd, in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !jsonl {
				return pipeline.WriteSSE(out, events)
			}
			for ev, err := range events {
				if err != nil {
					return err
				}
				b, err := ev.MarshalJSON()
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(out, "%s\n", b); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "one JSON event per line instead of SSE")
	return cmd
}
