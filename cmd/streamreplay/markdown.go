package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvcrn/responses-bridge/internal/markdown"
	"github.com/spf13/cobra"
)

func markdownCommand() *cobra.Command {
	var (
		chunk     int
		tableMode string
	)
	cmd := &cobra.Command{
		Use:   "markdown [file]",
		Short: "Print the incremental parser events of a markdown document",
		Long: `markdown feeds the document to the incremental parser in fixed-size
chunks, as a stream would deliver it, and prints one line per event.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if chunk <= 0 {
				chunk = len(text) + 1
			}

			p := markdown.NewParser(markdown.Options{TableOutputMode: markdown.TableMode(tableMode)})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			doc := string(text)
			for len(doc) > 0 {
				n := min(chunk, len(doc))
				printEvents(tw, p.Write(doc[:n]))
				doc = doc[n:]
			}
			printEvents(tw, p.Close())
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 16, "bytes written to the parser at a time (0 for the whole document)")
	cmd.Flags().StringVar(&tableMode, "table-mode", string(markdown.TableText), "table output mode: text or structured")
	return cmd
}

func printEvents(w io.Writer, events []markdown.Event) {
	for _, ev := range events {
		var attrs []string
		if ev.Level > 0 {
			attrs = append(attrs, fmt.Sprintf("level=%d", ev.Level))
		}
		if ev.Lang != "" {
			attrs = append(attrs, "lang="+ev.Lang)
		}
		if ev.Ordered {
			attrs = append(attrs, "ordered")
		}
		if ev.Align != "" {
			attrs = append(attrs, "align="+ev.Align)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%q\t%s\n", ev.Kind, ev.Type, ev.ID, ev.Parent, ev.Text, strings.Join(attrs, " "))
	}
}
