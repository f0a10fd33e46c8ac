// Command streamreplay runs captured upstream bodies and event streams
// through the normalization engine offline.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamreplay",
		Short: "Replay captured AI completion streams",
		Long: `streamreplay feeds captured backend response bodies through the same
framing, decoding and reduction pipeline the bridge uses, and prints the
resulting Responses events, the assembled response, or markdown parser events.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(eventsCommand())
	rootCmd.AddCommand(assembleCommand())
	rootCmd.AddCommand(markdownCommand())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openInput opens the named file, or stdin for "-" or no argument.
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
