package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "classboard",
		Short: "Real-time classroom whiteboard, chat and poll server",
		Long: `Classboard runs a single shared classroom: a whiteboard, a chat and
single-question polls. The first participant to join becomes the teacher.

Clients speak a newline-delimited, pipe-separated line protocol over raw TCP
or over WebSocket at /ws.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
