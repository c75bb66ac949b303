package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "collabcli",
		Short: "Headless client for a collabpad server",
		Long: `collabcli speaks the collabpad websocket protocol from a terminal.

It can follow a shared document, push content into it, type text with the
same space/newline transmission rule as the browser editor, and list the
connected users.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("COLLAB_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "server base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "connect and request timeout")

	rootCmd.AddCommand(
		watchCmd(opts),
		sendCmd(opts),
		typeCmd(opts),
		usersCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
