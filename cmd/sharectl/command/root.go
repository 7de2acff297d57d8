package command

// root.go holds the global flags and the connection helper shared by every
// subcommand.

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"locshare-relay/client"
)

var (
	serverURL   string
	dialTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "sharectl",
	Short: "sharectl - talk to a location share relay",
	Long: `sharectl connects to a location share relay and acts like the mobile app:
- watch what other peers share
- send location, text and simulated screen updates
- ask peers to view your screen, and accept or decline their requests`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("RELAY_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "relay address (env RELAY_URL)")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "timeout", 5*time.Second, "connection timeout")
}

func connect(ctx context.Context) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := client.Dial(dialCtx, serverURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", serverURL, err)
	}
	color.New(color.FgHiBlack).Printf("connected to %s as %s\n", serverURL, c.ID())
	return c, nil
}
