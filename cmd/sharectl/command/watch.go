package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"locshare-relay/client"
	"locshare-relay/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every event other peers share until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		subscribeAll(c, os.Stdout)

		select {
		case <-ctx.Done():
		case <-c.Done():
			return fmt.Errorf("relay closed the connection")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

var kindColors = map[domain.Kind]*color.Color{
	domain.KindScreenShareRequest:    color.New(color.FgYellow, color.Bold),
	domain.KindScreenShareAccepted:   color.New(color.FgGreen, color.Bold),
	domain.KindScreenShareDeclined:   color.New(color.FgRed, color.Bold),
	domain.KindScreenUpdate:          color.New(color.FgMagenta),
	domain.KindLocationUpdate:        color.New(color.FgCyan),
	domain.KindTextAndLocationUpdate: color.New(color.FgBlue),
}

func subscribeAll(c *client.Client, w io.Writer) {
	for kind := range kindColors {
		kind := kind
		c.On(kind, func(payload json.RawMessage) {
			printEvent(w, kind, payload)
		})
	}
}

func printEvent(w io.Writer, kind domain.Kind, payload json.RawMessage) {
	label := color.New(color.Reset)
	if c, ok := kindColors[kind]; ok {
		label = c
	}
	fmt.Fprintf(w, "%s %s %s\n",
		time.Now().Format("15:04:05"),
		label.Sprintf("%-22s", kind),
		describe(kind, payload))
}

func describe(kind domain.Kind, payload json.RawMessage) string {
	switch kind {
	case domain.KindScreenShareRequest:
		var id string
		if json.Unmarshal(payload, &id) == nil {
			return fmt.Sprintf("from %s (sharectl share accept %s)", id, id)
		}
	case domain.KindScreenShareAccepted:
		var id string
		if json.Unmarshal(payload, &id) == nil {
			return "by " + id
		}
	case domain.KindScreenShareDeclined:
		return ""
	case domain.KindLocationUpdate:
		var loc domain.Location
		if json.Unmarshal(payload, &loc) == nil {
			return formatLocation(loc)
		}
	case domain.KindTextAndLocationUpdate:
		var tl domain.TextAndLocation
		if json.Unmarshal(payload, &tl) == nil {
			return fmt.Sprintf("%q at %s", tl.Text, formatLocation(domain.Location{Latitude: tl.Latitude, Longitude: tl.Longitude}))
		}
	case domain.KindScreenUpdate:
		var sd domain.ScreenData
		if json.Unmarshal(payload, &sd) == nil {
			return fmt.Sprintf("%s at %s", sd.Timestamp, formatLocation(sd.Location))
		}
	}
	return string(payload)
}

func formatLocation(loc domain.Location) string {
	return fmt.Sprintf("%.6f, %.6f", loc.Latitude, loc.Longitude)
}
