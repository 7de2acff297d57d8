package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"locshare-relay/client"
	"locshare-relay/domain"
)

var (
	latitude  float64
	longitude float64
	interval  time.Duration
	count     int
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Share a location once, or repeatedly with --interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := domain.Location{Latitude: latitude, Longitude: longitude}
		return repeat(cmd.Context(), func(c *client.Client) error {
			return c.SendLocation(loc)
		}, "location "+formatLocation(loc))
	},
}

var textCmd = &cobra.Command{
	Use:   "text <message>",
	Short: "Share a text together with a location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		loc := domain.Location{Latitude: latitude, Longitude: longitude}
		return repeat(cmd.Context(), func(c *client.Client) error {
			return c.SendTextAndLocation(text, loc)
		}, fmt.Sprintf("text %q at %s", text, formatLocation(loc)))
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Stream simulated screen data (timestamp and location), every second unless --interval is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("interval") {
			interval = time.Second
		}
		loc := domain.Location{Latitude: latitude, Longitude: longitude}
		return repeat(cmd.Context(), func(c *client.Client) error {
			return c.SendScreenData(time.Now(), loc)
		}, "screen frame at "+formatLocation(loc))
	},
}

func init() {
	for _, cmd := range []*cobra.Command{locationCmd, textCmd, screenCmd} {
		cmd.Flags().Float64Var(&latitude, "lat", 0, "latitude in degrees")
		cmd.Flags().Float64Var(&longitude, "lng", 0, "longitude in degrees")
		cmd.Flags().DurationVar(&interval, "interval", 0, "repeat every interval (0 sends once)")
		cmd.Flags().IntVar(&count, "count", 0, "stop after this many sends (0 means until interrupted)")
		rootCmd.AddCommand(cmd)
	}
}

// repeat sends once, or every interval until count is reached or the user
// interrupts.
func repeat(parent context.Context, send func(*client.Client) error, what string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sent := color.New(color.FgGreen).SprintFunc()
	for n := 1; ; n++ {
		if err := send(c); err != nil {
			return err
		}
		fmt.Println(sent("sent"), what)

		if interval <= 0 || (count > 0 && n >= count) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("relay closed the connection")
		case <-time.After(interval):
		}
	}
}
