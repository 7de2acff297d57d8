package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"locshare-relay/domain"
)

var wait time.Duration

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Screen share handshake: request, accept or decline",
}

var shareRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask every other peer who wants to view your screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		answers := make(chan string, 16)
		c.On(domain.KindScreenShareAccepted, func(payload json.RawMessage) {
			var viewer string
			json.Unmarshal(payload, &viewer)
			announce(answers, color.GreenString("accepted by %s", viewer))
		})
		c.On(domain.KindScreenShareDeclined, func(json.RawMessage) {
			announce(answers, color.RedString("declined"))
		})

		if err := c.RequestScreenShare(); err != nil {
			return err
		}
		fmt.Println("screen share requested as", c.ID())
		if wait <= 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()
		for {
			select {
			case answer := <-answers:
				fmt.Println(answer)
			case <-c.Done():
				return fmt.Errorf("relay closed the connection")
			case <-ctx.Done():
				return nil
			}
		}
	},
}

var shareAcceptCmd = &cobra.Command{
	Use:   "accept <requester-id>",
	Short: "Accept a peer's screen share request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.AcceptScreenShare(args[0]); err != nil {
			return err
		}
		fmt.Println(color.GreenString("accepted"), args[0])
		return nil
	},
}

var shareDeclineCmd = &cobra.Command{
	Use:   "decline <requester-id>",
	Short: "Decline a peer's screen share request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeclineScreenShare(args[0]); err != nil {
			return err
		}
		fmt.Println(color.RedString("declined"), args[0])
		return nil
	},
}

// announce never blocks the client's read loop.
func announce(ch chan<- string, msg string) {
	select {
	case ch <- msg:
	default:
	}
}

func init() {
	shareRequestCmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for answers (0 returns immediately)")
	shareCmd.AddCommand(shareRequestCmd, shareAcceptCmd, shareDeclineCmd)
	rootCmd.AddCommand(shareCmd)
}
