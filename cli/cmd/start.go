package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xiaot623/readyup/internal/protocol"
)

var startCmd = &cobra.Command{
	Use:   "start [event] [time window]",
	Short: "Start a readyup in the channel",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := protocol.StartReadyUpMessage{}
		if len(args) > 0 {
			msg.EventLabel = args[0]
		}
		if len(args) > 1 {
			msg.TimeWindowLabel = args[1]
		}
		msg.TimeoutSeconds, _ = cmd.Flags().GetInt("timeout")
		msg.ReadyThreshold, _ = cmd.Flags().GetInt("ready")
		msg.NotReadyThreshold, _ = cmd.Flags().GetInt("not-ready")
		msg.OrganizerReady, _ = cmd.Flags().GetBool("me-ready")
		follow, _ := cmd.Flags().GetBool("follow")

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.SendStart(msg); err != nil {
			return err
		}

		return client.ReadMessages(func(base protocol.BaseMessage, _ []byte) bool {
			switch base.Type {
			case protocol.TypeError:
				return true
			case protocol.TypeReadyUpStarted:
				return !follow
			case protocol.TypeMessage:
				return follow
			}
			return false
		})
	},
}

func init() {
	startCmd.Flags().Int("timeout", 0, "Seconds before the readyup times out (0 uses the server default)")
	startCmd.Flags().Int("ready", 0, "Ready responses needed (0 uses the server default)")
	startCmd.Flags().Int("not-ready", 0, "Not-ready responses that cancel (0 uses the server default)")
	startCmd.Flags().Bool("me-ready", false, "Count yourself as ready")
	startCmd.Flags().Bool("follow", false, "Stay connected until the result is posted")
}
