package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "readyup-cli",
	Short:        "Join and start readyups from the terminal",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	log.SetFlags(log.Ltime)

	rootCmd.PersistentFlags().String("addr", "ws://localhost:8090/ws", "WebSocket server address")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().String("user", "", "Participant ID (required)")
	rootCmd.PersistentFlags().String("name", "", "Display name")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(startCmd)
}

// connect dials the server and completes the hello handshake using the
// persistent flags.
func connect(cmd *cobra.Command) (*Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	apiKey, _ := cmd.Flags().GetString("api-key")
	user, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")

	client, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	if err := client.SendHello(user, name, apiKey); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
