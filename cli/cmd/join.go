package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/readyup/internal/domain"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Connect as a participant and answer prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Printf("Joined as %s. Answer with r or n, /quit to exit.\n", client.participantID)

		go func() {
			if err := client.ReadMessages(nil); err != nil {
				log.Printf("Read error: %v", err)
			}
		}()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- strings.TrimSpace(scanner.Text())
			}
			close(lines)
		}()

		for {
			select {
			case <-interrupt:
				fmt.Println("\nInterrupted")
				return nil
			case input, ok := <-lines:
				if !ok || input == "/quit" {
					return nil
				}
				action, known := parseAnswer(input)
				if !known {
					if input != "" {
						fmt.Println("type r, n or /quit")
					}
					continue
				}
				if err := client.Answer(action); err != nil {
					log.Printf("Send error: %v", err)
				}
			}
		}
	},
}

func parseAnswer(input string) (domain.Action, bool) {
	switch strings.ToLower(input) {
	case "r", "ready", "y":
		return domain.ActionMarkReady, true
	case "n", "not", "not ready":
		return domain.ActionMarkNotReady, true
	default:
		return domain.ActionUnrecognized, false
	}
}
