package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DachengChen/sqlchat/chat"
	"github.com/DachengChen/sqlchat/nl2sql"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	askErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	askDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// newAskCmd sends one question through a chat session and prints the
// assistant's answer. A backend or transport error is an answer too, so
// it does not fail the command.
func newAskCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.clientConfig()
			if err != nil {
				return err
			}
			closeLog := openLog()
			defer closeLog()

			client, err := nl2sql.NewClient(cfg.API.BaseURL)
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			session := chat.NewSession(client)
			if !session.Send(cmd.Context(), question) {
				return fmt.Errorf("question is empty")
			}

			state := session.Snapshot()
			answer := state.Messages[len(state.Messages)-1].Text

			out := cmd.OutOrStdout()
			if _, isErr := state.LastResponse.(*nl2sql.BackendError); isErr {
				fmt.Fprintln(out, askErrorStyle.Render(answer))
			} else {
				fmt.Fprintln(out, answer)
			}

			if asJSON {
				raw, err := json.MarshalIndent(state.LastResponse, "", "  ")
				if err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, askDimStyle.Render("Raw response:"))
				fmt.Fprintln(out, string(raw))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "also print the raw JSON response")
	return cmd
}
