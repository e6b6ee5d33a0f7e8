// Package cmd contains all Cobra commands for sqlchat.
//
// Running `sqlchat` with no subcommand starts the chat TUI against the
// configured NL2SQL service. `ask` sends a single question, `serve` runs
// the reference backend and `config` shows or initializes settings.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/chat"
	"github.com/DachengChen/sqlchat/config"
	"github.com/DachengChen/sqlchat/nl2sql"
	"github.com/DachengChen/sqlchat/tui"
	"github.com/spf13/cobra"
)

// Flags shared by every command.
type globalFlags struct {
	configPath string
	baseURL    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "sqlchat",
		Short: "Chat with your database in plain language",
		Long: `sqlchat is a terminal chat client for an NL2SQL service:
  • Ask a question, get the generated SQL and its result rows
  • One question at a time, answers appear as chat bubbles
  • Raw JSON debug panel (F2)
  • Bundled reference backend (sqlchat serve)

Run 'sqlchat --base-url http://localhost:8001' to start the TUI.`,
		SilenceUsage: true,
		// Running with no subcommand launches the TUI.
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
			applog.Info("starting TUI against %s", client.Endpoint())
			return tui.Start(cmd.Context(), chat.NewSession(client), client.Endpoint())
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.sqlchat/config.json)")
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "NL2SQL service base URL (overrides SQLCHAT_BASE_URL)")

	root.AddCommand(
		newAskCmd(flags),
		newServeCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// load reads the config file, .env and environment, then applies flags.
func (f *globalFlags) load() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadAppConfig()
	}
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		cfg.API.BaseURL = f.baseURL
	}
	return cfg, nil
}

// clientConfig loads config and checks the chat client can start.
func (f *globalFlags) clientConfig() (*config.AppConfig, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLog starts file logging. A failure leaves logging disabled rather
// than blocking the command.
func openLog() func() {
	dir, err := config.LogDir()
	if err != nil {
		return func() {}
	}
	if err := applog.Open(dir); err != nil {
		return func() {}
	}
	return applog.Close
}

// Execute runs the root command. SIGINT/SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
