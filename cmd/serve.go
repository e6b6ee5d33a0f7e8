package cmd

import (
	"fmt"

	"github.com/DachengChen/sqlchat/ai"
	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/db"
	"github.com/DachengChen/sqlchat/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr  string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference NL2SQL backend",
		Long: `Serve POST /nl2sql/ backed by an AI provider and a PostgreSQL database.
Only single SELECT statements are executed, inside a read-only transaction.

At most server.max_rows rows (default 50) are returned per question. When a
result is cut, the response carries an X-Row-Limit header with the cap, and
the chat's "more rows" note counts from the capped set, not the full table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			closeLog := openLog()
			defer closeLog()

			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			provider, err := ai.NewProvider(cfg.AI)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			database, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			srv := server.New(provider, database, server.Options{
				MaxRows:        cfg.Server.MaxRows,
				CacheTTL:       cfg.Server.CacheTTL(),
				AllowedOrigins: cfg.Server.AllowedOrigins,
			})

			fmt.Fprintf(cmd.OutOrStdout(), "sqlchat backend on http://%s (provider %s)\n", cfg.Server.Addr, provider.Name())
			applog.Info("serve: addr=%s provider=%s", cfg.Server.Addr, provider.Name())
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "gin debug mode")
	return cmd
}
