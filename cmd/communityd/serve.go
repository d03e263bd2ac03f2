package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-community/app"
	"github.com/spf13/cobra"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		addr    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook dispatcher and maintenance jobs",
		Long: `Run the community API server.

Examples:
  communityd serve
  communityd serve --config community.yaml --addr :9000 --migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := app.LoadConfig(ctx, flags.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if migrate {
				cfg.Database.AutoMigrate = true
			}

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

func migrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := app.LoadConfig(ctx, flags.configPath)
			if err != nil {
				return err
			}
			if err := app.RunMigrations(ctx, cfg); err != nil {
				return err
			}
			cmd.Printf("migrations applied (%s)\n", cfg.Database.DatabaseDialect())
			return nil
		},
	}
}
