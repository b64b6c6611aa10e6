package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredraw-server/internal/app"
	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/config"
	applog "github.com/vovakirdan/wiredraw-server/internal/log"
	"github.com/vovakirdan/wiredraw-server/internal/utils"
)

type rootOptions struct {
	configPath string
	addr       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "wiredraw-server",
		Short:         "Collaborative drawing board relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "HTTP listen address")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the relay server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, opts)
			},
		},
		newTokenCmd(opts),
		newHashCmd(),
	)
	return root
}

// loadConfig resolves configuration; flags win over file and env.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	bootLog := applog.New("info")
	cfg, path, err := config.Load(bootLog, opts.configPath)
	if err != nil {
		return cfg, err
	}

	var override config.Config
	flags := cmd.Flags()
	if flags.Changed("addr") {
		override.Addr = opts.addr
	}
	if flags.Changed("log-level") {
		override.LogLevel = opts.logLevel
	}
	cfg.UpdateFrom(override)
	bootLog.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := applog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("admission", cfg.AdmissionMode).Msg("starting wiredraw server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var room, name string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an invitation link for a room",
		Long: "Print an invitation link for a room. In token admission mode the link " +
			"carries a signed admission token.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if room == "" {
				room = utils.NewRoomID()
			}
			if !utils.ValidRoomID(room) {
				return fmt.Errorf("invalid room id %q", room)
			}

			if cfg.AdmissionMode == config.AdmissionToken && cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			link, err := auth.NewService(nil, app.AdmissionConfig(&cfg)).Link(room, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "room:  %s\n", link.Room)
			fmt.Fprintf(out, "url:   %s\n", link.URL)
			if link.Token != "" {
				fmt.Fprintf(out, "token: %s\n", link.Token)
				fmt.Fprintf(out, "expires: %s\n", link.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name embedded in the token")
	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <secret>",
		Short: "Hash a shared secret or issuer key for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
