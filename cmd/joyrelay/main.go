package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"joyrelay/internal/config"
)

var (
	version    = "4.1.0"
	logger     *slog.Logger
	configPath string
	envFile    string
	overrides  config.Overrides
)

func main() {
	logger = newLogger("info", "text")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "joyrelay",
		Short: "Joy Girl relay: IR trigger → Telegram → OLED",
		Long: `joyrelay notifies a Telegram chat when the device's IR sensor fires,
turns the human reply (text or voice) into a short AI answer, and keeps the
last answers in a mailbox the device polls.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "optional YAML config file; environment variables override it")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	overrides.BindFlags(pf)

	root.AddCommand(serveCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(botCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is fine.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		logger.Debug("loaded env file", "path", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// loadConfig loads configuration, applies flag overrides and rebuilds the
// global logger from the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := overrides.Apply(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	logger = newLogger(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "joyrelay", version)
		},
	}
}
