package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"joyrelay/internal/config"
	"joyrelay/internal/events"
)

func doctorCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the relay configuration",
		Long: `Verifies configuration, Telegram credentials, AI providers, transcription,
the listen port and the optional event broker. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("joyrelay doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, failed, warned := 0, 0, 0

			cfg, err := loadConfig(cmd)
			if err != nil {
				printFail("Config", err.Error())
				return fmt.Errorf("config invalid")
			}
			printPass("Config", "valid")
			passed++

			// Telegram
			switch {
			case cfg.Telegram.Token == "":
				printFail("Telegram token", config.ErrNoTelegramToken.Error())
				failed++
			case offline:
				printPass("Telegram token", "set (not verified)")
				passed++
			default:
				if name, err := checkBot(cmd.Context(), cfg); err != nil {
					printFail("Telegram token", err.Error())
					failed++
				} else {
					printPass("Telegram token", "@"+name)
					passed++
				}
			}
			if cfg.Telegram.ChatID == "" {
				printFail("Telegram chat", config.ErrNoTelegramChatID.Error())
				failed++
			} else {
				printPass("Telegram chat", cfg.Telegram.ChatID)
				passed++
			}
			if cfg.Telegram.WebhookSecret == "" {
				printWarn("Webhook secret", "not set; anyone can post updates")
				warned++
			}

			// AI providers
			enabled := 0
			for _, p := range []config.ProviderConfig{cfg.Providers.Primary, cfg.Providers.Fallback} {
				if p.Enabled() {
					printPass("Provider "+p.Name, p.Model+" @ "+p.APIBase)
					passed++
					enabled++
				} else {
					printWarn("Provider "+p.Name, "no API key")
					warned++
				}
			}
			if enabled == 0 {
				printFail("AI", "no provider configured; every reply will be the fallback text")
				failed++
			}

			if cfg.Whisper.APIKey == "" {
				printWarn("Transcription", "no key; voice notes use the placeholder")
				warned++
			} else {
				printPass("Transcription", cfg.Whisper.Model)
				passed++
			}

			if err := checkPort(cfg.Server.Addr()); err != nil {
				printWarn("Port", fmt.Sprintf("%s unavailable: %v", cfg.Server.Addr(), err))
				warned++
			} else {
				printPass("Port", cfg.Server.Addr()+" available")
				passed++
			}

			if cfg.Events.AMQPURL != "" && !offline {
				pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
				if err != nil {
					printFail("Event broker", err.Error())
					failed++
				} else {
					pub.Close()
					printPass("Event broker", "exchange "+cfg.Events.Exchange)
					passed++
				}
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip checks that call external services")
	return cmd
}

func checkBot(ctx context.Context, cfg *config.Config) (string, error) {
	tg, err := newTelegram(cfg)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := tg.GetMe(ctx)
	if err != nil {
		return "", err
	}
	if !resp.Ok {
		return "", fmt.Errorf("telegram: %s", resp.Description)
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp.Result, &me); err != nil {
		return "", fmt.Errorf("decode getMe: %w", err)
	}
	return me.Username, nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
