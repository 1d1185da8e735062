package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [url]",
		Short: "Register url (e.g. https://relay.example/telegram/webhook) with Telegram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTelegramCall(cmd, func(ctx context.Context, tg telegramAdmin, secret string) (*tgbotapi.APIResponse, error) {
				return tg.SetWebhook(ctx, args[0], secret)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTelegramCall(cmd, func(ctx context.Context, tg telegramAdmin, _ string) (*tgbotapi.APIResponse, error) {
				return tg.WebhookInfo(ctx)
			})
		},
	})

	return cmd
}

func botCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Inspect the Telegram bot",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the bot identity (getMe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTelegramCall(cmd, func(ctx context.Context, tg telegramAdmin, _ string) (*tgbotapi.APIResponse, error) {
				return tg.GetMe(ctx)
			})
		},
	})
	return cmd
}

type telegramAdmin interface {
	SetWebhook(ctx context.Context, url, secret string) (*tgbotapi.APIResponse, error)
	WebhookInfo(ctx context.Context) (*tgbotapi.APIResponse, error)
	GetMe(ctx context.Context) (*tgbotapi.APIResponse, error)
}

// runTelegramCall performs one Bot API call and prints the raw response.
func runTelegramCall(cmd *cobra.Command, call func(context.Context, telegramAdmin, string) (*tgbotapi.APIResponse, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tg, err := newTelegram(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	resp, err := call(ctx, tg, cfg.Telegram.WebhookSecret)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}
