package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"joyrelay/internal/bus"
	"joyrelay/internal/channel"
	"joyrelay/internal/config"
	"joyrelay/internal/events"
	"joyrelay/internal/mailbox"
	"joyrelay/internal/metrics"
	"joyrelay/internal/provider"
	"joyrelay/internal/relay"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Long:  "Serves the device, webhook and chat endpoints until SIGINT or SIGTERM.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tg, err := newTelegram(cfg)
	if err != nil {
		return err
	}
	if !tg.Configured() {
		logger.Warn("TELEGRAM_BOT_TOKEN not set: notify and replies are disabled")
	}

	providerClient, err := provider.NewHTTPClient(cfg.Providers.Timeout(), cfg.Proxy.SOCKS5)
	if err != nil {
		return err
	}
	responder := provider.NewResponderFromConfig(cfg, providerClient, logger)
	logger.Info("AI providers", "chain", responder.Name())

	whisperClient, err := provider.NewHTTPClient(cfg.Whisper.Timeout(), cfg.Proxy.SOCKS5)
	if err != nil {
		return err
	}
	whisper := provider.NewWhisperFromConfig(cfg.Whisper, whisperClient, logger)
	if !whisper.Enabled() {
		logger.Warn("no transcription key: voice notes use the placeholder transcript")
	}

	mb := mailbox.New(cfg.Mailbox.MaxMessages)
	eventBus := bus.New(logger)

	if cfg.Events.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Error("event publishing disabled", "err", err)
		} else {
			defer pub.Close()
			events.Forward(eventBus, pub, cfg.Events.Timeout(), logger)
			logger.Info("event publishing enabled", "exchange", cfg.Events.Exchange)
		}
	}

	ingest := relay.NewIngest(relay.IngestConfig{
		Notifier:    tg,
		Files:       tg,
		Transcriber: whisper,
		Responder:   responder,
		Mailbox:     mb,
		Bus:         eventBus,
		MaxTokens:   cfg.Server.DefaultMaxTokens,
		Logger:      logger,
	})
	trigger := relay.NewTrigger(relay.TriggerConfig{
		Notifier: tg,
		TokenSet: tg.Configured(),
		ChatID:   cfg.Telegram.ChatID,
		Mailbox:  mb,
		Bus:      eventBus,
		Logger:   logger,
	})

	gw := channel.NewGateway(channel.GatewayConfig{
		Addr:             cfg.Server.Addr(),
		Version:          version,
		AIName:           responder.Name(),
		WebhookSecret:    cfg.Telegram.WebhookSecret,
		ChunkSize:        cfg.Server.ChunkSize,
		DefaultMaxTokens: cfg.Server.DefaultMaxTokens,
		WebhookTimeout:   cfg.Server.WebhookTimeout(),
		Telegram:         tg,
		Ingest:           ingest,
		Trigger:          trigger,
		Mailbox:          mb,
		Responder:        responder,
		Metrics:          metrics.Handler(),
		Logger:           logger,
	})

	logger.Info("joyrelay starting", "version", version, "addr", cfg.Server.Addr(), "mailbox", mb.Capacity())
	if err := gw.Start(ctx); err != nil {
		return err
	}
	logger.Info("joyrelay stopped")
	return nil
}

func newTelegram(cfg *config.Config) (*channel.Telegram, error) {
	client, err := provider.NewHTTPClient(cfg.Telegram.Timeout(), cfg.Proxy.SOCKS5)
	if err != nil {
		return nil, fmt.Errorf("telegram http client: %w", err)
	}
	return channel.NewTelegram(channel.TelegramConfig{
		Token:         cfg.Telegram.Token,
		DefaultChatID: cfg.Telegram.ChatID,
		APIEndpoint:   cfg.Telegram.APIEndpoint,
		FileEndpoint:  cfg.Telegram.FileEndpoint,
		HTTPClient:    client,
		Logger:        logger,
	}), nil
}
