package config

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// JoyGirlPrompt is the persona sent as the system message on every completion.
const JoyGirlPrompt = `You are Joy Girl, a cheerful, friendly AI assistant.
You live in a cute ESP32 device with a tiny OLED screen.
Keep responses SHORT (under 40 words) - the screen is small!
Be enthusiastic and helpful. Use emojis sometimes.`

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             10000,
			ChunkSize:        120,
			DefaultMaxTokens: 60,

			WebhookTimeoutSeconds: 240,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telegram: TelegramConfig{
			APIEndpoint:    tgbotapi.APIEndpoint,
			FileEndpoint:   tgbotapi.FileEndpoint,
			TimeoutSeconds: 30,
		},
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				Name:    "deepseek",
				APIBase: "https://api.deepseek.com/v1",
				Model:   "deepseek-chat",
			},
			Fallback: ProviderConfig{
				Name:    "openai",
				APIBase: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			SystemPrompt:   JoyGirlPrompt,
			Temperature:    0.7,
			TimeoutSeconds: 30,
		},
		Whisper: WhisperConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "whisper-1",
			Placeholder:    "Hello Joy Girl",
			TimeoutSeconds: 60,
		},
		Mailbox: MailboxConfig{
			MaxMessages: 20,
		},
		Events: EventsConfig{
			Exchange:       "joyrelay.events",
			TimeoutSeconds: 5,
		},
	}
}
