package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Missing-credential errors. Callers surface these as structured error
// values instead of failing startup.
var (
	ErrNoTelegramToken  = errors.New("TELEGRAM_BOT_TOKEN not set")
	ErrNoTelegramChatID = errors.New("TELEGRAM_CHAT_ID not set")
)

// Config is the root configuration for joyrelay.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	Providers ProvidersConfig `yaml:"providers" json:"providers"`
	Whisper   WhisperConfig   `yaml:"whisper" json:"whisper"`
	Mailbox   MailboxConfig   `yaml:"mailbox" json:"mailbox"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	Proxy     ProxyConfig     `yaml:"proxy" json:"proxy"`
}

type ServerConfig struct {
	Host             string `yaml:"host" json:"host"`
	Port             int    `yaml:"port" json:"port"`
	ChunkSize        int    `yaml:"chunkSize" json:"chunkSize"`               // OLED chunk width for /chat/esp32
	DefaultMaxTokens int    `yaml:"defaultMaxTokens" json:"defaultMaxTokens"` // used by webhook replies and /chat defaults

	WebhookTimeoutSeconds int `yaml:"webhookTimeoutSeconds" json:"webhookTimeoutSeconds"` // end-to-end budget for one Telegram update
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug | info | warn | error
	Format string `yaml:"format" json:"format"` // text | json | tint
}

type TelegramConfig struct {
	Token          string `yaml:"token" json:"token"`
	ChatID         string `yaml:"chatId" json:"chatId"` // recipient of trigger notifications
	WebhookSecret  string `yaml:"webhookSecret,omitempty" json:"webhookSecret,omitempty"`
	APIEndpoint    string `yaml:"apiEndpoint,omitempty" json:"apiEndpoint,omitempty"`   // fmt pattern: token, method
	FileEndpoint   string `yaml:"fileEndpoint,omitempty" json:"fileEndpoint,omitempty"` // fmt pattern: token, file path
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

type ProvidersConfig struct {
	Primary        ProviderConfig `yaml:"primary" json:"primary"`
	Fallback       ProviderConfig `yaml:"fallback" json:"fallback"`
	SystemPrompt   string         `yaml:"systemPrompt" json:"systemPrompt"`
	Temperature    float64        `yaml:"temperature" json:"temperature"`
	TimeoutSeconds int            `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

// ProviderConfig describes one OpenAI-compatible chat completion endpoint.
// A provider without an API key is not part of the chain.
type ProviderConfig struct {
	Name    string `yaml:"name" json:"name"`
	APIBase string `yaml:"apiBase" json:"apiBase"`
	APIKey  string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Model   string `yaml:"model" json:"model"`
}

func (p ProviderConfig) Enabled() bool { return p.APIKey != "" }

type WhisperConfig struct {
	APIBase        string `yaml:"apiBase" json:"apiBase"`
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Model          string `yaml:"model" json:"model"`
	Language       string `yaml:"language,omitempty" json:"language,omitempty"`
	Placeholder    string `yaml:"placeholder" json:"placeholder"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

type MailboxConfig struct {
	MaxMessages int `yaml:"maxMessages" json:"maxMessages"`
}

// EventsConfig enables publishing relay events to RabbitMQ when AMQPURL is set.
type EventsConfig struct {
	AMQPURL        string `yaml:"amqpUrl,omitempty" json:"amqpUrl,omitempty"`
	Exchange       string `yaml:"exchange" json:"exchange"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

// ProxyConfig routes outbound HTTP through a SOCKS5 proxy when set.
type ProxyConfig struct {
	SOCKS5 string `yaml:"socks5,omitempty" json:"socks5,omitempty"`
}

func (c TelegramConfig) Timeout() time.Duration  { return seconds(c.TimeoutSeconds) }
func (c ProvidersConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }
func (c WhisperConfig) Timeout() time.Duration   { return seconds(c.TimeoutSeconds) }
func (c EventsConfig) Timeout() time.Duration    { return seconds(c.TimeoutSeconds) }

// WebhookTimeout is the processing deadline for one webhook update.
func (c ServerConfig) WebhookTimeout() time.Duration { return seconds(c.WebhookTimeoutSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (with ${VAR} expansion), then environment variables, then Validate.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the recognised environment variables
// that are set and non-empty.
func ApplyEnv(cfg *Config) {
	envString("HOST", &cfg.Server.Host)
	envInt("PORT", &cfg.Server.Port)
	envInt("RELAY_CHUNK_SIZE", &cfg.Server.ChunkSize)
	envInt("RELAY_MAX_TOKENS", &cfg.Server.DefaultMaxTokens)
	envInt("RELAY_WEBHOOK_TIMEOUT", &cfg.Server.WebhookTimeoutSeconds)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)

	envString("TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token)
	envString("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	envString("TELEGRAM_WEBHOOK_SECRET", &cfg.Telegram.WebhookSecret)
	envString("TELEGRAM_API_ENDPOINT", &cfg.Telegram.APIEndpoint)
	envString("TELEGRAM_FILE_ENDPOINT", &cfg.Telegram.FileEndpoint)

	envString("DEEPSEEK_API_KEY", &cfg.Providers.Primary.APIKey)
	envString("DEEPSEEK_MODEL", &cfg.Providers.Primary.Model)
	envString("DEEPSEEK_API_BASE", &cfg.Providers.Primary.APIBase)

	// The OpenAI key doubles as the fallback chat key unless one is given.
	envString("OPENAI_API_KEY", &cfg.Providers.Fallback.APIKey)
	envString("FALLBACK_API_KEY", &cfg.Providers.Fallback.APIKey)
	envString("FALLBACK_PROVIDER", &cfg.Providers.Fallback.Name)
	envString("FALLBACK_MODEL", &cfg.Providers.Fallback.Model)
	envString("FALLBACK_API_BASE", &cfg.Providers.Fallback.APIBase)

	envString("OPENAI_API_KEY", &cfg.Whisper.APIKey)
	envString("WHISPER_API_KEY", &cfg.Whisper.APIKey)
	envString("WHISPER_API_BASE", &cfg.Whisper.APIBase)
	envString("WHISPER_MODEL", &cfg.Whisper.Model)
	envString("WHISPER_LANGUAGE", &cfg.Whisper.Language)

	envInt("RELAY_MAX_MESSAGES", &cfg.Mailbox.MaxMessages)

	envString("AMQP_URL", &cfg.Events.AMQPURL)
	envString("AMQP_EXCHANGE", &cfg.Events.Exchange)

	envString("RELAY_SOCKS_PROXY", &cfg.Proxy.SOCKS5)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; a bare ${VAR}
// that is unset is kept verbatim.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config has valid values. Missing credentials are
// not validation errors: features degrade instead.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.ChunkSize < 1 {
		errs = append(errs, "server.chunkSize must be >= 1")
	}
	if cfg.Server.DefaultMaxTokens < 1 {
		errs = append(errs, "server.defaultMaxTokens must be >= 1")
	}
	if cfg.Server.WebhookTimeoutSeconds < 1 {
		errs = append(errs, "server.webhookTimeoutSeconds must be >= 1")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json", "tint":
	default:
		errs = append(errs, "log.format must be one of: text, json, tint")
	}

	if cfg.Telegram.TimeoutSeconds < 1 {
		errs = append(errs, "telegram.timeoutSeconds must be >= 1")
	}
	if cfg.Providers.TimeoutSeconds < 1 {
		errs = append(errs, "providers.timeoutSeconds must be >= 1")
	}
	if cfg.Providers.Temperature < 0 || cfg.Providers.Temperature > 2 {
		errs = append(errs, "providers.temperature must be between 0 and 2")
	}
	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"primary", cfg.Providers.Primary},
		{"fallback", cfg.Providers.Fallback},
	} {
		if p.cfg.Enabled() && p.cfg.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required when an apiKey is set", p.name))
		}
	}
	if cfg.Whisper.TimeoutSeconds < 1 {
		errs = append(errs, "whisper.timeoutSeconds must be >= 1")
	}
	if cfg.Mailbox.MaxMessages < 1 {
		errs = append(errs, "mailbox.maxMessages must be >= 1")
	}
	if cfg.Events.AMQPURL != "" && cfg.Events.Exchange == "" {
		errs = append(errs, "events.exchange is required when events.amqpUrl is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
