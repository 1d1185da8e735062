package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// GetByPath retrieves a config value by dot-notation path (e.g. "server.port").
func GetByPath(cfg *Config, path string) (any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		v, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
		val, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
		current = val
	}
	return current, nil
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Telegram.Token = maskString(c.Telegram.Token)
	c.Telegram.WebhookSecret = maskString(c.Telegram.WebhookSecret)
	c.Providers.Primary.APIKey = maskString(c.Providers.Primary.APIKey)
	c.Providers.Fallback.APIKey = maskString(c.Providers.Fallback.APIKey)
	c.Whisper.APIKey = maskString(c.Whisper.APIKey)
	c.Events.AMQPURL = maskString(c.Events.AMQPURL)
	return &c
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Overrides holds command-line values that win over file and environment.
type Overrides struct {
	Host     string
	Port     int
	LogLevel string
}

// BindFlags registers the override flags on fs.
func (o *Overrides) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "host", "", "listen host (overrides HOST)")
	fs.IntVarP(&o.Port, "port", "p", 0, "listen port (overrides PORT)")
	fs.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// Apply copies every flag that was explicitly set on fs into cfg and
// re-validates.
func (o *Overrides) Apply(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("host") {
		cfg.Server.Host = o.Host
	}
	if fs.Changed("port") {
		cfg.Server.Port = o.Port
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	return Validate(cfg)
}
