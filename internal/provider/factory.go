package provider

import (
	"log/slog"
	"net/http"

	"joyrelay/internal/config"
	"joyrelay/internal/domain"
)

// Chain builds the provider list in priority order, primary then fallback,
// leaving out any provider without an API key.
func Chain(cfg config.ProvidersConfig, httpClient *http.Client, logger *slog.Logger) []domain.Provider {
	var chain []domain.Provider
	for _, pc := range []config.ProviderConfig{cfg.Primary, cfg.Fallback} {
		if !pc.Enabled() {
			logger.Debug("provider not configured, skipping", "provider", pc.Name)
			continue
		}
		chain = append(chain, NewOpenAI(OpenAIConfig{
			Name:       pc.Name,
			APIKey:     pc.APIKey,
			APIBase:    pc.APIBase,
			Model:      pc.Model,
			Timeout:    cfg.Timeout(),
			HTTPClient: httpClient,
			Logger:     logger,
		}))
	}
	return chain
}

// NewResponderFromConfig wires a Responder from the full configuration.
func NewResponderFromConfig(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *Responder {
	return NewResponder(ResponderConfig{
		Providers:        Chain(cfg.Providers, httpClient, logger),
		SystemPrompt:     cfg.Providers.SystemPrompt,
		Temperature:      cfg.Providers.Temperature,
		DefaultMaxTokens: cfg.Server.DefaultMaxTokens,
		Logger:           logger,
	})
}

// NewWhisperFromConfig wires the transcriber from its config section.
func NewWhisperFromConfig(cfg config.WhisperConfig, httpClient *http.Client, logger *slog.Logger) *Whisper {
	return NewWhisper(WhisperConfig{
		APIBase:     cfg.APIBase,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Language:    cfg.Language,
		Placeholder: cfg.Placeholder,
		Timeout:     cfg.Timeout(),
		HTTPClient:  httpClient,
		Logger:      logger,
	})
}
