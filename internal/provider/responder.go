package provider

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"joyrelay/internal/domain"
	"joyrelay/internal/metrics"
)

// FallbackReply is returned when no provider produced a completion.
const FallbackReply = "Sorry, my brain glitched!"

// Responder asks each provider in order and returns the first non-empty
// completion. A provider gets exactly one attempt per call.
type Responder struct {
	providers        []domain.Provider
	systemPrompt     string
	temperature      float64
	defaultMaxTokens int
	logger           *slog.Logger
}

type ResponderConfig struct {
	Providers        []domain.Provider // priority order
	SystemPrompt     string
	Temperature      float64
	DefaultMaxTokens int // used when Respond is called with maxTokens <= 0
	Logger           *slog.Logger
}

func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 60
	}
	return &Responder{
		providers:        cfg.Providers,
		systemPrompt:     cfg.SystemPrompt,
		temperature:      cfg.Temperature,
		defaultMaxTokens: cfg.DefaultMaxTokens,
		logger:           cfg.Logger,
	}
}

// Names lists the configured providers in priority order.
func (r *Responder) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Name describes the chain, e.g. "failover(deepseek→openai)".
func (r *Responder) Name() string {
	if len(r.providers) == 0 {
		return "none"
	}
	return "failover(" + strings.Join(r.Names(), "→") + ")"
}

// Respond never fails; see FallbackReply.
func (r *Responder) Respond(ctx context.Context, prompt string, maxTokens int) string {
	if len(r.providers) == 0 {
		r.logger.Error("no AI provider configured")
		return FallbackReply
	}
	if maxTokens <= 0 {
		maxTokens = r.defaultMaxTokens
	}

	temperature := r.temperature
	req := domain.ChatRequest{
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if r.systemPrompt != "" {
		req.Messages = append(req.Messages, domain.Message{Role: "system", Content: r.systemPrompt})
	}
	req.Messages = append(req.Messages, domain.Message{Role: "user", Content: prompt})

	for i, p := range r.providers {
		start := time.Now()
		resp, err := p.Chat(ctx, req)
		metrics.ProviderLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ProviderRequests(p.Name(), "failed").Inc()
			r.logger.Warn("provider failed, trying next",
				"provider", p.Name(),
				"attempt", i+1,
				"error", err,
			)
			continue
		}

		text := strings.TrimSpace(resp.Content)
		if text == "" {
			metrics.ProviderRequests(p.Name(), "empty").Inc()
			r.logger.Warn("provider returned empty completion, trying next",
				"provider", p.Name(),
				"attempt", i+1,
			)
			continue
		}

		metrics.ProviderRequests(p.Name(), "ok").Inc()
		if i > 0 {
			r.logger.Info("used fallback provider", "provider", p.Name(), "attempt", i+1)
		}
		return text
	}

	r.logger.Error("all AI providers failed", "chain", r.Name())
	return FallbackReply
}
