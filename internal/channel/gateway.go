package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"

	"joyrelay/internal/domain"
	"joyrelay/internal/mailbox"
	"joyrelay/internal/relay"
)

const (
	gatewayMaxBodySize = 1 << 20 // 1MB
	requestIDHeader    = "X-Request-ID"

	// DefaultWebhookTimeout bounds one webhook update end to end. The
	// server's write timeout is derived from it so the acknowledgment is
	// always written.
	DefaultWebhookTimeout = 240 * time.Second
	writeTimeoutSlack     = 30 * time.Second
)

// Gateway is the relay's HTTP surface: the device trigger and polling
// endpoints, the Telegram webhook, Telegram setup pass-through and direct
// chat.
type Gateway struct {
	addr             string
	version          string
	aiName           string
	webhookSecret    string
	chunkSize        int
	defaultMaxTokens int
	webhookTimeout   time.Duration

	telegram  *Telegram
	ingest    *relay.Ingest
	trigger   *relay.Trigger
	mailbox   *mailbox.Mailbox
	responder domain.Responder
	metrics   http.Handler

	logger *slog.Logger
	server *http.Server
}

type GatewayConfig struct {
	Addr             string
	Version          string
	AIName           string // shown on GET /
	WebhookSecret    string // expected X-Telegram-Bot-Api-Secret-Token, optional
	ChunkSize        int
	DefaultMaxTokens int
	WebhookTimeout   time.Duration // deadline for processing one update

	Telegram  *Telegram
	Ingest    *relay.Ingest
	Trigger   *relay.Trigger
	Mailbox   *mailbox.Mailbox
	Responder domain.Responder
	Metrics   http.Handler // served on GET /metrics when set

	Logger *slog.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = relay.DefaultChunkSize
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 60
	}
	if cfg.Addr == "" {
		cfg.Addr = ":10000"
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = DefaultWebhookTimeout
	}
	return &Gateway{
		addr:             cfg.Addr,
		version:          cfg.Version,
		aiName:           cfg.AIName,
		webhookSecret:    cfg.WebhookSecret,
		chunkSize:        cfg.ChunkSize,
		defaultMaxTokens: cfg.DefaultMaxTokens,
		webhookTimeout:   cfg.WebhookTimeout,
		telegram:         cfg.Telegram,
		ingest:           cfg.Ingest,
		trigger:          cfg.Trigger,
		mailbox:          cfg.Mailbox,
		responder:        cfg.Responder,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}
}

func (g *Gateway) Name() string { return "http" }

// Handler returns the routed handler wrapped in middleware.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET /health", g.handleHealth)

	mux.HandleFunc("POST /telegram/notify", g.handleNotify)
	mux.HandleFunc("POST /telegram/webhook", g.handleWebhook)
	mux.HandleFunc("GET /telegram/setWebhook", g.handleSetWebhook)
	mux.HandleFunc("GET /telegram/webhookInfo", g.handleWebhookInfo)
	mux.HandleFunc("GET /telegram/info", g.handleBotInfo)

	mux.HandleFunc("GET /messages", g.handleMessages)
	mux.HandleFunc("GET /messages/latest", g.handleLatest)
	mux.HandleFunc("DELETE /messages", g.handleClear)

	mux.HandleFunc("POST /chat", g.handleChat)
	mux.HandleFunc("POST /chat/esp32", g.handleChatESP32)

	if g.metrics != nil {
		mux.Handle("GET /metrics", g.metrics)
	}

	return g.withRequestID(g.withLogging(withCORS(mux)))
}

func (g *Gateway) newServer() *http.Server {
	return &http.Server{
		Addr:              g.addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      g.webhookTimeout + writeTimeoutSlack,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start serves until ctx is cancelled, then drains for up to 5 seconds.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = g.newServer()

	g.logger.Info("HTTP gateway started", "addr", g.addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	g.logger.Info("HTTP gateway stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (g *Gateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "Joy Girl API",
		"version":  g.version,
		"platform": runtime.GOOS + "/" + runtime.GOARCH,
		"ai":       g.aiName,
		"flow":     "IR → Telegram → OLED",
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- middleware ---

func (g *Gateway) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(domain.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (g *Gateway) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		g.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", domain.RequestID(r.Context()),
		)
	})
}

// withCORS allows any origin; the device and browser tools call the relay
// directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes a {"detail": msg} error body.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
