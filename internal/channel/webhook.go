package channel

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"joyrelay/internal/config"
	"joyrelay/internal/relay"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleNotify is called by the device when the IR sensor fires.
func (g *Gateway) handleNotify(w http.ResponseWriter, r *http.Request) {
	sentAt, err := g.trigger.Fire(r.Context())
	switch {
	case errors.Is(err, config.ErrNoTelegramToken), errors.Is(err, config.ErrNoTelegramChatID):
		writeDetail(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "Failed to send"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"message":   "Notification sent!",
			"timestamp": sentAt.Format(time.RFC3339),
		})
	}
}

// handleWebhook acknowledges every update with HTTP 200 so Telegram does not
// redeliver; the outcome is in the body.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if g.webhookSecret != "" {
		got := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(g.webhookSecret)) != 1 {
			g.logger.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
			writeDetail(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, gatewayMaxBodySize))
	if err != nil {
		writeJSON(w, http.StatusOK, relay.Result{Status: relay.StatusError, Detail: err.Error()})
		return
	}

	// Processing continues if Telegram hangs up, but never past the
	// deadline, so the acknowledgment beats the server's write timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), g.webhookTimeout)
	defer cancel()
	res := g.ingest.Handle(ctx, body)
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	if !g.telegram.Configured() {
		writeDetail(w, http.StatusInternalServerError, config.ErrNoTelegramToken.Error())
		return
	}
	url := r.URL.Query().Get("webhook_url")
	if url == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "webhook_url is required")
		return
	}

	resp, err := g.telegram.SetWebhook(r.Context(), url, g.webhookSecret)
	if err != nil {
		g.logger.Error("setWebhook failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	g.logger.Info("webhook registered", "url", url, "ok", resp.Ok)
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleWebhookInfo(w http.ResponseWriter, r *http.Request) {
	g.passThrough(w, r, g.telegram.WebhookInfo)
}

func (g *Gateway) handleBotInfo(w http.ResponseWriter, r *http.Request) {
	g.passThrough(w, r, g.telegram.GetMe)
}

// passThrough relays a diagnostic Bot API call. Errors are reported as
// {"error": ...} with HTTP 200.
func (g *Gateway) passThrough(w http.ResponseWriter, r *http.Request, call func(context.Context) (*tgbotapi.APIResponse, error)) {
	resp, err := call(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
