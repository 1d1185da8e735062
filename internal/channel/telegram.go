package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"joyrelay/internal/config"
	"joyrelay/internal/metrics"
	"joyrelay/internal/provider"
)

// telegramMaxFileSize is the Bot API's getFile download limit.
const telegramMaxFileSize = 20 << 20

// Telegram is a request/response Bot API client. It never polls: inbound
// updates arrive through the webhook handler.
type Telegram struct {
	token         string
	defaultChatID string
	apiEndpoint   string
	fileEndpoint  string

	client *http.Client
	logger *slog.Logger
}

type TelegramConfig struct {
	Token         string
	DefaultChatID string // recipient of trigger notifications
	APIEndpoint   string // format with %s for token and method
	FileEndpoint  string // format with %s for token and file path
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = provider.SharedHTTPClient(0)
	}
	return &Telegram{
		token:         cfg.Token,
		defaultChatID: cfg.DefaultChatID,
		apiEndpoint:   cfg.APIEndpoint,
		fileEndpoint:  cfg.FileEndpoint,
		client:        cfg.HTTPClient,
		logger:        cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Configured reports whether a bot token is set.
func (t *Telegram) Configured() bool { return t.token != "" }

// DefaultChatID is the configured trigger recipient.
func (t *Telegram) DefaultChatID() string { return t.defaultChatID }

// ctxClient binds every Bot API request to ctx.
type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// bot returns a BotAPI bound to ctx. It is built directly rather than with
// tgbotapi.NewBotAPI, which calls getMe on construction.
func (t *Telegram) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  t.token,
		Client: ctxClient{ctx: ctx, client: t.client},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(t.apiEndpoint)
	return bot
}

// Notify sends an HTML message and reports whether Telegram accepted it.
// chatID is a numeric chat id or an @channel username.
func (t *Telegram) Notify(ctx context.Context, chatID, text string) bool {
	if !t.Configured() {
		metrics.Notifications("failed").Inc()
		t.logger.Error("telegram send skipped", "err", config.ErrNoTelegramToken)
		return false
	}

	msg, err := newHTMLMessage(chatID, text)
	if err != nil {
		metrics.Notifications("failed").Inc()
		t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
		return false
	}

	if _, err := t.bot(ctx).Send(msg); err != nil {
		metrics.Notifications("failed").Inc()
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			t.logger.Error("telegram rejected message", "chat_id", chatID, "err", apiErr.Message)
		} else {
			t.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
		}
		return false
	}

	metrics.Notifications("ok").Inc()
	t.logger.Debug("telegram message sent", "chat_id", chatID, "text_len", len(text))
	return true
}

func newHTMLMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	chatID = strings.TrimSpace(chatID)
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return msg, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
		}
		msg = tgbotapi.NewMessage(id, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	return msg, nil
}

// DownloadFile resolves fileID with getFile and fetches its contents.
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if !t.Configured() {
		return nil, config.ErrNoTelegramToken
	}

	file, err := t.bot(ctx).GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("get file info: no file path for %s", fileID)
	}

	link := fmt.Sprintf(t.fileEndpoint, t.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, telegramMaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > telegramMaxFileSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, telegramMaxFileSize)
	}
	return data, nil
}

// SetWebhook registers url, and the optional secret token Telegram echoes in
// X-Telegram-Bot-Api-Secret-Token.
func (t *Telegram) SetWebhook(ctx context.Context, url, secret string) (*tgbotapi.APIResponse, error) {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	return t.call(ctx, "setWebhook", params)
}

func (t *Telegram) WebhookInfo(ctx context.Context) (*tgbotapi.APIResponse, error) {
	return t.call(ctx, "getWebhookInfo", nil)
}

func (t *Telegram) GetMe(ctx context.Context) (*tgbotapi.APIResponse, error) {
	return t.call(ctx, "getMe", nil)
}

// call passes the raw Bot API response through. An API-level rejection is
// not an error here: the response already carries ok=false and a description.
func (t *Telegram) call(ctx context.Context, method string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	if !t.Configured() {
		return nil, config.ErrNoTelegramToken
	}
	resp, err := t.bot(ctx).MakeRequest(method, params)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && resp != nil {
			t.logger.Warn("telegram call rejected", "method", method, "code", apiErr.Code, "err", apiErr.Message)
			return resp, nil
		}
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	return resp, nil
}
