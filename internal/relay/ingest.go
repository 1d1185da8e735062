package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"joyrelay/internal/domain"
	"joyrelay/internal/mailbox"
	"joyrelay/internal/metrics"
)

// Webhook outcomes.
const (
	StatusIgnored     = "ignored"
	StatusCommand     = "command"
	StatusUnsupported = "unsupported"
	StatusOK          = "ok"
	StatusError       = "error"
)

// Result is the webhook acknowledgment body. Telegram always gets HTTP 200.
type Result struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Ingest runs one inbound Telegram update through transcription, the AI
// responder and the mailbox.
type Ingest struct {
	notifier    domain.Notifier
	files       domain.FileDownloader
	transcriber domain.Transcriber
	responder   domain.Responder
	mailbox     *mailbox.Mailbox
	bus         domain.EventBus
	maxTokens   int
	now         func() time.Time
	logger      *slog.Logger
}

type IngestConfig struct {
	Notifier    domain.Notifier
	Files       domain.FileDownloader
	Transcriber domain.Transcriber
	Responder   domain.Responder
	Mailbox     *mailbox.Mailbox
	Bus         domain.EventBus // optional
	MaxTokens   int             // reply budget, default 60
	Now         func() time.Time
	Logger      *slog.Logger
}

func NewIngest(cfg IngestConfig) *Ingest {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 60
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ingest{
		notifier:    cfg.Notifier,
		files:       cfg.Files,
		transcriber: cfg.Transcriber,
		responder:   cfg.Responder,
		mailbox:     cfg.Mailbox,
		bus:         cfg.Bus,
		maxTokens:   cfg.MaxTokens,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Handle decodes body as a Telegram update and processes it. It never
// panics and never returns an error: failures become StatusError.
func (g *Ingest) Handle(ctx context.Context, body []byte) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("webhook panic recovered", "panic", r)
			res = Result{Status: StatusError, Detail: fmt.Sprint(r)}
		}
		metrics.WebhookUpdates(res.Status).Inc()
	}()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		g.logger.Warn("invalid webhook payload", "err", err)
		return Result{Status: StatusError, Detail: err.Error()}
	}

	in, err := Classify(update)
	if err != nil {
		g.logger.Warn("unusable webhook update", "update_id", update.UpdateID, "err", err)
		return Result{Status: StatusError, Detail: err.Error()}
	}
	return g.Process(ctx, in)
}

// Process runs the state machine for an already classified update.
func (g *Ingest) Process(ctx context.Context, in Inbound) Result {
	logger := g.logger.With("chat_id", in.ChatID, "message_id", in.MessageID, "kind", in.Kind.String())

	var text string
	kind := domain.KindText
	switch in.Kind {
	case KindIgnored:
		return Result{Status: StatusIgnored}
	case KindUnsupported:
		logger.Info("unsupported message")
		return Result{Status: StatusUnsupported}
	case KindCommand:
		if reply := commandReply(in.Command); reply != "" {
			g.notifier.Notify(ctx, in.ChatID, reply)
		}
		logger.Info("command handled", "command", in.Command.Name)
		return Result{Status: StatusCommand}
	case KindVoice:
		kind = domain.KindVoice
		text = g.transcribe(ctx, in, logger)
	default:
		text = in.Text
	}

	reply := g.responder.Respond(ctx, text, g.maxTokens)
	g.notifier.Notify(ctx, in.ChatID, replyText(reply))

	rec := domain.Record{
		ID:         in.MessageID,
		Text:       text,
		SenderName: in.Sender,
		Timestamp:  g.now(),
		Response:   reply,
		Kind:       kind,
	}
	g.mailbox.Deliver(rec)
	metrics.MailboxRecords.Set(float64(g.mailbox.Len()))
	metrics.SetWaiting(false)

	if g.bus != nil {
		g.bus.Emit(domain.Event{
			Type:          domain.EventRecordAppended,
			CorrelationID: domain.RequestID(ctx),
			OccurredAt:    rec.Timestamp,
			Payload:       rec,
		})
	}

	logger.Info("message relayed", "from", in.Sender, "text_len", len(text), "reply_len", len(reply))
	return Result{Status: StatusOK, Response: reply}
}

// transcribe echoes progress to the sender and never fails: a download error
// yields UnheardText, a transcription failure the transcriber's placeholder.
func (g *Ingest) transcribe(ctx context.Context, in Inbound, logger *slog.Logger) string {
	g.notifier.Notify(ctx, in.ChatID, ProcessingVoiceText)

	var text string
	audio, err := g.files.DownloadFile(ctx, in.FileID)
	if err != nil {
		logger.Warn("voice download failed", "file_id", in.FileID, "err", err)
		text = UnheardText
	} else {
		text = g.transcriber.Transcribe(ctx, audio)
	}

	g.notifier.Notify(ctx, in.ChatID, transcriptText(text))
	return text
}
