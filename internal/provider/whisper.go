package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"joyrelay/internal/metrics"
)

// PlaceholderTranscript stands in for the user's words when voice cannot be
// transcribed.
const PlaceholderTranscript = "Hello Joy Girl"

// WhisperConfig configures the Whisper speech-to-text provider.
type WhisperConfig struct {
	APIBase     string // e.g. "https://api.openai.com/v1" or "https://api.groq.com/openai/v1"
	APIKey      string // empty disables transcription
	Model       string // e.g. "whisper-1" (OpenAI) or "whisper-large-v3" (Groq)
	Language    string // optional ISO-639-1 code
	Placeholder string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Whisper transcribes Telegram voice notes (OGG/Opus) through the
// OpenAI-compatible audio transcription API.
type Whisper struct {
	client      openai.Client
	enabled     bool
	model       string
	language    string
	placeholder string
	timeout     time.Duration
	logger      *slog.Logger
}

func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = PlaceholderTranscript
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.APIBase),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Whisper{
		client:      openai.NewClient(opts...),
		enabled:     cfg.APIKey != "",
		model:       cfg.Model,
		language:    cfg.Language,
		placeholder: cfg.Placeholder,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Enabled reports whether a transcription key is configured.
func (w *Whisper) Enabled() bool { return w.enabled }

// Transcribe returns the transcript, or the placeholder when transcription
// is disabled, fails, or comes back empty.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte) string {
	if !w.enabled {
		metrics.Transcriptions("disabled").Inc()
		w.logger.Info("transcription disabled, using placeholder")
		return w.placeholder
	}

	start := time.Now()
	text, err := w.transcribe(ctx, audio)
	metrics.TranscriptionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Transcriptions("failed").Inc()
		w.logger.Warn("transcription failed, using placeholder", "err", err)
		return w.placeholder
	}
	if text == "" {
		metrics.Transcriptions("empty").Inc()
		w.logger.Warn("empty transcription, using placeholder")
		return w.placeholder
	}

	metrics.Transcriptions("ok").Inc()
	w.logger.Info("transcription complete", "text_len", len(text), "audio_bytes", len(audio))
	return text
}

func (w *Whisper) transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.ogg", "audio/ogg"),
		Model: openai.AudioModel(w.model),
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper API request: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
