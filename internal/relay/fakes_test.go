package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"joyrelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	ChatID string
	Text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (f *fakeNotifier) Notify(ctx context.Context, chatID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return !f.fail
}

func (f *fakeNotifier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type fakeFiles struct {
	data []byte
	err  error
}

func (f *fakeFiles) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeTranscriber struct {
	text  string
	audio []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) string {
	f.audio = audio
	return f.text
}

type fakeResponder struct {
	reply     string
	prompts   []string
	maxTokens int
	panicMsg  string
}

func (f *fakeResponder) Respond(ctx context.Context, prompt string, maxTokens int) string {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.prompts = append(f.prompts, prompt)
	f.maxTokens = maxTokens
	return f.reply
}

type recordingBus struct {
	events []domain.Event
}

func (b *recordingBus) Emit(evt domain.Event) { b.events = append(b.events, evt) }

func (b *recordingBus) On(t domain.EventType, handler func(domain.Event)) {}

var errDownload = errors.New("download failed")
