package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"joyrelay/internal/domain"
	"joyrelay/internal/mailbox"
)

type ingestFixture struct {
	notifier    *fakeNotifier
	files       *fakeFiles
	transcriber *fakeTranscriber
	responder   *fakeResponder
	mailbox     *mailbox.Mailbox
	bus         *recordingBus
	ingest      *Ingest
	trigger     *Trigger
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		notifier:    &fakeNotifier{},
		files:       &fakeFiles{data: []byte("OggS")},
		transcriber: &fakeTranscriber{text: "good morning"},
		responder:   &fakeResponder{reply: "Hi Alice! 🌸"},
		mailbox:     mailbox.New(0),
		bus:         &recordingBus{},
	}
	now := func() time.Time { return fixedNow }
	f.ingest = NewIngest(IngestConfig{
		Notifier:    f.notifier,
		Files:       f.files,
		Transcriber: f.transcriber,
		Responder:   f.responder,
		Mailbox:     f.mailbox,
		Bus:         f.bus,
		Now:         now,
		Logger:      testLogger(),
	})
	f.trigger = NewTrigger(TriggerConfig{
		Notifier: f.notifier,
		TokenSet: true,
		ChatID:   "1",
		Mailbox:  f.mailbox,
		Bus:      f.bus,
		Now:      now,
		Logger:   testLogger(),
	})
	return f
}

func TestIngest_EndToEnd(t *testing.T) {
	f := newIngestFixture()
	ctx := domain.WithRequestID(context.Background(), "req-1")

	sentAt, err := f.trigger.Fire(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !sentAt.Equal(fixedNow) {
		t.Errorf("expected sentAt %v, got %v", fixedNow, sentAt)
	}
	if !f.mailbox.IsWaiting() {
		t.Fatal("expected waiting=true after trigger")
	}

	body := `{"update_id":1,"message":{"chat":{"id":1,"type":"private"},"message_id":7,"from":{"id":5,"first_name":"Alice"},"date":0,"text":"hi"}}`
	res := f.ingest.Handle(ctx, []byte(body))

	if res.Status != StatusOK {
		t.Fatalf("expected status ok, got %+v", res)
	}
	if res.Response == "" {
		t.Fatal("expected non-empty response")
	}
	if f.mailbox.IsWaiting() {
		t.Error("expected waiting=false after reply")
	}

	latest, ok := f.mailbox.Latest()
	if !ok || f.mailbox.Len() != 1 {
		t.Fatalf("expected exactly one record, got %d", f.mailbox.Len())
	}
	want := domain.Record{
		ID:         7,
		Text:       "hi",
		SenderName: "Alice",
		Timestamp:  fixedNow,
		Response:   "Hi Alice! 🌸",
		Kind:       domain.KindText,
	}
	if latest != want {
		t.Errorf("record = %+v, want %+v", latest, want)
	}

	if f.responder.maxTokens != 60 {
		t.Errorf("expected default max tokens 60, got %d", f.responder.maxTokens)
	}

	texts := f.notifier.texts()
	if len(texts) != 2 || texts[0] != NotifyText || texts[1] != "🌸 Hi Alice! 🌸" {
		t.Errorf("unexpected telegram messages: %q", texts)
	}

	if len(f.bus.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(f.bus.events))
	}
	if f.bus.events[0].Type != domain.EventNotifySent || f.bus.events[1].Type != domain.EventRecordAppended {
		t.Errorf("unexpected event order: %v, %v", f.bus.events[0].Type, f.bus.events[1].Type)
	}
	if f.bus.events[1].CorrelationID != "req-1" {
		t.Errorf("expected correlation id req-1, got %q", f.bus.events[1].CorrelationID)
	}
}

func TestIngest_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   string
		messages []string
	}{
		{
			name:   "no message",
			body:   `{"update_id":1,"edited_message":{"chat":{"id":1},"message_id":3,"text":"x"}}`,
			status: StatusIgnored,
		},
		{
			name:     "start command",
			body:     `{"message":{"chat":{"id":1},"message_id":3,"text":"/start"}}`,
			status:   StatusCommand,
			messages: []string{GreetingText},
		},
		{
			name:     "start with bot suffix",
			body:     `{"message":{"chat":{"id":1},"message_id":3,"text":"/start@joy_bot"}}`,
			status:   StatusCommand,
			messages: []string{GreetingText},
		},
		{
			name:     "help command",
			body:     `{"message":{"chat":{"id":1},"message_id":3,"text":"/help"}}`,
			status:   StatusCommand,
			messages: []string{HelpText},
		},
		{
			name:   "unknown command is silent",
			body:   `{"message":{"chat":{"id":1},"message_id":3,"text":"/settings now"}}`,
			status: StatusCommand,
		},
		{
			name:   "sticker",
			body:   `{"message":{"chat":{"id":1},"message_id":3,"sticker":{"file_id":"s"}}}`,
			status: StatusUnsupported,
		},
		{
			name:   "no chat",
			body:   `{"message":{"message_id":3,"text":"hi"}}`,
			status: StatusError,
		},
		{
			name:   "invalid json",
			body:   `{"message":`,
			status: StatusError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture()
			f.mailbox.SetWaiting(true)

			res := f.ingest.Handle(context.Background(), []byte(tt.body))
			if res.Status != tt.status {
				t.Fatalf("expected status %q, got %+v", tt.status, res)
			}
			if tt.status == StatusError && res.Detail == "" {
				t.Error("expected a diagnostic detail")
			}
			if f.mailbox.Len() != 0 {
				t.Errorf("expected no record, got %d", f.mailbox.Len())
			}
			if !f.mailbox.IsWaiting() {
				t.Error("waiting flag should be untouched")
			}
			if len(f.responder.prompts) != 0 {
				t.Error("responder should not be called")
			}
			texts := f.notifier.texts()
			if len(texts) != len(tt.messages) {
				t.Fatalf("expected messages %q, got %q", tt.messages, texts)
			}
			for i := range texts {
				if texts[i] != tt.messages[i] {
					t.Errorf("message %d = %q, want %q", i, texts[i], tt.messages[i])
				}
			}
		})
	}
}

func TestIngest_Voice(t *testing.T) {
	f := newIngestFixture()
	body := `{"message":{"chat":{"id":1},"message_id":8,"from":{"first_name":"Bob"},"voice":{"file_id":"f1","duration":2}}}`

	res := f.ingest.Handle(context.Background(), []byte(body))
	if res.Status != StatusOK {
		t.Fatalf("expected ok, got %+v", res)
	}
	if string(f.transcriber.audio) != "OggS" {
		t.Errorf("transcriber got %q", f.transcriber.audio)
	}
	if f.responder.prompts[0] != "good morning" {
		t.Errorf("expected transcript as prompt, got %q", f.responder.prompts[0])
	}

	texts := f.notifier.texts()
	want := []string{ProcessingVoiceText, `📝 You said: "good morning"`, "🌸 Hi Alice! 🌸"}
	if len(texts) != len(want) {
		t.Fatalf("expected %q, got %q", want, texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, texts[i], want[i])
		}
	}

	rec, _ := f.mailbox.Latest()
	if rec.Kind != domain.KindVoice || rec.Text != "good morning" || rec.SenderName != "Bob" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestIngest_VoiceDownloadFailure(t *testing.T) {
	f := newIngestFixture()
	f.files.err = errDownload
	body := `{"message":{"chat":{"id":1},"message_id":9,"voice":{"file_id":"f1"}}}`

	res := f.ingest.Handle(context.Background(), []byte(body))
	if res.Status != StatusOK {
		t.Fatalf("expected ok, got %+v", res)
	}
	if f.transcriber.audio != nil {
		t.Error("transcriber should not be called")
	}
	rec, _ := f.mailbox.Latest()
	if rec.Text != UnheardText {
		t.Errorf("expected fallback text, got %q", rec.Text)
	}
	if rec.SenderName != DefaultSender {
		t.Errorf("expected default sender, got %q", rec.SenderName)
	}
}

func TestIngest_EscapesDynamicText(t *testing.T) {
	f := newIngestFixture()
	f.responder.reply = "1 < 2 & <b>"
	body := `{"message":{"chat":{"id":1},"message_id":3,"text":"math?"}}`

	res := f.ingest.Handle(context.Background(), []byte(body))
	if res.Response != "1 < 2 & <b>" {
		t.Errorf("response should stay raw, got %q", res.Response)
	}
	texts := f.notifier.texts()
	if texts[0] != "🌸 1 &lt; 2 &amp; &lt;b&gt;" {
		t.Errorf("expected escaped reply, got %q", texts[0])
	}
}

func TestIngest_NotifyFailureStillRecords(t *testing.T) {
	f := newIngestFixture()
	f.notifier.fail = true
	body := `{"message":{"chat":{"id":1},"message_id":3,"text":"hi"}}`

	if res := f.ingest.Handle(context.Background(), []byte(body)); res.Status != StatusOK {
		t.Fatalf("expected ok, got %+v", res)
	}
	if f.mailbox.Len() != 1 {
		t.Fatalf("expected record despite failed send, got %d", f.mailbox.Len())
	}
}

func TestIngest_PanicBecomesError(t *testing.T) {
	f := newIngestFixture()
	f.mailbox.SetWaiting(true)
	f.responder.panicMsg = "provider exploded"
	body := `{"message":{"chat":{"id":1},"message_id":3,"text":"hi"}}`

	res := f.ingest.Handle(context.Background(), []byte(body))
	if res.Status != StatusError || !strings.Contains(res.Detail, "provider exploded") {
		t.Fatalf("expected error result, got %+v", res)
	}
	if f.mailbox.Len() != 0 || !f.mailbox.IsWaiting() {
		t.Error("panic must not produce a record or reset waiting")
	}
}

func TestTrigger_Failures(t *testing.T) {
	f := newIngestFixture()

	noToken := NewTrigger(TriggerConfig{Notifier: f.notifier, ChatID: "1", Mailbox: f.mailbox, Logger: testLogger()})
	if _, err := noToken.Fire(context.Background()); err == nil || err.Error() != "TELEGRAM_BOT_TOKEN not set" {
		t.Errorf("expected missing token error, got %v", err)
	}

	noChat := NewTrigger(TriggerConfig{Notifier: f.notifier, TokenSet: true, Mailbox: f.mailbox, Logger: testLogger()})
	if _, err := noChat.Fire(context.Background()); err == nil || err.Error() != "TELEGRAM_CHAT_ID not set" {
		t.Errorf("expected missing chat id error, got %v", err)
	}

	f.notifier.fail = true
	if _, err := f.trigger.Fire(context.Background()); err != ErrNotDelivered {
		t.Errorf("expected ErrNotDelivered, got %v", err)
	}
	if f.mailbox.IsWaiting() {
		t.Error("failed delivery must not set waiting")
	}
	if len(f.bus.events) != 0 {
		t.Errorf("expected no events, got %d", len(f.bus.events))
	}
}
