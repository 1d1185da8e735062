package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"joyrelay/internal/mailbox"
	"joyrelay/internal/metrics"
	"joyrelay/internal/relay"
)

type stubResponder struct {
	reply     string
	maxTokens int
	deadline  time.Time
}

func (s *stubResponder) Respond(ctx context.Context, prompt string, maxTokens int) string {
	s.maxTokens = maxTokens
	s.deadline, _ = ctx.Deadline()
	return s.reply
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audio []byte) string { return "transcribed" }

type gatewayFixture struct {
	api       *fakeBotAPI
	mailbox   *mailbox.Mailbox
	responder *stubResponder
	handler   http.Handler
}

func newGatewayFixture(t *testing.T, token, chatID, secret string) *gatewayFixture {
	t.Helper()
	api := newFakeBotAPI(t)
	tg := api.telegram(token)
	mb := mailbox.New(0)
	responder := &stubResponder{reply: "Hi Alice! Nice to meet you and have a wonderful day full of sunshine"}
	logger := testLogger()

	gw := NewGateway(GatewayConfig{
		Version:       "test",
		AIName:        "failover(deepseek→openai)",
		WebhookSecret: secret,
		ChunkSize:     20,
		Telegram:      tg,
		Ingest: relay.NewIngest(relay.IngestConfig{
			Notifier:    tg,
			Files:       tg,
			Transcriber: stubTranscriber{},
			Responder:   responder,
			Mailbox:     mb,
			Logger:      logger,
		}),
		Trigger: relay.NewTrigger(relay.TriggerConfig{
			Notifier: tg,
			TokenSet: tg.Configured(),
			ChatID:   chatID,
			Mailbox:  mb,
			Logger:   logger,
		}),
		Mailbox:   mb,
		Responder: responder,
		Metrics:   metrics.Handler(),
		Logger:    logger,
	})
	return &gatewayFixture{api: api, mailbox: mb, responder: responder, handler: gw.Handler()}
}

func (f *gatewayFixture) do(t *testing.T, method, target, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec, out
}

const aliceUpdate = `{"update_id":1,"message":{"chat":{"id":1,"type":"private"},"message_id":7,"from":{"id":5,"first_name":"Alice"},"date":0,"text":"hi"}}`

func TestGateway_EndToEnd(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")

	rec, out := f.do(t, http.MethodPost, "/telegram/notify", "", nil)
	if rec.Code != http.StatusOK || out["ok"] != true || out["message"] != "Notification sent!" {
		t.Fatalf("notify: %d %v", rec.Code, out)
	}
	if _, ok := out["timestamp"].(string); !ok {
		t.Errorf("expected timestamp string, got %v", out["timestamp"])
	}

	_, out = f.do(t, http.MethodGet, "/messages", "", nil)
	if out["waiting"] != true {
		t.Fatalf("expected waiting=true after notify, got %v", out)
	}

	_, out = f.do(t, http.MethodPost, "/telegram/webhook", aliceUpdate, nil)
	if out["status"] != "ok" || out["response"] != f.responder.reply {
		t.Fatalf("webhook: %v", out)
	}

	_, out = f.do(t, http.MethodGet, "/messages?limit=5&since_id=0", "", nil)
	if out["waiting"] != false || out["count"] != float64(1) || out["total"] != float64(1) {
		t.Fatalf("poll: %v", out)
	}
	msg := out["messages"].([]any)[0].(map[string]any)
	if msg["id"] != float64(7) || msg["from_user"] != "Alice" || msg["text"] != "hi" || msg["type"] != "text" {
		t.Errorf("unexpected record %v", msg)
	}

	_, out = f.do(t, http.MethodGet, "/messages?since_id=7", "", nil)
	if out["count"] != float64(0) || len(out["messages"].([]any)) != 0 {
		t.Errorf("expected empty list past last id, got %v", out)
	}

	_, out = f.do(t, http.MethodGet, "/messages/latest", "", nil)
	if out["id"] != float64(7) {
		t.Errorf("latest: %v", out)
	}

	sent := f.api.sent()
	if len(sent) != 2 || !strings.HasPrefix(sent[1].Get("text"), "🌸 Hi Alice!") {
		t.Errorf("unexpected telegram traffic: %v", sent)
	}
}

func TestGateway_ClearAndLatest(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	f.do(t, http.MethodPost, "/telegram/webhook", aliceUpdate, nil)
	f.mailbox.SetWaiting(true)

	_, out := f.do(t, http.MethodDelete, "/messages", "", nil)
	if out["status"] != "cleared" {
		t.Fatalf("clear: %v", out)
	}
	_, out = f.do(t, http.MethodGet, "/messages/latest", "", nil)
	if v, ok := out["message"]; !ok || v != nil {
		t.Errorf("expected {message: null}, got %v", out)
	}
	_, out = f.do(t, http.MethodGet, "/messages", "", nil)
	if out["total"] != float64(0) || out["waiting"] != true {
		t.Errorf("clear must empty the store and keep waiting: %v", out)
	}
}

func TestGateway_NotifyMissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		chatID string
		detail string
	}{
		{"no token", "", "1", "TELEGRAM_BOT_TOKEN not set"},
		{"no chat id", "TOKEN", "", "TELEGRAM_CHAT_ID not set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, tt.token, tt.chatID, "")
			rec, out := f.do(t, http.MethodPost, "/telegram/notify", "", nil)
			if rec.Code != http.StatusInternalServerError || out["detail"] != tt.detail {
				t.Fatalf("expected 500 %q, got %d %v", tt.detail, rec.Code, out)
			}
		})
	}
}

func TestGateway_NotifyRejected(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	f.api.sendFail = true

	rec, out := f.do(t, http.MethodPost, "/telegram/notify", "", nil)
	if rec.Code != http.StatusOK || out["ok"] != false || out["error"] != "Failed to send" {
		t.Fatalf("expected ok=false, got %d %v", rec.Code, out)
	}
	if f.mailbox.IsWaiting() {
		t.Error("waiting must stay false")
	}
}

func TestGateway_PollValidation(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	for _, target := range []string{"/messages?limit=abc", "/messages?since_id=1.5"} {
		rec, out := f.do(t, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnprocessableEntity || out["detail"] == nil {
			t.Errorf("%s: expected 422 with detail, got %d %v", target, rec.Code, out)
		}
	}
}

func TestGateway_WebhookSecret(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "s3cret")

	rec, _ := f.do(t, http.MethodPost, "/telegram/webhook", aliceUpdate, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
	if f.mailbox.Len() != 0 {
		t.Fatal("rejected update must not be processed")
	}

	rec, out := f.do(t, http.MethodPost, "/telegram/webhook", aliceUpdate,
		http.Header{"X-Telegram-Bot-Api-Secret-Token": {"s3cret"}})
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("expected ok with secret, got %d %v", rec.Code, out)
	}
}

func TestGateway_WebhookAlwaysAcknowledges(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	rec, out := f.do(t, http.MethodPost, "/telegram/webhook", "not json", nil)
	if rec.Code != http.StatusOK || out["status"] != "error" || out["detail"] == "" {
		t.Fatalf("expected 200 status=error, got %d %v", rec.Code, out)
	}
}

func TestGateway_VoiceWebhook(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	body := `{"message":{"chat":{"id":1},"message_id":8,"from":{"first_name":"Bob"},"voice":{"file_id":"f1"}}}`

	_, out := f.do(t, http.MethodPost, "/telegram/webhook", body, nil)
	if out["status"] != "ok" {
		t.Fatalf("webhook: %v", out)
	}
	_, out = f.do(t, http.MethodGet, "/messages/latest", "", nil)
	if out["type"] != "voice" || out["text"] != "transcribed" {
		t.Errorf("unexpected record %v", out)
	}
}

func TestGateway_TelegramSetup(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "s3cret")

	rec, out := f.do(t, http.MethodGet, "/telegram/setWebhook?webhook_url=https://relay.example/telegram/webhook", "", nil)
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("setWebhook: %d %v", rec.Code, out)
	}
	form := f.api.forms[len(f.api.forms)-1]
	if form.Get("secret_token") != "s3cret" {
		t.Errorf("expected secret to be registered, got %v", form)
	}

	rec, _ = f.do(t, http.MethodGet, "/telegram/setWebhook", "", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without webhook_url, got %d", rec.Code)
	}

	_, out = f.do(t, http.MethodGet, "/telegram/info", "", nil)
	if out["ok"] != true {
		t.Errorf("info: %v", out)
	}
	_, out = f.do(t, http.MethodGet, "/telegram/webhookInfo", "", nil)
	if out["ok"] != true {
		t.Errorf("webhookInfo: %v", out)
	}
}

func TestGateway_TelegramSetupWithoutToken(t *testing.T) {
	f := newGatewayFixture(t, "", "1", "")

	rec, out := f.do(t, http.MethodGet, "/telegram/setWebhook?webhook_url=https://x", "", nil)
	if rec.Code != http.StatusInternalServerError || out["detail"] != "TELEGRAM_BOT_TOKEN not set" {
		t.Errorf("setWebhook: %d %v", rec.Code, out)
	}
	for _, target := range []string{"/telegram/info", "/telegram/webhookInfo"} {
		rec, out := f.do(t, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusOK || out["error"] != "TELEGRAM_BOT_TOKEN not set" {
			t.Errorf("%s: %d %v", target, rec.Code, out)
		}
	}
}

func TestGateway_Chat(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")

	_, out := f.do(t, http.MethodPost, "/chat", `{"message":"hello"}`, nil)
	if out["response"] != f.responder.reply {
		t.Fatalf("chat: %v", out)
	}
	if f.responder.maxTokens != 60 {
		t.Errorf("expected default max_tokens 60, got %d", f.responder.maxTokens)
	}

	f.do(t, http.MethodPost, "/chat", `{"message":"hello","max_tokens":150}`, nil)
	if f.responder.maxTokens != 150 {
		t.Errorf("expected max_tokens 150, got %d", f.responder.maxTokens)
	}

	_, out = f.do(t, http.MethodPost, "/chat/esp32", `{"message":"hello"}`, nil)
	chunks := out["chunks"].([]any)
	if out["total_chunks"] != float64(len(chunks)) || out["full_text"] != f.responder.reply {
		t.Fatalf("esp32: %v", out)
	}
	var joined []string
	for _, c := range chunks {
		s := c.(string)
		if len([]rune(s)) > 20 {
			t.Errorf("chunk %q exceeds 20 runes", s)
		}
		joined = append(joined, s)
	}
	if strings.Join(joined, " ") != f.responder.reply {
		t.Errorf("chunks do not reassemble reply: %q", joined)
	}

	for _, body := range []string{`{"message":`, `{}`} {
		rec, _ := f.do(t, http.MethodPost, "/chat", body, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", body, rec.Code)
		}
	}
}

func TestGateway_Ambient(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")

	rec, out := f.do(t, http.MethodGet, "/", "", nil)
	if out["status"] != "Joy Girl API" || out["ai"] != "failover(deepseek→openai)" {
		t.Errorf("root: %v", out)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS")
	}

	rec, _ = f.do(t, http.MethodGet, "/health", "", http.Header{"X-Request-ID": {"abc"}})
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("expected incoming request id to be echoed, got %q", rec.Header().Get("X-Request-ID"))
	}
	rec, _ = f.do(t, http.MethodGet, "/health", "", http.Header{"x-request-id": {"lower"}})
	if rec.Header().Get("X-Request-ID") != "lower" {
		t.Errorf("expected request id header to match case-insensitively, got %q", rec.Header().Get("X-Request-ID"))
	}

	rec, _ = f.do(t, http.MethodOptions, "/chat", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}

	rec, _ = f.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "joyrelay_uptime_seconds") {
		t.Errorf("metrics output missing uptime: %q", rec.Body.String())
	}
}

func TestGateway_WebhookHasDeadlineBelowWriteTimeout(t *testing.T) {
	f := newGatewayFixture(t, "TOKEN", "1", "")
	start := time.Now()
	_, out := f.do(t, http.MethodPost, "/telegram/webhook", aliceUpdate, nil)
	if out["status"] != "ok" {
		t.Fatalf("webhook: %v", out)
	}
	if f.responder.deadline.IsZero() {
		t.Fatal("webhook processing should run under a deadline")
	}
	if budget := f.responder.deadline.Sub(start); budget > DefaultWebhookTimeout {
		t.Fatalf("deadline %v exceeds webhook timeout %v", budget, DefaultWebhookTimeout)
	}

	srv := NewGateway(GatewayConfig{WebhookTimeout: 90 * time.Second, Logger: testLogger()}).newServer()
	if srv.WriteTimeout <= 90*time.Second {
		t.Fatalf("write timeout %v must exceed the webhook timeout", srv.WriteTimeout)
	}
	if def := NewGateway(GatewayConfig{Logger: testLogger()}).newServer(); def.WriteTimeout <= DefaultWebhookTimeout {
		t.Fatalf("default write timeout %v must exceed %v", def.WriteTimeout, DefaultWebhookTimeout)
	}
}
