package relay

import (
	"reflect"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want *Command
	}{
		{"hello", nil},
		{"/start", &Command{Name: "start", Raw: "/start"}},
		{"/START@Joy_Bot", &Command{Name: "start", Raw: "/START@Joy_Bot"}},
		{"/help me now ", &Command{Name: "help", Args: []string{"me", "now"}, Raw: "/help me now "}},
		{" /start", nil},
		{"\n/start", nil},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.text)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	chat := &tgbotapi.Chat{ID: -100123}

	in, err := Classify(tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 4, Chat: chat, Text: "hey"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Kind != KindText || in.ChatID != "-100123" || in.Sender != DefaultSender || in.MessageID != 4 {
		t.Errorf("unexpected inbound %+v", in)
	}

	in, _ = Classify(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  chat,
		From:  &tgbotapi.User{FirstName: "Alice"},
		Voice: &tgbotapi.Voice{FileID: "abc"},
	}})
	if in.Kind != KindVoice || in.FileID != "abc" || in.Sender != "Alice" {
		t.Errorf("unexpected inbound %+v", in)
	}

	in, _ = Classify(tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 5, Chat: chat, Text: " /start"}})
	if in.Kind != KindText || in.Text != " /start" {
		t.Errorf("leading space should make it plain text, got %+v", in)
	}

	in, _ = Classify(tgbotapi.Update{})
	if in.Kind != KindIgnored {
		t.Errorf("expected ignored, got %v", in.Kind)
	}

	if _, err := Classify(tgbotapi.Update{Message: &tgbotapi.Message{Text: "x"}}); err == nil {
		t.Error("expected error for message without chat")
	}
}
