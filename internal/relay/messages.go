package relay

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Texts sent to Telegram. They are HTML; dynamic parts are escaped.
const (
	NotifyText = "🌸 <b>Joy Girl detected you!</b>\n\n" +
		"Reply to this message to chat!\n" +
		"You can send text or voice message.\n\n" +
		"💡 Your message will appear on Joy Girl's OLED screen!"

	GreetingText = "🌸 Hi! I'm Joy Girl! Wave your hand over the IR sensor to chat!"

	HelpText = "🌸 <b>Joy Girl</b>\n\n" +
		"Wave your hand over the IR sensor and I'll ping you here.\n" +
		"Reply with text or a voice message and my answer shows up on the OLED screen.\n\n" +
		"/start - say hi\n" +
		"/help - show this message"

	ProcessingVoiceText = "🎧 Processing voice..."

	// UnheardText replaces the transcript when a voice note cannot be
	// downloaded.
	UnheardText = "I couldn't hear clearly"
)

func transcriptText(transcript string) string {
	return fmt.Sprintf("📝 You said: \"%s\"", tgbotapi.EscapeText(tgbotapi.ModeHTML, transcript))
}

func replyText(reply string) string {
	return "🌸 " + tgbotapi.EscapeText(tgbotapi.ModeHTML, reply)
}
