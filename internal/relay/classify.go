package relay

import (
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Kind tags what an inbound update carries.
type Kind int

const (
	KindIgnored Kind = iota // no message payload
	KindText
	KindVoice
	KindCommand
	KindUnsupported // neither text nor voice
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindCommand:
		return "command"
	case KindUnsupported:
		return "unsupported"
	default:
		return "ignored"
	}
}

// DefaultSender names a message without a sender first name.
const DefaultSender = "User"

var errNoChat = errors.New("message has no chat")

// Inbound is a Telegram update decoded once at the webhook boundary.
type Inbound struct {
	Kind      Kind
	ChatID    string
	Sender    string
	MessageID int64
	Text      string   // KindText
	Command   *Command // KindCommand
	FileID    string   // KindVoice
}

// Classify turns an update into an Inbound. Only update.Message is
// considered; edits, channel posts and callbacks are ignored.
func Classify(update tgbotapi.Update) (Inbound, error) {
	msg := update.Message
	if msg == nil {
		return Inbound{Kind: KindIgnored}, nil
	}
	if msg.Chat == nil {
		return Inbound{}, errNoChat
	}

	in := Inbound{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Sender:    DefaultSender,
		MessageID: int64(msg.MessageID),
	}
	if msg.From != nil && msg.From.FirstName != "" {
		in.Sender = msg.From.FirstName
	}

	switch {
	case msg.Text != "":
		if cmd := ParseCommand(msg.Text); cmd != nil {
			in.Kind = KindCommand
			in.Command = cmd
			return in, nil
		}
		in.Kind = KindText
		in.Text = msg.Text
	case msg.Voice != nil:
		in.Kind = KindVoice
		in.FileID = msg.Voice.FileID
	default:
		in.Kind = KindUnsupported
	}
	return in, nil
}
