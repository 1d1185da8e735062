package relay

import "strings"

// Command is a parsed slash command such as "/start" or "/start@joy_bot".
type Command struct {
	Name string   // lowercase, without "/" and "@bot" suffix
	Args []string // whitespace-separated arguments
	Raw  string
}

// ParseCommand returns nil when text is not a command. Only text whose very
// first character is "/" counts; " /start" is ordinary chat.
func ParseCommand(text string) *Command {
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}

	name := strings.TrimPrefix(parts[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return &Command{
		Name: name,
		Args: args,
		Raw:  text,
	}
}

// commandReply returns the text to send for cmd, or "" to acknowledge it
// silently.
func commandReply(cmd *Command) string {
	switch cmd.Name {
	case "start":
		return GreetingText
	case "help":
		return HelpText
	default:
		return ""
	}
}
