package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

// Notifier pushes operator pings to a Telegram chat. The agent never waits
// on the operator; messages are one-way status signals.
type Notifier struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(token string, chatIDStr string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %v", err)
	}

	return &Notifier{Bot: bot, ChatID: chatID}, nil
}

func (n *Notifier) Notify(_ context.Context, title, body string) error {
	msgText := fmt.Sprintf("*[%s]*\n\n%s", escapeMarkdown(title), escapeMarkdown(body))
	msg := tgbotapi.NewMessage(n.ChatID, msgText)
	msg.ParseMode = "Markdown"

	_, err := n.Bot.Send(msg)
	return err
}

// escapeMarkdown keeps arbitrary reply text from breaking Telegram's
// Markdown parser.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
