// internal/telegram/adapter.go
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/birdwatch/internal/types"
)

const maxSummaryPreview = 200

// Adapter delivers alerts to a single Telegram chat and surfaces operator
// commands sent to the bot. It implements types.AlertChannel.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	mu     sync.Mutex
	offset int
}

// New creates a Telegram adapter bound to one chat.
func New(token string, chatID int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{bot: bot, chatID: chatID}, nil
}

// Send delivers a new-activity alert. Failures wrap ErrDispatchFailed so the
// engine can tell a lost alert from a lost query.
func (a *Adapter) Send(_ context.Context, account types.Account, event *types.Event) error {
	if err := a.sendHTML(formatAlert(account, event)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrDispatchFailed, err)
	}
	return nil
}

// SendText delivers a plain notice (confirmations, lifecycle messages).
func (a *Adapter) SendText(_ context.Context, text string) error {
	if err := a.sendHTML(text); err != nil {
		return fmt.Errorf("%w: %v", types.ErrDispatchFailed, err)
	}
	return nil
}

// sendHTML sends with HTML parse mode, falling back to plain text once if the
// markup is rejected.
func (a *Adapter) sendHTML(text string) error {
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := a.bot.Send(msg); err != nil {
		msg.ParseMode = ""
		if _, err := a.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// PollCommands fetches pending updates without blocking and parses bot
// commands out of them. Messages from other chats are ignored; the update
// offset advances past everything fetched either way.
func (a *Adapter) PollCommands(_ context.Context) ([]types.Command, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u := tgbotapi.NewUpdate(a.offset)
	u.Timeout = 0

	updates, err := a.bot.GetUpdates(u)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	var cmds []types.Command
	for _, update := range updates {
		if update.UpdateID >= a.offset {
			a.offset = update.UpdateID + 1
		}
		if update.Message == nil || update.Message.Chat.ID != a.chatID {
			continue
		}
		if cmd, ok := parseCommand(update.Message.Text); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

// parseCommand maps a message text onto an operator command. A bare /remove
// targets the last-alerted account.
func parseCommand(text string) (types.Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return types.Command{}, false
	}

	// Commands in group chats arrive as "/remove@botname".
	verb := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(verb, "@"); at >= 0 {
		verb = verb[:at]
	}

	switch verb {
	case "remove":
		if len(fields) < 2 {
			return types.Command{Verb: types.VerbRemove, Target: types.TargetLastAlerted}, true
		}
		return types.Command{Verb: types.VerbRemove, Target: fields[1]}, true
	default:
		return types.Command{}, false
	}
}

// formatAlert renders the alert message: bold header, escaped summary
// preview, and a link to the post.
func formatAlert(account types.Account, event *types.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>New post from @%s</b>\n\n", account)

	if event.Summary != "" {
		preview := event.Summary
		if len(preview) > maxSummaryPreview {
			preview = preview[:maxSummaryPreview] + "..."
		}
		fmt.Fprintf(&b, "<i>%s</i>\n\n", html.EscapeString(preview))
	}

	fmt.Fprintf(&b, "<a href=\"%s\">View Post</a>", event.Link)
	return b.String()
}
