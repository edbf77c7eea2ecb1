package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends alert notifications to a Telegram chat. It is disabled when
// no token or chat id is configured; every method is then a no-op, so callers
// never need to check.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewNotifier creates a Telegram notifier. An empty token or zero chat id
// returns a disabled notifier; a token that Telegram rejects is logged and
// also yields a disabled notifier rather than an error, because the bell
// system must come up even when the network is down.
func NewNotifier(token string, chatID int64, logger *slog.Logger) *Notifier {
	n := &Notifier{chatID: chatID, logger: logger.With("component", "notify")}
	if token == "" || chatID == 0 {
		n.logger.Info("Telegram notifications disabled")
		return n
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		n.logger.Error("Telegram bot init failed, notifications disabled", "error", err)
		return n
	}
	n.api = api
	n.logger.Info("Telegram notifications enabled", "bot", api.Self.UserName)
	return n
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.api != nil
}

// send delivers a message on a goroutine so HTTP handlers never block on
// Telegram.
func (n *Notifier) send(text string) {
	if n.api == nil {
		return
	}
	go func() {
		msg := tgbotapi.NewMessage(n.chatID, text)
		if _, err := n.api.Send(msg); err != nil {
			n.logger.Error("Telegram send failed", "error", err)
		}
	}()
}

// AlertTriggered announces that an alert siren started.
func (n *Notifier) AlertTriggered(filename, user string) {
	n.send(fmt.Sprintf("🚨 Alerte déclenchée: %s (par %s)", filename, user))
}

// AlertStopped announces that the alert was stopped.
func (n *Notifier) AlertStopped(user string) {
	n.send(fmt.Sprintf("✅ Alerte arrêtée (par %s)", user))
}

// AlertEnded announces the end-of-alert signal.
func (n *Notifier) AlertEnded(user string) {
	n.send(fmt.Sprintf("🔔 Fin d'alerte diffusée (par %s)", user))
}
