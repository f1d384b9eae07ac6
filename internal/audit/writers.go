package audit

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// LogWriter writes every event as a structured log line.
type LogWriter struct {
	log zerolog.Logger
}

func NewLogWriter(log zerolog.Logger) *LogWriter {
	return &LogWriter{log: log}
}

func (w *LogWriter) Name() string { return "log" }

func (w *LogWriter) Write(_ context.Context, ev *domain.AuditEvent) error {
	w.log.Info().
		Str("event_id", ev.EventID).
		Str("kind", string(ev.Kind)).
		Str("mint", ev.Mint).
		Str("decision_id", ev.DecisionID).
		Str("action", string(ev.Action)).
		Str("from", string(ev.FromState)).
		Str("to", string(ev.ToState)).
		Int64("ts", ev.Timestamp).
		Msg(ev.Summary)
	return nil
}

// StoreWriter persists events to an audit event store.
type StoreWriter struct {
	store storage.AuditEventStore
}

func NewStoreWriter(store storage.AuditEventStore) *StoreWriter {
	return &StoreWriter{store: store}
}

func (w *StoreWriter) Name() string { return "store" }

func (w *StoreWriter) Write(ctx context.Context, ev *domain.AuditEvent) error {
	return w.store.Insert(ctx, ev)
}

// Sender is the part of *tgbotapi.BotAPI the TelegramWriter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramWriter posts trade decisions and position openings, closings and
// failures to a chat. Everything else is skipped.
type TelegramWriter struct {
	sender Sender
	chatID int64
}

// NewTelegramWriter connects to the bot API with token.
func NewTelegramWriter(token string, chatID int64) (*TelegramWriter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramWriterWithSender(bot, chatID), nil
}

func NewTelegramWriterWithSender(sender Sender, chatID int64) *TelegramWriter {
	return &TelegramWriter{sender: sender, chatID: chatID}
}

func (w *TelegramWriter) Name() string { return "telegram" }

func (w *TelegramWriter) Write(_ context.Context, ev *domain.AuditEvent) error {
	text, ok := telegramText(ev)
	if !ok {
		return nil
	}
	msg := tgbotapi.NewMessage(w.chatID, text)
	if _, err := w.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func telegramText(ev *domain.AuditEvent) (string, bool) {
	switch ev.Kind {
	case domain.AuditDecision:
		if !ev.Action.IsTrade() {
			return "", false
		}
		return "decision " + ev.Summary, true
	case domain.AuditTransition:
		switch ev.ToState {
		case domain.PositionOpen:
			return "opened " + ev.Summary, true
		case domain.PositionClosed:
			return "closed " + ev.Summary, true
		case domain.PositionFailed:
			return "FAILED " + ev.Summary, true
		}
	}
	return "", false
}
