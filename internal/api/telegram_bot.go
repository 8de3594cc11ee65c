// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/integration/openai"
	"go.uber.org/zap"
)

// rainLogListLimit is how many of the newest rain log dates /rainlogs shows
const rainLogListLimit = 7

// EvaporationReports is the read side of the evaporation use case the bot needs
type EvaporationReports interface {
	LiveReading(ctx context.Context) (*entities.LiveReading, error)
	DailyResults(ctx context.Context) ([]entities.DailyRecord, error)
	RecentRolling(ctx context.Context, limit int) ([]entities.RollingRecord, error)
	AvailableRainLogs(ctx context.Context) ([]time.Time, error)
	FormatDailyReport(rec entities.DailyRecord) string
	FormatRollingReport(records []entities.RollingRecord) string
}

// QueryInterpreter maps free text onto one of the bot's commands
type QueryInterpreter interface {
	Interpret(ctx context.Context, userMessage string) (*openai.Intent, error)
}

// TelegramBot answers station queries in Telegram and pushes daily reports to one chat
type TelegramBot struct {
	bot         *tgbotapi.BotAPI
	reports     EvaporationReports
	interpreter QueryInterpreter
	chatID      int64
	logger      *zap.SugaredLogger
}

// NewTelegramBot creates a new Telegram bot handler. chatID is where daily reports
// go; zero disables the push.
func NewTelegramBot(botToken string, chatID int64, reports EvaporationReports, logger *zap.SugaredLogger) (*TelegramBot, error) {
	return newTelegramBot(botToken, tgbotapi.APIEndpoint, chatID, reports, logger)
}

func newTelegramBot(botToken, endpoint string, chatID int64, reports EvaporationReports, logger *zap.SugaredLogger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		reports: reports,
		chatID:  chatID,
		logger:  logger.Named("telegram"),
	}, nil
}

// SetInterpreter lets the bot answer free-text messages. Without one they get the help hint.
func (t *TelegramBot) SetInterpreter(i QueryInterpreter) {
	t.interpreter = i
}

// NotifyDaily sends a freshly computed daily result to the configured chat
func (t *TelegramBot) NotifyDaily(_ context.Context, rec entities.DailyRecord) error {
	if t.chatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, t.reports.FormatDailyReport(rec))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send daily report for %s: %w", rec.Date, err)
	}
	t.logger.Infow("daily report sent", "date", rec.Date, "chat_id", t.chatID)
	return nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Infow("authorized on Telegram", "account", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			t.logger.Debugw("received message",
				"user", update.Message.From.UserName,
				"user_id", update.Message.From.ID,
				"text", update.Message.Text)

			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes a Telegram message and sends the reply
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	msg := tgbotapi.NewMessage(message.Chat.ID, t.reply(ctx, message))

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Errorw("error sending message", "chat_id", message.Chat.ID, "error", err)
	}
}

// reply builds the answer for a message
func (t *TelegramBot) reply(ctx context.Context, message *tgbotapi.Message) string {
	if !message.IsCommand() {
		return t.replyToText(ctx, message.Text)
	}
	return t.commandReply(ctx, message.Command())
}

// replyToText asks the interpreter which command the user meant and answers with it
func (t *TelegramBot) replyToText(ctx context.Context, text string) string {
	if t.interpreter == nil {
		return "I don't understand. Use /help to see available commands."
	}

	intent, err := t.interpreter.Interpret(ctx, text)
	if err != nil {
		t.logger.Warnw("error interpreting user query", "error", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help."
	}

	if intent.Command == openai.CommandGeneral {
		if intent.UserMessage == "" {
			return "I don't understand. Use /help to see available commands."
		}
		return intent.UserMessage
	}

	msg := intent.UserMessage
	if msg != "" {
		msg += "\n\n"
	}
	return msg + t.commandReply(ctx, intent.Command)
}

func (t *TelegramBot) commandReply(ctx context.Context, command string) string {
	switch command {
	case "start":
		return "Welcome to the evaporation monitor! Use /daily for the latest daily evaporation or /help for more information."
	case "help":
		return "Available commands:\n" +
			"/start - Start the bot\n" +
			"/latest - Show the live water-surface reading\n" +
			"/daily - Show the latest daily evaporation\n" +
			"/recent - Show the latest 10-minute evaporation results\n" +
			"/rainlogs - Show the newest days with rain gauge logs\n" +
			"/help - Show this help message"
	case openai.CommandLatest:
		live, err := t.reports.LiveReading(ctx)
		if err != nil {
			t.logger.Warnw("error reading live height", "error", err)
			return "Error reading the live sensor. Please try again later."
		}
		if live == nil {
			return "No live reading available yet."
		}
		return fmt.Sprintf("📏 Live distance: %.2f mm", live.Distance)
	case openai.CommandDaily:
		records, err := t.reports.DailyResults(ctx)
		if err != nil {
			t.logger.Warnw("error reading daily results", "error", err)
			return "Error reading daily results. Please try again later."
		}
		if len(records) == 0 {
			return "No daily evaporation results yet."
		}
		return t.reports.FormatDailyReport(records[len(records)-1])
	case openai.CommandRecent:
		records, err := t.reports.RecentRolling(ctx, 6)
		if err != nil {
			t.logger.Warnw("error reading rolling results", "error", err)
			return "Error reading recent results. Please try again later."
		}
		return t.reports.FormatRollingReport(records)
	case openai.CommandRainLogs:
		dates, err := t.reports.AvailableRainLogs(ctx)
		if err != nil {
			t.logger.Warnw("error listing rain logs", "error", err)
			return "Error reaching the rain gauge logger. Please try again later."
		}
		if len(dates) == 0 {
			return "No rain gauge logs are published."
		}
		if len(dates) > rainLogListLimit {
			dates = dates[len(dates)-rainLogListLimit:]
		}
		var result strings.Builder
		result.WriteString("🌧️ Rain gauge logs available:\n")
		for _, d := range dates {
			result.WriteString(d.Format(entities.DailyKeyLayout) + "\n")
		}
		return result.String()
	default:
		return "Unknown command. Use /help to see available commands."
	}
}
