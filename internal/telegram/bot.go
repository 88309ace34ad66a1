package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-planner/internal/analytics"
	"ai-planner/internal/assistant"
	"ai-planner/internal/storage"
)

const (
	tasksCmd   = "tasks"
	agendaCmd  = "agenda"
	donePrefix = "done:"

	sessionPrefix = "tg:"
	historyLimit  = 10
)

// Planner is the part of assistant.Service the bot talks to.
type Planner interface {
	HandleTurn(ctx context.Context, sessionID, message string, now time.Time) (*assistant.TurnResult, error)
	History(ctx context.Context, sessionID string, limit int) ([]assistant.HistoryEntry, error)
	ClassifyOnly(ctx context.Context, message string, now time.Time) (assistant.Preview, error)
	Tasks(ctx context.Context, sessionID string) ([]storage.Artifact, error)
	Agenda(ctx context.Context, sessionID, day string) ([]storage.Artifact, error)
	CompleteTask(ctx context.Context, sessionID, id string) (storage.Artifact, error)
	Stats(ctx context.Context, sessionID string) (*analytics.SessionStats, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	planner Planner
	loc     *time.Location
	now     func() time.Time
}

func New(botToken string, planner Planner, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:     api,
		s:       botAPISender{api: api},
		planner: planner,
		loc:     loc,
		now:     time.Now,
	}, nil
}

// SessionID maps a chat onto its conversation session.
func SessionID(chatID int64) string {
	return sessionPrefix + strconv.FormatInt(chatID, 10)
}

// ChatID reverses SessionID. ok is false for sessions that did not come
// from Telegram.
func ChatID(sessionID string) (int64, bool) {
	if !strings.HasPrefix(sessionID, sessionPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(sessionID, sessionPrefix), 10, 64)
	return id, err == nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

// Notify sends text to the chat behind sessionID. Non-Telegram sessions are
// skipped.
func (b *Bot) Notify(sessionID, text string) error {
	chatID, ok := ChatID(sessionID)
	if !ok {
		return nil
	}
	_, err := b.s.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) localNow() time.Time { return b.now().In(b.loc) }

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	log.Printf("Incoming message from chat %d: %q", msg.Chat.ID, msg.Text)

	res, err := b.planner.HandleTurn(ctx, SessionID(msg.Chat.ID), msg.Text, b.localNow())
	if err != nil {
		log.Printf("handle turn for chat %d: %v", msg.Chat.ID, err)
		b.sendMessage(msg.Chat.ID, errorText(err))
		return
	}
	log.Printf("Turn %s classified as %s", res.TurnID, res.Intent)

	out := tgbotapi.NewMessage(msg.Chat.ID, res.DisplayText)
	if res.ArtifactID != "" {
		out.ReplyMarkup = b.menuKeyboard()
	}
	if _, err := b.s.Send(out); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	sid := SessionID(msg.Chat.ID)
	switch msg.Command() {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, helpText)
	case "history":
		entries, err := b.planner.History(ctx, sid, historyLimit)
		if err != nil {
			b.sendMessage(msg.Chat.ID, errorText(err))
			return
		}
		b.sendMessage(msg.Chat.ID, formatHistory(entries))
	case tasksCmd:
		b.sendTasks(ctx, msg.Chat.ID)
	case agendaCmd:
		b.sendAgenda(ctx, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
	case "done":
		id := strings.TrimSpace(msg.CommandArguments())
		if id == "" {
			b.sendMessage(msg.Chat.ID, "Usage: /done <task_id>")
			return
		}
		b.completeTask(ctx, msg.Chat.ID, id)
	case "preview":
		text := strings.TrimSpace(msg.CommandArguments())
		if text == "" {
			b.sendMessage(msg.Chat.ID, "Usage: /preview <message>")
			return
		}
		p, err := b.planner.ClassifyOnly(ctx, text, b.localNow())
		if err != nil {
			b.sendMessage(msg.Chat.ID, errorText(err))
			return
		}
		b.sendMessage(msg.Chat.ID, formatPreview(p))
	case "stats":
		stats, err := b.planner.Stats(ctx, sid)
		if err != nil {
			b.sendMessage(msg.Chat.ID, errorText(err))
			return
		}
		b.sendMessage(msg.Chat.ID, stats.GenerateReportSummary())
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command. "+helpText)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	switch {
	case cb.Data == tasksCmd:
		b.sendTasks(ctx, chatID)
	case cb.Data == agendaCmd:
		b.sendAgenda(ctx, chatID, "")
	case strings.HasPrefix(cb.Data, donePrefix):
		b.completeTask(ctx, chatID, strings.TrimPrefix(cb.Data, donePrefix))
	}
}

func (b *Bot) sendTasks(ctx context.Context, chatID int64) {
	tasks, err := b.planner.Tasks(ctx, SessionID(chatID))
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}
	out := tgbotapi.NewMessage(chatID, assistant.FormatTasks(tasks))
	if len(tasks) > 0 {
		out.ReplyMarkup = doneKeyboard(tasks)
	}
	if _, err := b.s.Send(out); err != nil {
		log.Printf("failed to send tasks: %v", err)
	}
}

func (b *Bot) sendAgenda(ctx context.Context, chatID int64, day string) {
	if day == "" {
		day = b.localNow().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		b.sendMessage(chatID, "Usage: /agenda [YYYY-MM-DD]")
		return
	}
	items, err := b.planner.Agenda(ctx, SessionID(chatID), day)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}
	b.sendMessage(chatID, assistant.FormatAgenda(day, items))
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, id string) {
	task, err := b.planner.CompleteTask(ctx, SessionID(chatID), id)
	if err != nil {
		b.sendMessage(chatID, errorText(err))
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Done: %s", taskLabel(task)))
}

func (b *Bot) menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Tasks", tasksCmd),
			tgbotapi.NewInlineKeyboardButtonData("Today", agendaCmd),
		),
	)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
