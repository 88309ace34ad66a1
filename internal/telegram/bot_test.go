package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-planner/internal/assistant"
	"ai-planner/internal/intent"
	"ai-planner/internal/storage"
)

type fakeSender struct {
	sent    []string
	markups []interface{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	sw := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sw.Text)
	f.markups = append(f.markups, sw.ReplyMarkup)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

var fixedNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func stubOracle() intent.Oracle {
	return intent.OracleFunc(func(ctx context.Context, req intent.Request) (intent.Verdict, error) {
		m := strings.ToLower(req.Message)
		switch {
		case strings.Contains(m, "meeting"):
			return intent.Verdict{Intent: "event", Title: "Meeting", When: "tomorrow at 3pm"}, nil
		case strings.Contains(m, "call mom"):
			return intent.Verdict{Intent: "task", Title: "Call mom", Content: "Call mom", When: "today"}, nil
		default:
			return intent.Verdict{Intent: "response", Content: "Hello!"}, nil
		}
	})
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	t.Helper()
	svc, err := assistant.New(stubOracle(), storage.NewMemoryStore(), assistant.Options{})
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	fs := &fakeSender{}
	return &Bot{s: fs, planner: svc, loc: time.UTC, now: func() time.Time { return fixedNow }}, fs
}

func textMsg(chatID int64, text string) *tgbotapi.Message {
	m := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return m
}

func TestSessionIDRoundTrip(t *testing.T) {
	sid := SessionID(-100123)
	if sid != "tg:-100123" {
		t.Fatalf("unexpected session id %q", sid)
	}
	if id, ok := ChatID(sid); !ok || id != -100123 {
		t.Fatalf("unexpected chat id %d %v", id, ok)
	}
	if _, ok := ChatID("mcp:abc"); ok {
		t.Fatalf("foreign session should not map to a chat")
	}
}

func TestHandleIncomingMessage_RepliesWithDisplayText(t *testing.T) {
	b, fs := newTestBot(t)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, textMsg(100, "Schedule meeting tomorrow at 3pm"))
	if got := fs.last(); got != "Event scheduled: Meeting on 2024-01-11 at 15:00" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if _, ok := fs.markups[0].(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatalf("artifact replies should carry the menu keyboard")
	}

	b.handleIncomingMessage(ctx, textMsg(100, "hi"))
	if fs.last() != "Hello!" || fs.markups[1] != nil {
		t.Fatalf("plain response should be sent without keyboard: %q", fs.last())
	}

	b.handleIncomingMessage(ctx, textMsg(100, "/history"))
	out := fs.last()
	if !strings.Contains(out, "Schedule meeting tomorrow at 3pm") || !strings.Contains(out, "me [event]") {
		t.Fatalf("history missing turns: %q", out)
	}
}

func TestTasksAndDoneFlow(t *testing.T) {
	b, fs := newTestBot(t)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, textMsg(7, "remind me to call mom"))
	b.handleIncomingMessage(ctx, textMsg(7, "/tasks"))
	if !strings.Contains(fs.last(), "Call mom") {
		t.Fatalf("task list missing task: %q", fs.last())
	}
	kb, ok := fs.markups[len(fs.markups)-1].(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("expected one done button, got %+v", fs.markups[len(fs.markups)-1])
	}
	data := *kb.InlineKeyboard[0][0].CallbackData
	if !strings.HasPrefix(data, donePrefix) {
		t.Fatalf("unexpected callback data %q", data)
	}

	// another chat cannot complete it
	b.handleIncomingMessage(ctx, textMsg(8, "/done "+strings.TrimPrefix(data, donePrefix)))
	if fs.last() != "I could not find that task." {
		t.Fatalf("foreign chat completed the task: %q", fs.last())
	}

	b.handleCallback(ctx, &tgbotapi.CallbackQuery{Data: data, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}}})
	if fs.last() != "Done: Call mom" {
		t.Fatalf("unexpected completion reply: %q", fs.last())
	}
	b.handleIncomingMessage(ctx, textMsg(7, "/tasks"))
	if fs.last() != "No open tasks." {
		t.Fatalf("completed task still listed: %q", fs.last())
	}

	b.handleIncomingMessage(ctx, textMsg(7, "/done missing"))
	if fs.last() != "I could not find that task." {
		t.Fatalf("unexpected reply for unknown task: %q", fs.last())
	}
}

func TestAgendaPreviewAndStats(t *testing.T) {
	b, fs := newTestBot(t)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, textMsg(1, "Schedule meeting tomorrow at 3pm"))
	b.handleIncomingMessage(ctx, textMsg(1, "/agenda 2024-01-11"))
	if !strings.Contains(fs.last(), "15:00 Meeting [event]") {
		t.Fatalf("agenda missing event: %q", fs.last())
	}
	b.handleIncomingMessage(ctx, textMsg(1, "/agenda"))
	if fs.last() != "Nothing planned for 2024-01-10." {
		t.Fatalf("today's agenda should be empty: %q", fs.last())
	}
	b.handleIncomingMessage(ctx, textMsg(1, "/agenda soon"))
	if !strings.HasPrefix(fs.last(), "Usage: /agenda") {
		t.Fatalf("bad date should print usage: %q", fs.last())
	}

	b.handleIncomingMessage(ctx, textMsg(1, "/preview team meeting tomorrow at 3pm"))
	if !strings.Contains(fs.last(), "Intent: event") || !strings.Contains(fs.last(), "Date: 2024-01-11") {
		t.Fatalf("unexpected preview: %q", fs.last())
	}

	b.handleIncomingMessage(ctx, textMsg(1, "/stats"))
	if !strings.Contains(fs.last(), "Messages: 1") || !strings.Contains(fs.last(), "- event: 1") {
		t.Fatalf("unexpected stats: %q", fs.last())
	}
}

func TestNotifySkipsForeignSessions(t *testing.T) {
	b, fs := newTestBot(t)
	if err := b.Notify("mcp:x", "hi"); err != nil || len(fs.sent) != 0 {
		t.Fatalf("foreign session should be skipped")
	}
	if err := b.Notify(SessionID(5), "agenda"); err != nil || fs.last() != "agenda" {
		t.Fatalf("notify not sent: %+v", fs.sent)
	}
}

func TestErrorText(t *testing.T) {
	if !strings.Contains(errorText(&assistant.Error{Kind: assistant.KindPersistence}), "Nothing was stored") {
		t.Fatalf("persistence errors should say nothing was stored")
	}
}
