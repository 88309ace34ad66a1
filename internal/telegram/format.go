package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-planner/internal/assistant"
	"ai-planner/internal/storage"
)

const helpText = `Send me anything: events, tasks, notes or questions.
/history - last messages
/tasks - open tasks
/agenda [YYYY-MM-DD] - what is planned for a day
/done <task_id> - complete a task
/preview <text> - classify without saving
/stats - conversation stats`

// telegram caps callback data at 64 bytes
const maxCallbackData = 64

func errorText(err error) string {
	switch assistant.KindOf(err) {
	case assistant.KindInput:
		var e *assistant.Error
		if errors.As(err, &e) && errors.Is(e.Err, storage.ErrNotFound) {
			return "I could not find that task."
		}
		return "I could not use that input. Please check it and try again."
	case assistant.KindClassification:
		return "I could not understand that right now. Please try again."
	case assistant.KindPersistence:
		return "I could not save that. Nothing was stored, please send it again."
	default:
		return "Sorry, something went wrong."
	}
}

func formatHistory(entries []assistant.HistoryEntry) string {
	if len(entries) == 0 {
		return "History is empty."
	}
	var b strings.Builder
	b.WriteString("Recent messages:")
	for _, e := range entries {
		who := "you"
		if e.Role == storage.RoleAssistant {
			who = "me"
			if e.Intent != "" {
				who += " [" + e.Intent + "]"
			}
		}
		fmt.Fprintf(&b, "\n%s %s: %s", e.Timestamp.Format("01-02 15:04"), who, e.Content)
	}
	return b.String()
}

func formatPreview(p assistant.Preview) string {
	s := "Intent: " + p.Intent.String()
	if p.Date != "" {
		s += "\nDate: " + p.Date
	}
	if p.Time != "" {
		s += "\nTime: " + p.Time
	}
	for _, w := range p.Warnings {
		if w == assistant.WarnDateUnresolved {
			s += "\nDate could not be resolved."
		}
	}
	return s
}

func taskLabel(a storage.Artifact) string {
	if a.Description != "" {
		return a.Description
	}
	return a.Title
}

func doneKeyboard(tasks []storage.Artifact) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tasks {
		data := donePrefix + t.ID
		if len(data) > maxCallbackData {
			continue
		}
		label := taskLabel(t)
		if r := []rune(label); len(r) > 30 {
			label = string(r[:30]) + "…"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✓ "+label, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
