package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ai-planner/internal/storage"
)

// SessionStats содержит статистику по одной сессии
type SessionStats struct {
	SessionID       string         `json:"session_id"`
	TotalTurns      int            `json:"total_turns"`
	UserMessages    int            `json:"user_messages"`
	Replies         int            `json:"replies"`
	ByIntent        map[string]int `json:"by_intent"`
	UnresolvedDates int            `json:"unresolved_dates"`
	ActiveDays      int            `json:"active_days"`
	FirstTurn       time.Time      `json:"first_turn,omitempty"`
	LastTurn        time.Time      `json:"last_turn,omitempty"`
}

// Summarize считает статистику по репликам сессии
func Summarize(sessionID string, turns []storage.Turn) *SessionStats {
	stats := &SessionStats{
		SessionID: sessionID,
		ByIntent:  make(map[string]int),
	}
	days := make(map[string]bool)

	for _, t := range turns {
		stats.TotalTurns++
		days[t.Timestamp.Format("2006-01-02")] = true
		if stats.FirstTurn.IsZero() || t.Timestamp.Before(stats.FirstTurn) {
			stats.FirstTurn = t.Timestamp
		}
		if t.Timestamp.After(stats.LastTurn) {
			stats.LastTurn = t.Timestamp
		}

		if t.Role == storage.RoleUser {
			stats.UserMessages++
			continue
		}
		// Интент есть только у ответов ассистента
		stats.Replies++
		if t.Intent != "" {
			stats.ByIntent[t.Intent]++
		}
		if t.DateUnresolved {
			stats.UnresolvedDates++
		}
	}

	stats.ActiveDays = len(days)
	return stats
}

// GenerateReportSummary создает текстовое резюме для пользователя
func (s *SessionStats) GenerateReportSummary() string {
	if s.TotalTurns == 0 {
		return "No conversation yet."
	}
	summary := fmt.Sprintf(`Conversation stats:
- Messages: %d
- Replies: %d
- Active days: %d
`, s.UserMessages, s.Replies, s.ActiveDays)

	if len(s.ByIntent) > 0 {
		summary += "\nBy intent:\n"
		intents := make([]string, 0, len(s.ByIntent))
		for in := range s.ByIntent {
			intents = append(intents, in)
		}
		sort.Strings(intents)
		for _, in := range intents {
			summary += fmt.Sprintf("- %s: %d\n", in, s.ByIntent[in])
		}
	}
	if s.UnresolvedDates > 0 {
		summary += fmt.Sprintf("\nDates to confirm: %d\n", s.UnresolvedDates)
	}
	return summary
}

// ToJSON сериализует статистику в JSON
func (s *SessionStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
