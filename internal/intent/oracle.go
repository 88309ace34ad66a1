package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-planner/internal/llm"
)

// Request is what an Oracle sees for one classification.
type Request struct {
	History []llm.Message
	Message string
	Now     time.Time
}

// Verdict is the raw oracle output. When carries the temporal phrase as the
// user wrote it; it is normalized locally against Request.Now.
type Verdict struct {
	Intent    string
	Title     string
	Content   string
	When      string
	Location  string
	Tags      []string
	Reminders []int
}

// Oracle is the natural-language-understanding capability behind the
// classifier. Tests substitute deterministic stubs.
type Oracle interface {
	Classify(ctx context.Context, req Request) (Verdict, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, req Request) (Verdict, error)

func (f OracleFunc) Classify(ctx context.Context, req Request) (Verdict, error) { return f(ctx, req) }

// LLMOracle asks a chat model for a strict JSON verdict.
type LLMOracle struct {
	client llm.Client
}

func NewLLMOracle(client llm.Client) *LLMOracle {
	return &LLMOracle{client: client}
}

func (o *LLMOracle) Classify(ctx context.Context, req Request) (Verdict, error) {
	msgs := make([]llm.Message, 0, len(req.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: buildSystemPrompt(req.Now)})
	msgs = append(msgs, req.History...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Message})

	resp, err := o.client.Generate(ctx, msgs)
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(resp.Content)
}

func buildSystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a planning assistant that helps users manage their day.
Current date: %s (%s)
Current time: %s

Classify the user's latest message as exactly one of:
- event: a time-specific activity or appointment
- task: an action item or todo, optionally with a deadline
- note: information the user wants to remember
- response: general conversation or a question

Reply with a single JSON object and nothing else:
{
  "type": "event|task|note|response",
  "title": "short title (event, task, note)",
  "content": "description of the item, or your conversational reply for type=response",
  "when": "the date/time phrase exactly as the user wrote it, e.g. \"tomorrow at 3pm\"; empty if none",
  "location": "place, empty if none",
  "tags": ["short", "labels"],
  "reminders": [30]
}

Rules:
- Copy date and time phrases verbatim into "when". Do not convert them to dates yourself.
- reminders are minutes before the start; omit when not relevant.
- For type=response put the full reply text into "content".`,
		now.Format("2006-01-02"), now.Weekday(), now.Format("15:04"))
}

type verdictJSON struct {
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	When      string          `json:"when"`
	Date      string          `json:"date"`
	Time      string          `json:"time"`
	Location  string          `json:"location"`
	Tags      []string        `json:"tags"`
	Reminders json.RawMessage `json:"reminders"`
}

func parseVerdict(s string) (Verdict, error) {
	raw := []byte(stripFences(s))
	if bytes.HasPrefix(raw, []byte("[")) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return Verdict{}, fmt.Errorf("%w: %q", ErrMalformedReply, truncate(s, 200))
		}
		raw = items[0]
	}
	var v verdictJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %q", ErrMalformedReply, truncate(s, 200))
	}
	when := strings.TrimSpace(v.When)
	if when == "" {
		// Older prompts asked for pre-normalized date/time fields.
		when = strings.TrimSpace(v.Date + " " + v.Time)
	}
	return Verdict{
		Intent:    v.Type,
		Title:     v.Title,
		Content:   v.Content,
		When:      when,
		Location:  v.Location,
		Tags:      v.Tags,
		Reminders: parseReminders(v.Reminders),
	}, nil
}

// parseReminders accepts both [30, 60] and [{"time_before": 30}].
func parseReminders(raw json.RawMessage) []int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var mins []int
	if err := json.Unmarshal(raw, &mins); err == nil {
		return mins
	}
	var objs []struct {
		TimeBefore int `json:"time_before"`
	}
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil
	}
	for _, o := range objs {
		mins = append(mins, o.TimeBefore)
	}
	return mins
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
