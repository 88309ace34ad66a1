package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"ai-planner/internal/llm"
)

type fakeLLM struct {
	resp llm.Response
	err  error
	got  []llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.got = msgs
	return f.resp, f.err
}

func TestLLMOracleBuildsConversation(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: `{"type":"event","title":"Meeting","content":"Team meeting","when":"tomorrow at 3pm"}`}}
	o := NewLLMOracle(f)
	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}}

	v, err := o.Classify(context.Background(), Request{History: history, Message: "Schedule meeting tomorrow at 3pm", Now: now})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if v.Intent != "event" || v.Title != "Meeting" || v.When != "tomorrow at 3pm" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if len(f.got) != 4 || f.got[0].Role != llm.RoleSystem || f.got[3].Content != "Schedule meeting tomorrow at 3pm" {
		t.Fatalf("unexpected prompt: %+v", f.got)
	}
	if !strings.Contains(f.got[0].Content, "2024-01-10 (Wednesday)") || !strings.Contains(f.got[0].Content, "09:00") {
		t.Fatalf("system prompt must carry the reference instant: %s", f.got[0].Content)
	}
}

func TestLLMOraclePropagatesClientError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLLMOracle(&fakeLLM{err: boom}).Classify(context.Background(), Request{Message: "x", Now: now})
	if !errors.Is(err, boom) {
		t.Fatalf("want client error, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict("```json\n{\"type\":\"task\",\"content\":\"Pay rent\",\"date\":\"2024-02-01\",\"reminders\":[{\"time_before\":60,\"types\":[\"notification\"]}]}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Intent != "task" || v.When != "2024-02-01" || len(v.Reminders) != 1 || v.Reminders[0] != 60 {
		t.Fatalf("unexpected verdict: %+v", v)
	}

	v, err = parseVerdict(`[{"type":"note","content":"code 4567","reminders":[15]}, {"type":"event"}]`)
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if v.Intent != "note" || v.Reminders[0] != 15 {
		t.Fatalf("array must yield its first element: %+v", v)
	}

	for _, bad := range []string{"Sure! Here is your event.", "[]", ""} {
		if _, err := parseVerdict(bad); !errors.Is(err, ErrMalformedReply) {
			t.Fatalf("%q: want ErrMalformedReply, got %v", bad, err)
		}
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	// "привет" is two bytes per rune; cutting at 5 would split the third one
	got := truncate("привет", 5)
	if got != "пр..." {
		t.Fatalf("got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatalf("short text must be kept")
	}
}
