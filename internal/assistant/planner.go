package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"ai-planner/internal/storage"
)

// Tasks lists the open tasks of a session in creation order.
func (s *Service) Tasks(ctx context.Context, sessionID string) ([]storage.Artifact, error) {
	const op = "tasks"
	if strings.TrimSpace(sessionID) == "" {
		return nil, inputErr(op, ErrMissingSession)
	}
	out, err := s.store.Artifacts(ctx, storage.ArtifactFilter{SessionID: sessionID, Kind: storage.KindTask, OpenOnly: true})
	if err != nil {
		return nil, persistenceErr(op, err)
	}
	return out, nil
}

// Agenda lists what a session has on day (YYYY-MM-DD): events, open tasks
// due that day and dated notes, ordered by time of day.
func (s *Service) Agenda(ctx context.Context, sessionID, day string) ([]storage.Artifact, error) {
	const op = "agenda"
	if strings.TrimSpace(sessionID) == "" {
		return nil, inputErr(op, ErrMissingSession)
	}
	out, err := s.store.Artifacts(ctx, storage.ArtifactFilter{SessionID: sessionID, Date: day, OpenOnly: true})
	if err != nil {
		return nil, persistenceErr(op, err)
	}
	sortByTime(out)
	return out, nil
}

// CompleteTask marks a task of sessionID completed. Tasks of other sessions
// are reported as not found.
func (s *Service) CompleteTask(ctx context.Context, sessionID, id string) (storage.Artifact, error) {
	const op = "complete_task"
	if strings.TrimSpace(sessionID) == "" {
		return storage.Artifact{}, inputErr(op, ErrMissingSession)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Artifact{}, inputErr(op, errors.New("task id is required"))
	}
	a, err := s.store.CompleteTask(ctx, sessionID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidData):
		return storage.Artifact{}, inputErr(op, err)
	case err != nil:
		return storage.Artifact{}, persistenceErr(op, err)
	}
	return a, nil
}

// DigestEntry is the agenda of one session for one day.
type DigestEntry struct {
	SessionID string
	Day       string
	Items     []storage.Artifact
	Text      string
}

// Digest builds per-session agendas for day across every session that has
// something scheduled. Sessions come back sorted by id.
func (s *Service) Digest(ctx context.Context, day string) ([]DigestEntry, error) {
	const op = "digest"
	arts, err := s.store.Artifacts(ctx, storage.ArtifactFilter{Date: day, OpenOnly: true})
	if err != nil {
		return nil, persistenceErr(op, err)
	}
	bySession := make(map[string][]storage.Artifact)
	for _, a := range arts {
		bySession[a.SessionID] = append(bySession[a.SessionID], a)
	}
	ids := make([]string, 0, len(bySession))
	for id := range bySession {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]DigestEntry, 0, len(ids))
	for _, id := range ids {
		items := bySession[id]
		sortByTime(items)
		out = append(out, DigestEntry{SessionID: id, Day: day, Items: items, Text: FormatAgenda(day, items)})
	}
	return out, nil
}

// FormatAgenda renders items as a plain-text list.
func FormatAgenda(day string, items []storage.Artifact) string {
	if len(items) == 0 {
		return fmt.Sprintf("Nothing planned for %s.", day)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Agenda for %s:", day)
	for _, a := range items {
		b.WriteString("\n• ")
		if a.Time != "" {
			b.WriteString(a.Time + " ")
		}
		b.WriteString(artifactLabel(a))
		fmt.Fprintf(&b, " [%s]", a.Kind)
		if a.Location != "" {
			fmt.Fprintf(&b, " @ %s", a.Location)
		}
	}
	return b.String()
}

// FormatTasks renders open tasks with their ids so they can be completed.
func FormatTasks(tasks []storage.Artifact) string {
	if len(tasks) == 0 {
		return "No open tasks."
	}
	var b strings.Builder
	b.WriteString("Open tasks:")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n• %s", artifactLabel(t))
		if t.Date != "" {
			fmt.Fprintf(&b, " (due %s)", strings.TrimSpace(t.Date+" "+t.Time))
		}
		fmt.Fprintf(&b, " [id %s]", t.ID)
	}
	return b.String()
}

func artifactLabel(a storage.Artifact) string {
	for _, s := range []string{a.Title, a.Description, a.Content} {
		if s != "" {
			return s
		}
	}
	return string(a.Kind)
}

// sortByTime keeps untimed items after timed ones and is stable otherwise.
func sortByTime(items []storage.Artifact) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Time, items[j].Time
		switch {
		case ti == "" && tj == "":
			return false
		case ti == "":
			return false
		case tj == "":
			return true
		default:
			return ti < tj
		}
	})
}

// Notifier delivers text to whoever owns a session.
type Notifier interface {
	Notify(sessionID, text string) error
}

// SendDigest builds the digest for day and hands each entry to n. Delivery
// failures are logged and counted but do not stop the remaining sessions.
func (s *Service) SendDigest(ctx context.Context, day string, n Notifier) (sent int, err error) {
	entries, err := s.Digest(ctx, day)
	if err != nil {
		return 0, err
	}
	var failed int
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := n.Notify(e.SessionID, e.Text); err != nil {
			log.Printf("assistant: digest for %s not delivered: %v", e.SessionID, err)
			failed++
			continue
		}
		sent++
	}
	if failed > 0 {
		return sent, fmt.Errorf("digest: %d of %d deliveries failed", failed, len(entries))
	}
	return sent, nil
}
