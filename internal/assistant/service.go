// Package assistant is the conversation engine: it turns one inbound message
// into a classified, rendered and persisted turn.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ai-planner/internal/analytics"
	"ai-planner/internal/artifact"
	"ai-planner/internal/history"
	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
	"ai-planner/internal/reply"
	"ai-planner/internal/storage"
)

const (
	DefaultOracleTimeout = 30 * time.Second
	DefaultCacheSize     = 256
)

// Exporter mirrors committed events somewhere else, e.g. a calendar. It runs
// after the turn is committed and its failure never fails the turn.
type Exporter interface {
	ExportEvent(ctx context.Context, ev storage.Artifact) error
}

type Options struct {
	HistoryWindow int
	OracleTimeout time.Duration
	CacheSize     int
	Exporter      Exporter
}

type Service struct {
	classifier *intent.Classifier
	store      storage.Store
	history    *history.Manager
	timeout    time.Duration
	previews   *lru.Cache[string, Preview]
	exporter   Exporter
}

// TurnResult is what HandleTurn returns on success.
type TurnResult struct {
	Intent      intent.Intent `json:"intent"`
	DisplayText string        `json:"display_text"`
	Date        string        `json:"date,omitempty"`
	Time        string        `json:"time,omitempty"`
	TurnID      string        `json:"turn_id"`
	UserTurnID  string        `json:"user_turn_id"`
	ArtifactID  string        `json:"artifact_id,omitempty"`
	Warnings    []Warning     `json:"warnings,omitempty"`
}

type HistoryEntry struct {
	Role      storage.Role `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Intent    string       `json:"intent,omitempty"`
	Date      string       `json:"date,omitempty"`
	Time      string       `json:"time,omitempty"`
}

// Preview is the stateless classification returned by ClassifyOnly.
type Preview struct {
	Intent   intent.Intent `json:"intent"`
	Date     string        `json:"date,omitempty"`
	Time     string        `json:"time,omitempty"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

func New(oracle intent.Oracle, store storage.Store, opts Options) (*Service, error) {
	if oracle == nil || store == nil {
		return nil, errors.New("assistant: oracle and store are required")
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = DefaultOracleTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Preview](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("assistant: preview cache: %w", err)
	}
	h := history.NewManager(store, opts.HistoryWindow)
	return &Service{
		classifier: intent.NewClassifier(oracle, h.WindowSize()),
		store:      store,
		history:    h,
		timeout:    opts.OracleTimeout,
		previews:   cache,
		exporter:   opts.Exporter,
	}, nil
}

// HandleTurn classifies message in the context of the session's history,
// renders the reply and commits the user turn, the assistant turn and any
// artifact together. On error nothing is written.
func (s *Service) HandleTurn(ctx context.Context, sessionID, message string, now time.Time) (*TurnResult, error) {
	const op = "handle_turn"
	sessionID = strings.TrimSpace(sessionID)
	msg := strings.TrimSpace(message)
	if sessionID == "" {
		return nil, inputErr(op, ErrMissingSession)
	}
	if msg == "" {
		return nil, inputErr(op, ErrEmptyMessage)
	}

	unlock, err := s.history.Lock(ctx, sessionID)
	if err != nil {
		return nil, classificationErr(op, err)
	}
	defer unlock()

	window, err := s.history.Window(ctx, sessionID)
	if err != nil {
		return nil, persistenceErr(op, fmt.Errorf("read history: %w", err))
	}

	c, err := s.classify(ctx, window, msg, now)
	if err != nil {
		return nil, s.classifyFailure(op, err)
	}
	display := reply.Render(c)

	res := &TurnResult{Intent: c.Intent, DisplayText: display, Date: c.Date, Time: c.Time}
	if c.DateUnresolved {
		res.Warnings = append(res.Warnings, WarnDateUnresolved)
	}

	var rec *storage.Artifact
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.EnsureSession(sessionID, now); err != nil {
			return err
		}
		userID, err := tx.AppendTurn(storage.Turn{
			SessionID: sessionID,
			Role:      storage.RoleUser,
			Content:   msg,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
		turnID, err := tx.AppendTurn(storage.Turn{
			SessionID:      sessionID,
			Role:           storage.RoleAssistant,
			Content:        display,
			Timestamp:      now,
			Intent:         c.Intent.String(),
			Date:           c.Date,
			Time:           c.Time,
			DateUnresolved: c.DateUnresolved,
		})
		if err != nil {
			return err
		}
		res.UserTurnID, res.TurnID = userID, turnID

		a, ok := artifact.Derive(c, artifact.Ref{SessionID: sessionID, TurnID: turnID})
		if !ok {
			return nil
		}
		r := artifact.ToRecord(a, now)
		id, err := tx.PutArtifact(r)
		if err != nil {
			return err
		}
		r.ID = id
		res.ArtifactID = id
		rec = &r
		return nil
	})
	if err != nil {
		log.Printf("assistant: commit failed for session %s: %v", sessionID, err)
		return nil, persistenceErr(op, err)
	}

	if rec != nil && rec.Kind == storage.KindEvent && s.exporter != nil {
		if err := s.export(ctx, *rec); err != nil {
			res.Warnings = append(res.Warnings, WarnExportFailed)
		}
	}
	return res, nil
}

func (s *Service) classify(ctx context.Context, window []llm.Message, msg string, now time.Time) (intent.Classification, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.classifier.Classify(cctx, window, msg, now)
}

func (s *Service) classifyFailure(op string, err error) error {
	if errors.Is(err, intent.ErrEmptyMessage) {
		return inputErr(op, ErrEmptyMessage)
	}
	var ce *intent.ClassificationError
	if errors.As(err, &ce) {
		log.Printf("assistant: classification failed (%s): %v", ce.Reason, ce.Err)
	}
	return classificationErr(op, err)
}

func (s *Service) export(ctx context.Context, ev storage.Artifact) error {
	if ev.Date == "" {
		return nil
	}
	if err := s.exporter.ExportEvent(ctx, ev); err != nil {
		log.Printf("assistant: calendar export of %s failed: %v", ev.ID, err)
		return err
	}
	return nil
}

// History returns the last limit turns of a session, oldest first. limit <= 0
// returns the full session.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error) {
	const op = "get_history"
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, inputErr(op, ErrMissingSession)
	}
	turns, err := s.history.Read(ctx, sessionID, limit)
	if err != nil {
		return nil, persistenceErr(op, err)
	}
	out := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		out = append(out, HistoryEntry{
			Role:      t.Role,
			Content:   t.Content,
			Timestamp: t.Timestamp,
			Intent:    t.Intent,
			Date:      t.Date,
			Time:      t.Time,
		})
	}
	return out, nil
}

// ClassifyOnly classifies message without reading or writing any history.
// Successful results are cached per (message, now).
func (s *Service) ClassifyOnly(ctx context.Context, message string, now time.Time) (Preview, error) {
	const op = "classify_only"
	msg := strings.TrimSpace(message)
	if msg == "" {
		return Preview{}, inputErr(op, ErrEmptyMessage)
	}
	key := previewKey(msg, now)
	if p, ok := s.previews.Get(key); ok {
		return clonePreview(p), nil
	}
	c, err := s.classify(ctx, nil, msg, now)
	if err != nil {
		return Preview{}, s.classifyFailure(op, err)
	}
	p := Preview{Intent: c.Intent, Date: c.Date, Time: c.Time}
	if c.DateUnresolved {
		p.Warnings = []Warning{WarnDateUnresolved}
	}
	s.previews.Add(key, p)
	return clonePreview(p), nil
}

func previewKey(msg string, now time.Time) string {
	return now.Format(time.RFC3339Nano) + "|" + now.Location().String() + "|" + msg
}

func clonePreview(p Preview) Preview {
	p.Warnings = append([]Warning(nil), p.Warnings...)
	if len(p.Warnings) == 0 {
		p.Warnings = nil
	}
	return p
}

// Stats summarizes the turns of one session.
func (s *Service) Stats(ctx context.Context, sessionID string) (*analytics.SessionStats, error) {
	const op = "stats"
	if strings.TrimSpace(sessionID) == "" {
		return nil, inputErr(op, ErrMissingSession)
	}
	turns, err := s.history.Read(ctx, sessionID, 0)
	if err != nil {
		return nil, persistenceErr(op, err)
	}
	return analytics.Summarize(sessionID, turns), nil
}
