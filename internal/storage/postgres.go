package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore keeps sessions, turns and artifacts in Postgres. Each
// WithTx maps onto one database transaction; the session row is locked for
// the duration so commits on the same session are serialized.
type PostgresStore struct {
	db *sql.DB
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the planner tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl, err := LoadSchema(PostgresSchemaName)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type pgTx struct {
	ctx    context.Context
	tx     *sql.Tx
	locked map[string]bool
}

func (t *pgTx) EnsureSession(id string, at time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidData)
	}
	if _, err := t.tx.ExecContext(t.ctx, `
INSERT INTO planner_sessions (id, created_at, updated_at) VALUES ($1, $2, $2)
ON CONFLICT (id) DO UPDATE SET updated_at = GREATEST(planner_sessions.updated_at, EXCLUDED.updated_at)`,
		id, at); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return t.lockSession(id)
}

func (t *pgTx) lockSession(id string) error {
	if t.locked[id] {
		return nil
	}
	var got string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM planner_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: turn for unknown session %q", ErrInvalidData, id)
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	t.locked[id] = true
	return nil
}

func (t *pgTx) AppendTurn(turn Turn) (string, error) {
	if err := validateTurn(turn); err != nil {
		return "", err
	}
	if err := t.lockSession(turn.SessionID); err != nil {
		return "", err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	var (
		lastSeq int64
		lastTS  time.Time
	)
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT seq, ts FROM planner_turns WHERE session_id = $1 ORDER BY seq DESC LIMIT 1`,
		turn.SessionID).Scan(&lastSeq, &lastTS)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", fmt.Errorf("read last turn: %w", err)
	default:
		turn.Timestamp = maxTime(turn.Timestamp, lastTS)
	}
	turn.Seq = lastSeq + 1

	if _, err := t.tx.ExecContext(t.ctx, `
INSERT INTO planner_turns (id, session_id, seq, role, content, ts, intent, date, time, date_unresolved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		turn.ID, turn.SessionID, turn.Seq, string(turn.Role), turn.Content, turn.Timestamp,
		turn.Intent, turn.Date, turn.Time, turn.DateUnresolved); err != nil {
		return "", fmt.Errorf("insert turn: %w", err)
	}
	return turn.ID, nil
}

func (t *pgTx) PutArtifact(a Artifact) (string, error) {
	if err := validateArtifact(a); err != nil {
		return "", err
	}
	var exists bool
	if err := t.tx.QueryRowContext(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM planner_turns WHERE id = $1)`, a.TurnID).Scan(&exists); err != nil {
		return "", fmt.Errorf("check turn: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: artifact references unknown turn %q", ErrInvalidData, a.TurnID)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	tags, err := json.Marshal(nonNilStrings(a.Tags))
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	reminders, err := json.Marshal(nonNilInts(a.Reminders))
	if err != nil {
		return "", fmt.Errorf("encode reminders: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx, `
INSERT INTO planner_artifacts (id, kind, session_id, turn_id, title, description, content, date, time, location, tags, reminders, completed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, string(a.Kind), a.SessionID, a.TurnID, a.Title, a.Description, a.Content, a.Date, a.Time,
		a.Location, string(tags), string(reminders), a.Completed, a.CreatedAt); err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return a.ID, nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&pgTx{ctx: ctx, tx: tx, locked: make(map[string]bool)}); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, seq, role, content, ts, intent, date, time, date_unresolved FROM (
    SELECT * FROM planner_turns WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
) recent ORDER BY seq ASC`, sessionID, lim)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &role, &t.Content, &t.Timestamp,
			&t.Intent, &t.Date, &t.Time, &t.DateUnresolved); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = Role(role)
		out = append(out, t)
	}
	return out, rows.Err()
}

const artifactColumns = `id, kind, session_id, turn_id, title, description, content, date, time, location, tags, reminders, completed, created_at`

func (s *PostgresStore) Artifacts(ctx context.Context, f ArtifactFilter) ([]Artifact, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Date != "" {
		add("date = $%d", f.Date)
	}
	if f.OpenOnly {
		where = append(where, "NOT (kind = 'task' AND completed)")
	}
	query := "SELECT " + artifactColumns + " FROM planner_artifacts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteTask(ctx context.Context, sessionID, id string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE planner_artifacts SET completed = TRUE WHERE id = $1 AND session_id = $2 AND kind = 'task'
RETURNING `+artifactColumns, id, sessionID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *PostgresStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(sc scanner) (Artifact, error) {
	var (
		a         Artifact
		kind      string
		tags      []byte
		reminders []byte
	)
	if err := sc.Scan(&a.ID, &kind, &a.SessionID, &a.TurnID, &a.Title, &a.Description, &a.Content,
		&a.Date, &a.Time, &a.Location, &tags, &reminders, &a.Completed, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	a.Kind = ArtifactKind(kind)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &a.Tags); err != nil {
			return Artifact{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(reminders) > 0 {
		if err := json.Unmarshal(reminders, &a.Reminders); err != nil {
			return Artifact{}, fmt.Errorf("decode reminders: %w", err)
		}
	}
	return a, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
