package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/db"
	"github.com/sells-group/census-insights/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":     `INSERT INTO training_runs (id, status, with_housing, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run":   `UPDATE training_runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":        `SELECT ` + runColumns + ` FROM training_runs WHERE id = $1`,
	"insert_session": `INSERT INTO chat_sessions (id, message_count, created_at, updated_at) VALUES ($1, 0, $2, $3)`,
	"get_session":    `SELECT id, summary, message_count, created_at, updated_at FROM chat_sessions WHERE id = $1`,
	"insert_message": `INSERT INTO chat_messages (id, session_id, seq, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns the pool's lifetime.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS training_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status       TEXT NOT NULL DEFAULT 'running',
	with_housing BOOLEAN NOT NULL DEFAULT false,
	summary      JSONB,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS district_metrics (
	run_id                    TEXT NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
	state                     TEXT NOT NULL,
	district                  TEXT NOT NULL,
	district_code             TEXT,
	population                DOUBLE PRECISION,
	sex_ratio                 DOUBLE PRECISION,
	literacy_rate             DOUBLE PRECISION,
	worker_participation_rate DOUBLE PRECISION,
	urbanisation_rate         DOUBLE PRECISION,
	internet_penetration      DOUBLE PRECISION,
	mobile_phone_access       DOUBLE PRECISION,
	sanitation_gap            DOUBLE PRECISION,
	PRIMARY KEY (run_id, state, district)
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	summary       TEXT,
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_training_runs_status ON training_runs(status);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, withHousing bool) (*model.TrainingRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO training_runs (id, status, with_housing, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.RunStatusRunning), withHousing, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.TrainingRun{
		ID:          id,
		Status:      model.RunStatusRunning,
		WithHousing: withHousing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE training_runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "run", ID: runID}
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE training_runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		cause, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "run", ID: runID}
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM training_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{Entity: "run", ID: runID}
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.TrainingRun
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveDistrictMetrics merges the run's rows through a COPY into a staging table.
func (s *PostgresStore) SaveDistrictMetrics(ctx context.Context, runID string, rows []model.DistrictMetrics) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "district_metrics",
		Columns:      metricColumns,
		ConflictKeys: []string{"run_id", "state", "district"},
	}, metricRows(runID, rows))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save metrics for run %s", runID)
	}
	zap.L().Debug("postgres: saved district metrics",
		zap.String("run_id", runID),
		zap.Int64("rows", n),
	)
	return n, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context) (*model.ChatSession, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, message_count, created_at, updated_at) VALUES ($1, 0, $2, $3)`,
		id, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
	}
	return &model.ChatSession{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var cs model.ChatSession
	var summary *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, summary, message_count, created_at, updated_at FROM chat_sessions WHERE id = $1`,
		sessionID,
	).Scan(&cs.ID, &summary, &cs.MessageCount, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{Entity: "session", ID: sessionID}
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", sessionID)
	}
	if summary != nil {
		cs.Summary = *summary
	}
	return &cs, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.ChatSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, summary, message_count, created_at, updated_at FROM chat_sessions ORDER BY updated_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.ChatSession
	for rows.Next() {
		var cs model.ChatSession
		var summary *string
		if err := rows.Scan(&cs.ID, &summary, &cs.MessageCount, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		if summary != nil {
			cs.Summary = *summary
		}
		sessions = append(sessions, cs)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, role model.ChatRole, content string) (*model.ChatMessage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin message tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var seq int
	err = tx.QueryRow(ctx,
		`UPDATE chat_sessions SET message_count = message_count + 1, updated_at = $1 WHERE id = $2 RETURNING message_count`,
		now, sessionID,
	).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{Entity: "session", ID: sessionID}
		}
		return nil, eris.Wrapf(err, "postgres: bump session %s", sessionID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, seq, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sessionID, seq, string(role), content, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert message")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit message")
	}

	return &model.ChatMessage{ID: id, SessionID: sessionID, Role: role, Content: content, CreatedAt: now}, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, seq, role, content, created_at FROM chat_messages
			WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq ASC`,
		sessionID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list messages %s", sessionID)
	}
	defer rows.Close()

	msgs := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sessionID, summary string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET summary = $1, updated_at = $2 WHERE id = $3`,
		summary, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save summary %s", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "session", ID: sessionID}
	}
	return nil
}

// DeleteSession removes a session; its messages go with it through the
// cascading foreign key.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "session", ID: sessionID}
	}
	return nil
}

func scanPostgresRun(row pgx.Row) (*model.TrainingRun, error) {
	var r model.TrainingRun
	var summaryJSON *[]byte
	var runErr *string

	if err := row.Scan(&r.ID, &r.Status, &r.WithHousing, &summaryJSON, &runErr, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if runErr != nil {
		r.Error = *runErr
	}
	if summaryJSON != nil {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(*summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}
