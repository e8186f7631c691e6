package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (language, backend, started_at, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING id, language, backend, started_at, ended_at, status, line_count`,
		input.Language, input.Backend, input.StartedAt)
	var s repository.Session
	var endedAt *time.Time
	err := row.Scan(&s.ID, &s.Language, &s.Backend, &s.StartedAt, &endedAt, &s.Status, &s.LineCount)
	if err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $2, line_count = $3 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.LineCount)
	return err
}

func (r *PostgresRepository) ListRunningSessions(ctx context.Context) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, language, backend, started_at, ended_at, status, line_count
		 FROM sessions WHERE status = 'running' ORDER BY started_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Session
	for rows.Next() {
		var s repository.Session
		var endedAt *time.Time
		if err := rows.Scan(&s.ID, &s.Language, &s.Backend, &s.StartedAt, &endedAt, &s.Status, &s.LineCount); err != nil {
			return nil, err
		}
		s.EndedAt = endedAt
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) InsertLine(ctx context.Context, input repository.InsertLineInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcript_lines (session_id, line_id, content, start_seconds, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, line_id) DO UPDATE
		 SET content = EXCLUDED.content,
		     start_seconds = EXCLUDED.start_seconds,
		     duration_seconds = EXCLUDED.duration_seconds`,
		input.SessionID, input.LineID, input.Content, input.StartSeconds, input.DurationSeconds)
	return err
}

func (r *PostgresRepository) ListLinesBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, line_id, content, start_seconds, duration_seconds, created_at
		 FROM transcript_lines WHERE session_id = $1 ORDER BY start_seconds ASC, line_id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptLine
	for rows.Next() {
		var line repository.TranscriptLine
		if err := rows.Scan(&line.ID, &line.SessionID, &line.LineID, &line.Content, &line.StartSeconds, &line.DurationSeconds, &line.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, line)
	}
	return list, rows.Err()
}
