package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	Language  string
	Backend   string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	SessionID string
	EndedAt   time.Time
	LineCount int
}

type InsertLineInput struct {
	SessionID       string
	LineID          int64
	Content         string
	StartSeconds    float64
	DurationSeconds float64
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	UpdateSessionCompleted(ctx context.Context, input CompleteSessionInput) error
	// ListRunningSessions returns sessions still marked running, oldest
	// first. After a crash these are leftovers that never finalized.
	ListRunningSessions(ctx context.Context) ([]Session, error)
}

type TranscriptRepository interface {
	InsertLine(ctx context.Context, input InsertLineInput) error
	ListLinesBySessionID(ctx context.Context, sessionID string) ([]TranscriptLine, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
}
