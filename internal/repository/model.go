package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID        string
	Language  string
	Backend   string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    SessionStatus
	LineCount int
	CreatedAt time.Time
}

type TranscriptLine struct {
	ID              string
	SessionID       string
	LineID          int64
	Content         string
	StartSeconds    float64
	DurationSeconds float64
	CreatedAt       time.Time
}
