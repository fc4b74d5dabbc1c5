package store

import (
	"context"
	"time"
)

// Session records one question answered against a history.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    string
	Question  string
	Answer    string
	Metadata  map[string]string
}

// Turn is one tool call made during a session.
type Turn struct {
	ID        string
	SessionID string
	Step      int
	Tool      string
	Args      string
	Output    string
	CreatedAt time.Time
}

// Storage defines the interface for persistence
type Storage interface {
	// Session Management
	CreateSession(session *Session) error
	GetSession(id string) (*Session, error)
	UpdateSession(session *Session) error

	// Transcript
	AppendTurn(turn *Turn) error
	ListTurns(sessionID string) ([]*Turn, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	// Embedding cache, keyed by model and text
	GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, model, text string, vector []float32) error
	CountEmbeddings(ctx context.Context, model string) (int, error)

	Close() error
}
