// Package store persists the history of readiness sessions.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/readyup/internal/domain"
)

// Store defines the interface for session history storage.
type Store interface {
	// Sessions
	CreateReadyUp(ctx context.Context, record *domain.Record) error
	CompleteReadyUp(ctx context.Context, sessionID string, status domain.SessionStatus, finalMessage string, endedAt time.Time) (bool, error)
	GetReadyUp(ctx context.Context, sessionID string) (*domain.Record, error)
	ListReadyUps(ctx context.Context, limit int) ([]domain.Record, error)

	// Responses
	AppendResponse(ctx context.Context, response *domain.ResponseRecord) error
	ListResponses(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error)

	Close() error
}
