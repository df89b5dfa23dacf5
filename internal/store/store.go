// Package store persists the history of completed exchanges.
package store

import (
	"context"
	"time"

	"github.com/ashureev/lanne/internal/domain"
)

// Listing bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ExchangeFilter selects exchanges for listing. Empty fields match everything.
type ExchangeFilter struct {
	UserID    string
	SessionID string
	Limit     int
}

// Repository defines the interface for persisting exchanges.
type Repository interface {
	// RecordExchange stores one completed exchange.
	RecordExchange(ctx context.Context, ex domain.Exchange) error

	// ListExchanges returns matching exchanges, newest first.
	ListExchanges(ctx context.Context, filter ExchangeFilter) ([]domain.Exchange, error)

	// CleanupExpired deletes exchanges older than retention.
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

func (f ExchangeFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}
