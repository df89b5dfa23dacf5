// Package metrics publishes per-request metrics of completed exchanges.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream key used when none is configured.
const DefaultStream = "lanne:exchanges"

// Stream length cap; older entries are trimmed approximately.
const maxStreamLen = 10000

// ErrMissingAddr is returned when no Redis address is configured.
var ErrMissingAddr = errors.New("missing redis address")

// Noop discards every exchange.
type Noop struct{}

// RecordExchange implements the orchestrator recorder.
func (Noop) RecordExchange(context.Context, domain.Exchange) error { return nil }

type streamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// RedisSink appends one stream entry per completed exchange.
type RedisSink struct {
	rdb    streamClient
	stream string
}

// NewRedisSink connects to Redis at addr and verifies the connection.
func NewRedisSink(ctx context.Context, addr, stream string) (*RedisSink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrMissingAddr
	}
	if stream == "" {
		stream = DefaultStream
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSink{rdb: rdb, stream: stream}, nil
}

// RecordExchange writes the metrics of ex. Query and answer text are not published.
func (s *RedisSink) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	err := s.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields(ex),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

func fields(ex domain.Exchange) map[string]any {
	return map[string]any{
		"exchange_id":          ex.ID,
		"request_id":           ex.RequestID,
		"session_id":           ex.SessionID,
		"intent":               ex.Intent.String(),
		"confidence":           strconv.FormatFloat(ex.Confidence, 'f', 3, 64),
		"used_action":          strconv.FormatBool(ex.Plan.UseAction),
		"used_knowledge":       strconv.FormatBool(ex.Plan.UseKnowledge),
		"used_web":             strconv.FormatBool(ex.Plan.UseWeb),
		"commands":             strings.Join(ex.Plan.ActionCommands, ","),
		"sources":              strings.Join(ex.Sources, ","),
		"knowledge_similarity": strconv.FormatFloat(ex.KnowledgeSimilarity, 'f', 3, 64),
		"latency_ms":           strconv.FormatInt(ex.Latency.Milliseconds(), 10),
		"response_chars":       strconv.Itoa(len([]rune(ex.Response))),
	}
}
