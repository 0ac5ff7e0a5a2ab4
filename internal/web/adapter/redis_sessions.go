package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/challengehub/web/internal/domain"
	redisclient "github.com/challengehub/web/internal/redis"
	"github.com/challengehub/web/internal/web/app"
)

// sessionKeyPrefix is the Redis key prefix for session records.
// Key pattern: session:{sid}.
const sessionKeyPrefix = "session:"

// Compile-time check: RedisSessionStore satisfies app.SessionStore.
var _ app.SessionStore = (*RedisSessionStore)(nil)

// RedisSessionStore keeps session records in Redis as JSON with a TTL, so
// sessions survive restarts and are shared across replicas.
type RedisSessionStore struct {
	cmd redisclient.Cmdable
}

// NewRedisSessionStore creates a RedisSessionStore that uses cmd for Redis operations.
func NewRedisSessionStore(cmd redisclient.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{cmd: cmd}
}

func sessionKey(id domain.SessionID) string {
	return sessionKeyPrefix + id.String()
}

// Save writes the session record with SET ... EX ttl.
func (s *RedisSessionStore) Save(ctx context.Context, id domain.SessionID, sess *app.Session, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.session.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.cmd.Set(ctx, sessionKey(id), data, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save session %s: %w: %w", id, domain.ErrUnavailable, err)
	}

	return nil
}

// Get returns domain.ErrNotFound when the key is missing or has expired.
func (s *RedisSessionStore) Get(ctx context.Context, id domain.SessionID) (*app.Session, error) {
	ctx, span := tracer.Start(ctx, "redis.session.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "GET"),
	)

	data, err := s.cmd.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, domain.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get session %s: %w: %w", id, domain.ErrUnavailable, err)
	}

	var sess app.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}

	return &sess, nil
}

// Delete removes the session record. Deleting a missing key is not an error.
func (s *RedisSessionStore) Delete(ctx context.Context, id domain.SessionID) error {
	ctx, span := tracer.Start(ctx, "redis.session.delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "DEL"),
	)

	if err := s.cmd.Del(ctx, sessionKey(id)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session %s: %w: %w", id, domain.ErrUnavailable, err)
	}

	return nil
}
