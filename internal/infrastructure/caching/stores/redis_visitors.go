package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
)

const redisKeyPrefix = "lingo:visitor:"

// redisProfile carries the token, which the public JSON form omits.
type redisProfile struct {
	*visitor.Profile
	AuthToken string `json:"authToken,omitempty"`
}

// RedisVisitorsStore shares visitor profiles across instances.
type RedisVisitorsStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.ChanneledLogger
}

var _ visitor.Store = (*RedisVisitorsStore)(nil)

// NewRedisClient connects to redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisVisitorsStore(client *redis.Client, ttl time.Duration, logger *logging.ChanneledLogger) *RedisVisitorsStore {
	return &RedisVisitorsStore{client: client, ttl: ttl, logger: logger}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisVisitorsStore) Get(ctx context.Context, sessionID string) (*visitor.Profile, error) {
	raw, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, visitor.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visitor %s: %w", logging.SanitizeSessionID(sessionID), err)
	}
	return decodeProfile(raw)
}

func (s *RedisVisitorsStore) Save(ctx context.Context, profile *visitor.Profile) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(profile.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save visitor %s: %w", logging.SanitizeSessionID(profile.SessionID), err)
	}
	return nil
}

func (s *RedisVisitorsStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete visitor %s: %w", logging.SanitizeSessionID(sessionID), err)
	}
	return nil
}

func encodeProfile(profile *visitor.Profile) ([]byte, error) {
	raw, err := json.Marshal(redisProfile{Profile: profile, AuthToken: profile.AuthToken})
	if err != nil {
		return nil, fmt.Errorf("encode visitor: %w", err)
	}
	return raw, nil
}

func decodeProfile(raw []byte) (*visitor.Profile, error) {
	stored := redisProfile{Profile: &visitor.Profile{}}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode visitor: %w", err)
	}
	stored.Profile.AuthToken = stored.AuthToken
	return stored.Profile, nil
}
