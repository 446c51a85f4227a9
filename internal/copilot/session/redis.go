package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/waffles-copilot/server/internal/core/error"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// RedisStore keeps session logs in Redis so they survive restarts. Keys
// carry a TTL that is refreshed on every write.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) messagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func (s *RedisStore) aiMessagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:ai_messages", sessionID)
}

func (s *RedisStore) followUpsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:follow_ups", sessionID)
}

func (s *RedisStore) selectedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:selected", sessionID)
}

func (s *RedisStore) push(ctx context.Context, key, value string) error {
	if err := s.rdb.RPush(ctx, key, value).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push session entry to redis")
		return errx.WrapRedis(err)
	}
	s.touch(ctx, key)
	return nil
}

func (s *RedisStore) touch(ctx context.Context, key string) {
	if s.ttl <= 0 {
		return
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		logx.Warn().Err(err).Str("key", key).Dur("ttl", s.ttl).Msg("failed to refresh session TTL")
	}
}

func (s *RedisStore) list(ctx context.Context, key string) ([]string, error) {
	rows, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session entries from redis")
		return nil, errx.WrapRedis(err)
	}
	return rows, nil
}

func (s *RedisStore) AddMessage(ctx context.Context, sessionID, text string) error {
	return s.push(ctx, s.messagesKey(sessionID), text)
}

func (s *RedisStore) Messages(ctx context.Context, sessionID string) ([]string, error) {
	return s.list(ctx, s.messagesKey(sessionID))
}

func (s *RedisStore) AddAIMessage(ctx context.Context, sessionID, text string) error {
	return s.push(ctx, s.aiMessagesKey(sessionID), text)
}

func (s *RedisStore) AIMessages(ctx context.Context, sessionID string) ([]string, error) {
	return s.list(ctx, s.aiMessagesKey(sessionID))
}

func (s *RedisStore) AddFollowUpQuestions(ctx context.Context, sessionID string, questions []string) error {
	b, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal follow-up batch: %w", err)
	}
	return s.push(ctx, s.followUpsKey(sessionID), string(b))
}

func (s *RedisStore) FollowUpQuestions(ctx context.Context, sessionID string) ([][]string, error) {
	rows, err := s.list(ctx, s.followUpsKey(sessionID))
	if err != nil {
		return nil, err
	}
	batches := make([][]string, 0, len(rows))
	for i, row := range rows {
		var batch []string
		if err := json.Unmarshal([]byte(row), &batch); err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Int("index", i).Msg("skipping malformed follow-up batch")
			continue
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func (s *RedisStore) AddSelectedResponse(ctx context.Context, sessionID, question, response string) error {
	key := s.selectedKey(sessionID)
	if err := s.rdb.HSet(ctx, key, question, response).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to cache selected response")
		return errx.WrapRedis(err)
	}
	s.touch(ctx, key)
	return nil
}

func (s *RedisStore) SelectedQuestions(ctx context.Context, sessionID string) ([]string, error) {
	questions, err := s.rdb.HKeys(ctx, s.selectedKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		return nil, errx.WrapRedis(err)
	}
	return questions, nil
}

func (s *RedisStore) SelectedResponse(ctx context.Context, sessionID, question string) (string, bool, error) {
	response, err := s.rdb.HGet(ctx, s.selectedKey(sessionID), question).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, errx.WrapRedis(err)
	}
	return response, true, nil
}

// Clear is intentionally scoped to nothing: dropping every session key would
// require a scan, and the transport never exposes a global clear for the
// Redis backend.
func (s *RedisStore) Clear(ctx context.Context) error {
	logx.Warn().Msg("Clear is a no-op on the redis session store")
	return nil
}

var _ Store = (*RedisStore)(nil)
