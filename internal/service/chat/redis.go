package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/moodchat/backend/internal/errx"
	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
)

// RedisStore keeps counters in a hash and turns in a list per user. Every
// mutation is a single command or a MULTI/EXEC block, so Redis serialises
// updates for the same user while different users never share a key.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store using rdb. prefix namespaces every key.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "moodchat"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisStore) emotionsKey(user string) string {
	return fmt.Sprintf("%s:user:%s:emotions", r.prefix, user)
}

func (r *RedisStore) historyKey(user string) string {
	return fmt.Sprintf("%s:user:%s:history", r.prefix, user)
}

func (r *RedisStore) RecordEmotions(ctx context.Context, user string, v emotion.Vector) error {
	if v.Count() == 0 {
		return nil
	}

	key := r.emotionsKey(user)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, cat := range emotion.Categories {
			if v[cat] {
				pipe.HIncrBy(ctx, key, cat.Key(), 1)
			}
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to record emotions in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) AppendTurns(ctx context.Context, user, userText, botText string, now time.Time) error {
	at := r.now()
	if at.Before(now) {
		at = now
	}

	userTurn, err := json.Marshal(chat.Turn{ID: uuid.NewString(), Role: chat.RoleUser, Text: userText, CreatedAt: at})
	if err != nil {
		return fmt.Errorf("marshal user turn: %w", err)
	}
	botTurn, err := json.Marshal(chat.Turn{ID: uuid.NewString(), Role: chat.RoleBot, Text: botText, CreatedAt: at})
	if err != nil {
		return fmt.Errorf("marshal bot turn: %w", err)
	}

	key := r.historyKey(user)
	// One RPUSH with both values keeps the pair adjacent.
	if err := r.rdb.RPush(ctx, key, userTurn, botTurn).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append turns to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) History(ctx context.Context, user string) ([]chat.Turn, error) {
	key := r.historyKey(user)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if wrapped := errx.WrapRedis(err); wrapped != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to load history from redis")
			return nil, wrapped
		}
	}

	turns := make([]chat.Turn, 0, len(rows))
	for i, row := range rows {
		var t chat.Turn
		if err := json.Unmarshal([]byte(row), &t); err != nil {
			logx.Error().Err(err).Str("key", key).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}

	chat.SortByCreatedAt(turns)
	return turns, nil
}

func (r *RedisStore) EmotionCounts(ctx context.Context, user string) (emotion.Counts, error) {
	key := r.emotionsKey(user)

	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if wrapped := errx.WrapRedis(err); wrapped != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to load emotion counts from redis")
			return emotion.Counts{}, wrapped
		}
	}

	var counts emotion.Counts
	for field, raw := range fields {
		cat, ok := emotion.CategoryByKey(field)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			logx.Warn().Str("key", key).Str("field", field).Str("value", raw).Msg("ignoring malformed emotion counter")
			continue
		}
		counts[cat] = n
	}
	return counts, nil
}

func (r *RedisStore) DeleteUser(ctx context.Context, user string) error {
	if err := r.rdb.Del(ctx, r.emotionsKey(user), r.historyKey(user)).Err(); err != nil {
		logx.Error().Err(err).Str("user", user).Msg("failed to delete user state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}
