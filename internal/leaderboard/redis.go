package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rankingKey = "lobby:leaderboard:ranking"
	entriesKey = "lobby:leaderboard:entries"
)

// RedisStore keeps the snapshot in a sorted set of usernames scored by
// position, with each entry's JSON in a hash keyed by username.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the server at url and verifies the connection.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Save replaces the previous snapshot in a single MULTI/EXEC.
func (r *RedisStore) Save(ctx context.Context, entries []Entry) error {
	members := make([]redis.Z, len(entries))
	fields := make(map[string]interface{}, len(entries))
	for i, entry := range entries {
		encoded, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("error encoding leaderboard entry: %w", err)
		}
		members[i] = redis.Z{Score: float64(i), Member: entry.Username}
		fields[entry.Username] = encoded
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rankingKey, entriesKey)
		if len(entries) > 0 {
			pipe.ZAdd(ctx, rankingKey, members...)
			pipe.HSet(ctx, entriesKey, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error saving leaderboard: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) ([]Entry, error) {
	usernames, err := r.client.ZRange(ctx, rankingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading leaderboard ranking: %w", err)
	}
	if len(usernames) == 0 {
		return nil, nil
	}

	values, err := r.client.HMGet(ctx, entriesKey, usernames...).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading leaderboard entries: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for i, value := range values {
		encoded, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("leaderboard entry for %s is missing", usernames[i])
		}
		var entry Entry
		if err := json.Unmarshal([]byte(encoded), &entry); err != nil {
			return nil, fmt.Errorf("error decoding leaderboard entry for %s: %w", usernames[i], err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
