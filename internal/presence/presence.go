package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineTTL = 90 * time.Second

// Store keeps per-user presence in Redis so other instances can see who is
// online. Keys: <prefix>:presence:<userID> -> {"status","last_seen"}.
type Store struct {
	client *redis.Client
	prefix string
}

type record struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// SetOnline marks the user online. The entry expires on its own so a crashed
// instance cannot leave users online forever.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	data, _ := json.Marshal(record{Status: "online", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), data, onlineTTL).Err()
}

// SetOffline marks the user offline with a last-seen timestamp.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	data, _ := json.Marshal(record{Status: "offline", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), data, 0).Err()
}

// IsOnline reports whether the user currently has a live presence entry.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, err
	}
	return rec.Status == "online", nil
}

// LastSeen returns the unix timestamp of the user's last presence change,
// or zero when the user was never seen.
func (s *Store) LastSeen(ctx context.Context, userID string) (int64, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, err
	}
	return rec.LastSeen, nil
}
