package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshHashMismatch means the presented refresh secret is not the
	// current one. The session has already been deleted when this is returned.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

	ErrRedisUnavailable = errors.New("redis unavailable")

	ErrRefreshSessionNotFound = errors.New("refresh session not found")
	ErrRefreshSessionExpired  = errors.New("refresh session expired")

	// ErrSessionCorrupt is returned for hashes missing required fields.
	ErrSessionCorrupt = errors.New("session corrupt")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
)

const deleteSessionScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
if not uid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. uid, ARGV[2])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const rotateRefreshScript = `
local session_key = KEYS[1]
local user_prefix = ARGV[1]
local session_id = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("HMGET", session_key, "uid", "rh", "exp", "adm", "iat")
local uid = data[1]
if not uid then
  return {0}
end

local exp = tonumber(data[3])
if not data[2] or not exp then
  return {4}
end

local function drop()
  redis.call("DEL", session_key)
  redis.call("SREM", user_prefix .. uid, session_id)
end

if exp <= now_unix then
  drop()
  return {1}
end

if data[2] ~= provided_hash then
  drop()
  return {2}
end

local ttl = redis.call("PTTL", session_key)
if ttl == -2 then
  return {0}
end

redis.call("HSET", session_key, "rh", next_hash)
return {3, uid, data[4] or "0", data[5] or "0", data[3]}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store whose keys live under prefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ss"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userPrefix() string {
	return s.prefix + "u:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Save writes the session hash with ttl and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	sessionKey := s.key(sess.SessionID)
	userKey := s.userKey(sess.UserID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey, sess.fields())
		pipe.PExpire(ctx, sessionKey, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session. A missing or expired session yields redis.Nil.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	values, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(values) == 0 {
		return nil, redis.Nil
	}

	sess, err := parseSession(sessionID, values)
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt <= time.Now().Unix() {
		if err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}
	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing session
// is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}, s.userPrefix(), sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every indexed session of a user and returns how
// many existed. Sessions created concurrently with the call may survive it.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// ActiveSessionIDs returns the indexed session ids of a user.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// RotateRefreshHash swaps providedHash for nextHash atomically and returns
// the rotated session. On mismatch or expiry the session is deleted.
func (s *Store) RotateRefreshHash(ctx context.Context, sessionID string, providedHash, nextHash [32]byte) (*Session, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		s.userPrefix(),
		sessionID,
		hex.EncodeToString(providedHash[:]),
		hex.EncodeToString(nextHash[:]),
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionNotFound)
	case rotateStatusExpired:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionExpired)
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusCorrupt:
		return nil, ErrSessionCorrupt
	case rotateStatusRotated:
		if len(parts) < 5 {
			return nil, fmt.Errorf("%w: short refresh script response", ErrRedisUnavailable)
		}
		values := map[string]string{
			fieldUserID:      scriptString(parts[1]),
			fieldAdmin:       scriptString(parts[2]),
			fieldCreatedAt:   scriptString(parts[3]),
			fieldExpiresAt:   scriptString(parts[4]),
			fieldRefreshHash: hex.EncodeToString(nextHash[:]),
		}
		return parseSession(sessionID, values)
	default:
		return nil, fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

func scriptString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
