package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// SnapshotKey is the cache key holding the last known identity.
const SnapshotKey = "ss_user"

// ErrSnapshotMiss is returned by SnapshotCache.Get for absent keys.
var ErrSnapshotMiss = errors.New("client: snapshot not found")

// SnapshotCache is small persistent key-value storage. The manager writes
// the identity through on every change and reads it only during Bootstrap,
// never treating it as authoritative.
type SnapshotCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

type MemorySnapshotCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{data: make(map[string][]byte)}
}

func (c *MemorySnapshotCache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return nil, ErrSnapshotMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *MemorySnapshotCache) Set(key string, value []byte) error {
	c.mu.Lock()
	c.data[key] = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *MemorySnapshotCache) Delete(key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// FileSnapshotCache keeps all keys in one JSON object on disk.
type FileSnapshotCache struct {
	path string
	mu   sync.Mutex
}

func NewFileSnapshotCache(path string) *FileSnapshotCache {
	return &FileSnapshotCache{path: path}
}

func (c *FileSnapshotCache) load() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", c.path, err)
	}
	return data, nil
}

func (c *FileSnapshotCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.load()
	if err != nil {
		return nil, err
	}
	v, ok := data[key]
	if !ok {
		return nil, ErrSnapshotMiss
	}
	return []byte(v), nil
}

// Set stores value, which must be valid JSON.
func (c *FileSnapshotCache) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("snapshot %q: value is not JSON", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.load()
	if err != nil {
		data = map[string]json.RawMessage{}
	}
	data[key] = json.RawMessage(value)
	return writeFileAtomic(c.path, data)
}

func (c *FileSnapshotCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return writeFileAtomic(c.path, data)
}

func (m *SessionManager) readSnapshot() *Identity {
	raw, err := m.cache.Get(SnapshotKey)
	if err != nil {
		if !errors.Is(err, ErrSnapshotMiss) {
			m.log.Debug().Err(err).Msg("snapshot read failed")
		}
		return nil
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.ID == 0 {
		m.log.Debug().Msg("discarding unreadable snapshot")
		return nil
	}
	return &id
}

func (m *SessionManager) writeSnapshot(u *Identity) {
	var err error
	if u == nil {
		err = m.cache.Delete(SnapshotKey)
	} else {
		var raw []byte
		raw, err = json.Marshal(u)
		if err == nil {
			err = m.cache.Set(SnapshotKey, raw)
		}
	}
	if err != nil {
		m.log.Debug().Err(err).Msg("snapshot write failed")
	}
}
