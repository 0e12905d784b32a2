package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCaches(t *testing.T) {
	caches := map[string]SnapshotCache{
		"memory": NewMemorySnapshotCache(),
		"file":   NewFileSnapshotCache(filepath.Join(t.TempDir(), "snapshot.json")),
	}
	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(SnapshotKey)
			assert.ErrorIs(t, err, ErrSnapshotMiss)

			require.NoError(t, c.Set(SnapshotKey, []byte(`{"id":1}`)))
			require.NoError(t, c.Set("other", []byte(`"x"`)))
			got, err := c.Get(SnapshotKey)
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":1}`, string(got))

			require.NoError(t, c.Delete(SnapshotKey))
			require.NoError(t, c.Delete(SnapshotKey))
			_, err = c.Get(SnapshotKey)
			assert.ErrorIs(t, err, ErrSnapshotMiss)

			got, err = c.Get("other")
			require.NoError(t, err)
			assert.JSONEq(t, `"x"`, string(got))
		})
	}
}

func TestFileSnapshotCacheRejectsNonJSON(t *testing.T) {
	c := NewFileSnapshotCache(filepath.Join(t.TempDir(), "snapshot.json"))
	assert.Error(t, c.Set(SnapshotKey, []byte("not json")))
}

func TestFileSnapshotSurvivesNewManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	f := newFakeAPI(t)
	f.handle(pathLogin, reply(200, `{"user":`+u1+`}`))

	m := New(f.srv.URL, WithSnapshotCache(NewFileSnapshotCache(path)))
	require.True(t, m.Login(t.Context(), "u1", "pw").Success)

	next := New(f.srv.URL, WithSnapshotCache(NewFileSnapshotCache(path)))
	cached := next.readSnapshot()
	require.NotNil(t, cached)
	assert.Equal(t, "u1", cached.Username)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), SnapshotKey)
}

func TestUnreadableSnapshotIsIgnored(t *testing.T) {
	cache := NewMemorySnapshotCache()
	require.NoError(t, cache.Set(SnapshotKey, []byte(`{"id":"nope"}`)))
	m := New("http://127.0.0.1:0", WithSnapshotCache(cache))
	assert.Nil(t, m.readSnapshot())
}
