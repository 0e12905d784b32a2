package userstore

import "testing"

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(*testing.T) Store { return NewMemory() })
}
