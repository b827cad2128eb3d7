package session

import (
	"context"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type staticKeyer struct{}

func (staticKeyer) AccessSessionKey(accessID string) string {
	return "kalaa:session:access:" + accessID
}

func newTestManager(store *memoryStore) *Manager {
	return &Manager{store: store, keyer: staticKeyer{}, ttl: time.Hour}
}

func TestGenerateStoresToken(t *testing.T) {
	store := newMemoryStore()
	mgr := newTestManager(store)

	token, err := mgr.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty refresh token")
	}
	if store.values["kalaa:session:access:access-1"] != token {
		t.Fatal("stored token does not match returned token")
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	store := newMemoryStore()
	mgr := newTestManager(store)

	token, err := mgr.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	newAccessID, newToken, err := mgr.Rotate(context.Background(), "access-1", token)
	if err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}
	if newAccessID == "" || newToken == "" {
		t.Fatal("expected new access id and token")
	}
	if _, ok := store.values["kalaa:session:access:access-1"]; ok {
		t.Fatal("old session should be deleted after rotation")
	}
	if store.values["kalaa:session:access:"+newAccessID] != newToken {
		t.Fatal("new session not stored")
	}
}

func TestRotateRejectsMismatchedToken(t *testing.T) {
	store := newMemoryStore()
	mgr := newTestManager(store)

	if _, err := mgr.Generate(context.Background(), "access-1"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if _, _, err := mgr.Rotate(context.Background(), "access-1", "bogus"); err != ErrInvalidRefreshToken {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRotateUnknownAccessID(t *testing.T) {
	mgr := newTestManager(newMemoryStore())

	if _, _, err := mgr.Rotate(context.Background(), "missing", "whatever"); err != ErrInvalidRefreshToken {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestHasSession(t *testing.T) {
	store := newMemoryStore()
	mgr := newTestManager(store)

	ok, err := mgr.HasSession(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("HasSession returned error: %v", err)
	}
	if ok {
		t.Fatal("expected no session before generate")
	}

	if _, err := mgr.Generate(context.Background(), "access-1"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	ok, err = mgr.HasSession(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("HasSession returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected session after generate")
	}

	if err := mgr.Revoke(context.Background(), "access-1"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	ok, err = mgr.HasSession(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("HasSession returned error: %v", err)
	}
	if ok {
		t.Fatal("expected no session after revoke")
	}
}
