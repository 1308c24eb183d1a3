package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

// exerciseStore runs the same contract checks against every implementation.
func exerciseStore(t *testing.T, store BlobStore) {
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	blob, err := store.Get(ctx, "dramahigh_save")
	if err != nil {
		t.Fatalf("Get on empty slot failed: %v", err)
	}
	if blob != nil {
		t.Fatalf("Expected nil for empty slot, got %q", blob)
	}

	first := []byte(`{"version":1,"inventory":["Notes"]}`)
	if err := store.Put(ctx, "dramahigh_save", first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second := []byte(`{"version":1,"inventory":["Smartphone"]}`)
	if err := store.Put(ctx, "dramahigh_save", second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	blob, err = store.Get(ctx, "dramahigh_save")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(blob, second) {
		t.Errorf("Expected latest blob %q, got %q", second, blob)
	}

	if err := store.Delete(ctx, "dramahigh_save"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "dramahigh_save"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
	blob, err = store.Get(ctx, "dramahigh_save")
	if err != nil || blob != nil {
		t.Errorf("Expected empty slot after delete, got %q, %v", blob, err)
	}
}

func TestRedisStore(t *testing.T) {
	store, mr := newRedisStore(t)
	exerciseStore(t, store)

	if err := store.Put(context.Background(), "slot", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !mr.Exists("save:slot") {
		t.Error("Expected key to be stored with the save prefix")
	}
	if ttl := mr.TTL("save:slot"); ttl != 0 {
		t.Errorf("Expected no expiry, got %v", ttl)
	}
}

func TestRedisStore_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr()+"/0", testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if _, err := NewRedisStore("redis://localhost:6379/notanumber", testLogger()); err == nil {
		t.Error("Expected error for malformed url")
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	if err := store.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail")
	}
	if _, err := store.Get(context.Background(), "slot"); err == nil {
		t.Error("Expected get to fail")
	}
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir(), testLogger()))
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store := NewFileStore(t.TempDir(), testLogger())
	for _, key := range []string{"", "../escape", "a/b", ".."} {
		if err := store.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.SetPingError(boom)
	if err := store.Ping(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected ping error, got %v", err)
	}
	store.SetPutError(boom)
	if err := store.Put(context.Background(), "k", []byte("x")); !errors.Is(err, boom) {
		t.Errorf("Expected put error, got %v", err)
	}
	store.SetGetError(boom)
	if _, err := store.Get(context.Background(), "k"); !errors.Is(err, boom) {
		t.Errorf("Expected get error, got %v", err)
	}
}

func TestMemoryStore_CopiesBlobs(t *testing.T) {
	store := NewMemoryStore()
	blob := []byte("abc")
	if err := store.Put(context.Background(), "k", blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	blob[0] = 'z'
	got, _ := store.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored copy to be unaffected, got %q", got)
	}
}
