package cache

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

func newTestStore(t *testing.T, level int) *Store {
	t.Helper()
	store, err := NewStore(Config{Dir: filepath.Join(t.TempDir(), "audio"), CompressionLevel: level})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testKey(i int) Key {
	req, err := tts.NewRequest(fmt.Sprintf("text %d", i), tts.ProviderESpeak, "en", "", nil)
	if err != nil {
		panic(err)
	}
	return DeriveKey(req)
}

func TestStore_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 256*1024)
	rng.Read(random)

	payloads := map[string][]byte{
		"empty":        {},
		"small":        []byte("RIFF....WAVEfmt "),
		"compressible": bytes.Repeat([]byte("audio"), 100_000),
		"random large": random,
	}

	for _, level := range []int{0, 3} {
		for name, data := range payloads {
			t.Run(fmt.Sprintf("level%d/%s", level, name), func(t *testing.T) {
				store := newTestStore(t, level)
				key := testKey(1)

				if err := store.Put(key, data); err != nil {
					t.Fatalf("Put failed: %v", err)
				}

				got, ok := store.Get(key)
				if !ok {
					t.Fatal("Get failed: key not found")
				}
				if !bytes.Equal(got, data) {
					t.Errorf("Retrieved value mismatch: got %d bytes, want %d", len(got), len(data))
				}
			})
		}
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t, 3)

	if _, ok := store.Get(testKey(1)); ok {
		t.Error("Get on empty store returned a hit")
	}
	if _, ok := store.Get(Key("not-a-key")); ok {
		t.Error("Get with invalid key returned a hit")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := newTestStore(t, 0)
	key := testKey(1)

	if err := store.Put(key, []byte("original")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := store.Get(key)
	got[0] = 'X'

	again, _ := store.Get(key)
	if string(again) != "original" {
		t.Errorf("stored entry modified through returned slice: %q", again)
	}
}

func TestStore_Overwrite(t *testing.T) {
	store := newTestStore(t, 3)
	key := testKey(1)

	big := bytes.Repeat([]byte("a"), 10_000) // stored compressed
	small := []byte("tiny")                  // stored raw

	if err := store.Put(key, big); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), string(key)+zstdExt)); err != nil {
		t.Fatalf("expected compressed file: %v", err)
	}

	if err := store.Put(key, small); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), string(key)+zstdExt)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale compressed file left behind: %v", err)
	}

	got, ok := store.Get(key)
	if !ok || string(got) != "tiny" {
		t.Errorf("Get after overwrite = %q, %v", got, ok)
	}
}

func TestStore_RemoveIdempotent(t *testing.T) {
	store := newTestStore(t, 3)
	key := testKey(1)

	if err := store.Put(key, []byte("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := store.Remove(key)
	if err != nil || !removed {
		t.Fatalf("first Remove = %v, %v; want true, nil", removed, err)
	}

	removed, err = store.Remove(key)
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v; want false, nil", removed, err)
	}

	if _, ok := store.Get(key); ok {
		t.Error("Key still exists after remove")
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), string(key)+metaExt)); !errors.Is(err, os.ErrNotExist) {
		t.Error("metadata sidecar left behind")
	}
}

func TestStore_ClearAll(t *testing.T) {
	store := newTestStore(t, 3)

	n, err := store.ClearAll()
	if err != nil || n != 0 {
		t.Fatalf("ClearAll on missing dir = %d, %v; want 0, nil", n, err)
	}

	for i := 0; i < 5; i++ {
		if err := store.Put(testKey(i), bytes.Repeat([]byte{byte(i)}, 2000*i)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// Leftover temp file and a file the store does not own
	if err := os.WriteFile(filepath.Join(store.Dir(), ".abandoned.audio.123.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	foreign := filepath.Join(store.Dir(), "README")
	if err := os.WriteFile(foreign, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err = store.ClearAll()
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if n != 5 {
		t.Errorf("ClearAll removed %d entries, want 5", n)
	}

	files, _ := os.ReadDir(store.Dir())
	if len(files) != 1 || files[0].Name() != "README" {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Errorf("unexpected files after clear: %v", names)
	}

	n, err = store.ClearAll()
	if err != nil || n != 0 {
		t.Errorf("ClearAll on empty store = %d, %v; want 0, nil", n, err)
	}
}

func TestStore_Stats(t *testing.T) {
	store := newTestStore(t, 0)

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats on missing dir failed: %v", err)
	}
	if stats.Entries != 0 || stats.TotalSize != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	sizes := []int{10, 20, 30}
	for i, size := range sizes {
		if err := store.Put(testKey(i), make([]byte, size)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	store.Get(testKey(0))
	store.Get(testKey(0))

	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.TotalSize != 60 {
		t.Errorf("TotalSize = %d, want 60", stats.TotalSize)
	}
	if stats.TotalHits != 2 {
		t.Errorf("TotalHits = %d, want 2", stats.TotalHits)
	}
	if stats.Dir != store.Dir() {
		t.Errorf("Dir = %q, want %q", stats.Dir, store.Dir())
	}
}

// Stats must reflect entries written by another process, which here is
// simulated by a second Store on the same directory.
func TestStore_StatsSeesOtherWriters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shared")
	a, err := NewStore(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewStore(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Put(testKey(1), []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := b.Put(testKey(2), []byte("two")); err != nil {
		t.Fatal(err)
	}

	stats, err := a.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}

	if _, err := b.Remove(testKey(1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Get(testKey(1)); ok {
		t.Error("entry removed by another store is still visible")
	}
}

func TestStore_HitMetadata(t *testing.T) {
	store := newTestStore(t, 0)
	key := testKey(1)

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return clock }

	if err := store.Put(key, []byte("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	clock = clock.Add(time.Hour)
	e, ok := store.GetEntry(key)
	if !ok {
		t.Fatal("GetEntry missed")
	}
	if e.Hits != 1 {
		t.Errorf("Hits = %d, want 1", e.Hits)
	}
	if !e.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", e.CreatedAt)
	}
	if !e.LastAccess.Equal(clock) {
		t.Errorf("LastAccess = %v, want %v", e.LastAccess, clock)
	}
	if e.Size != 4 {
		t.Errorf("Size = %d, want 4", e.Size)
	}

	e, _ = store.GetEntry(key)
	if e.Hits != 2 {
		t.Errorf("Hits after second read = %d, want 2", e.Hits)
	}
}

func TestStore_MissingMetadataFallsBackToModTime(t *testing.T) {
	store := newTestStore(t, 0)
	key := testKey(1)

	if err := store.Put(key, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(store.Dir(), string(key)+metaExt)); err != nil {
		t.Fatal(err)
	}

	e, ok := store.GetEntry(key)
	if !ok {
		t.Fatal("entry without sidecar should still be a hit")
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt should fall back to file modification time")
	}
}

func TestStore_CorruptedEntryIsMiss(t *testing.T) {
	store := newTestStore(t, 3)
	key := testKey(1)

	if err := store.Put(key, bytes.Repeat([]byte("z"), 5000)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(store.Dir(), string(key)+zstdExt)
	if err := os.WriteFile(path, []byte("definitely not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get(key); ok {
		t.Fatal("corrupted entry returned as hit")
	}
	if store.Contains(key) {
		t.Error("corrupted entry should have been removed")
	}
}

func TestStore_PutFailureIsIOFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("file, not dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(Config{Dir: filepath.Join(blocker, "cache")})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Put(testKey(1), []byte("data"))
	if err == nil {
		t.Fatal("expected Put to fail")
	}
	if !errors.Is(err, tts.ErrIO) {
		t.Errorf("expected IOFailure, got %v", err)
	}

	if err := store.Put(Key("bad"), []byte("x")); !errors.Is(err, tts.ErrIO) || !errors.Is(err, ErrInvalidKey) {
		t.Errorf("invalid key should be rejected as IOFailure/ErrInvalidKey, got %v", err)
	}
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t, 0)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		store.now = func() time.Time { return at }
		if err := store.Put(testKey(i), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	// Entry 0 is old but was played recently.
	store.now = func() time.Time { return base.Add(72 * time.Hour) }
	if _, ok := store.Get(testKey(0)); !ok {
		t.Fatal("Get failed: key not found")
	}

	removed, err := store.Prune(base.Add(48 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
	for i := 0; i < 4; i++ {
		if got, want := store.Contains(testKey(i)), i != 1; got != want {
			t.Errorf("entry %d present = %v, want %v", i, got, want)
		}
	}
}

func TestStore_StaleVariantDoesNotShadow(t *testing.T) {
	store := newTestStore(t, 3)
	key := testKey(1)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	stale := enc.EncodeAll([]byte("stale audio"), nil)
	_ = enc.Close()

	// A compressed copy left behind by an interrupted overwrite.
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	stalePath := store.dataPath(key, true)
	if err := os.WriteFile(stalePath, stale, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stalePath, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.dataPath(key, false), []byte("fresh audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(got) != "fresh audio" {
		t.Errorf("Get = %q, want the newer raw entry", got)
	}
	if _, err := os.Stat(stalePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale compressed file should be removed, stat err = %v", err)
	}

	// An overwrite that compresses replaces the raw file.
	fresh := bytes.Repeat([]byte("newer audio "), 1000)
	if err := store.Put(key, fresh); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(store.dataPath(key, false)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("raw file should be gone after a compressed overwrite, stat err = %v", err)
	}
	got, _ = store.Get(key)
	if !bytes.Equal(got, fresh) {
		t.Error("Get after overwrite returned the wrong audio")
	}
}

func TestStore_TrimEvictsLeastRecentlyUsed(t *testing.T) {
	store := newTestStore(t, 0)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		if err := store.Put(testKey(i), make([]byte, 100)); err != nil {
			t.Fatal(err)
		}
	}

	// Touch the oldest entry so it becomes the most recently used.
	store.now = func() time.Time { return base.Add(time.Hour) }
	store.Get(testKey(0))

	evicted, err := store.Trim(200)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("Trim evicted %d, want 1", evicted)
	}
	if store.Contains(testKey(1)) {
		t.Error("least recently used entry should have been evicted")
	}
	if !store.Contains(testKey(0)) || !store.Contains(testKey(2)) {
		t.Error("recently used entries should survive")
	}
}

// Concurrent writers of one key must never interleave: every read returns
// one complete payload.
func TestStore_ConcurrentPutsSameKey(t *testing.T) {
	store := newTestStore(t, 3)
	key := testKey(1)

	payloads := make([][]byte, 8)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 64*1024)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for round := 0; round < 4; round++ {
		for i := range payloads {
			wg.Add(2)
			go func(p []byte) {
				defer wg.Done()
				if err := store.Put(key, p); err != nil {
					errs <- err
				}
			}(payloads[i])
			go func() {
				defer wg.Done()
				got, ok := store.Get(key)
				if !ok {
					return
				}
				if len(got) != 64*1024 || strings.Count(string(got), string(got[:1])) != len(got) {
					errs <- fmt.Errorf("torn read: %d bytes", len(got))
				}
			}()
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	got, ok := store.Get(key)
	if !ok {
		t.Fatal("key missing after concurrent writes")
	}
	found := false
	for _, p := range payloads {
		if bytes.Equal(got, p) {
			found = true
		}
	}
	if !found {
		t.Error("final content matches none of the writers")
	}

	files, _ := os.ReadDir(store.Dir())
	for _, f := range files {
		if strings.HasSuffix(f.Name(), tempExt) {
			t.Errorf("temp file left behind: %s", f.Name())
		}
	}
}
