package cache

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = (%q, %v, %v), want a miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "nested", "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatal("empty cache should miss")
	}
	if err := c.Set(ctx, "k", []byte("png bytes"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "png bytes" {
		t.Fatalf("Get = (%q, %v, %v)", data, hit, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("deleted key should miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "ttl", []byte("x"), time.Minute)
	_ = c.Set(ctx, "forever", []byte("y"), 0)

	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "ttl"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("ttl")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero ttl should never expire")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	path := c.path("bad")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, []byte("not json"), 0o644)

	if _, hit, err := c.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v, want silent miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, "k"+strconv.Itoa(i), []byte("v"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	n, err := c.Clear(ctx)
	if err != nil || n != 5 {
		t.Fatalf("Clear = (%d, %v), want 5", n, err)
	}
	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 0 {
		t.Errorf("cache dir still holds %d entries", len(entries))
	}
	if _, hit, _ := c.Get(ctx, "k0"); hit {
		t.Error("cleared key should miss")
	}

	missing := &FileCache{dir: filepath.Join(t.TempDir(), "absent"), now: time.Now}
	if n, err := missing.Clear(ctx); err != nil || n != 0 {
		t.Errorf("Clear on missing dir = (%d, %v)", n, err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	base := ResultKeyOpts{Provider: "groq", Model: "llama", Format: "png", Layout: "dot", MaxAttempts: 3, ExplainMode: "text"}

	key := k.ResultKey("draw a queue", base)
	if !strings.HasPrefix(key, "result:") {
		t.Errorf("key %q should have result: prefix", key)
	}
	if k.ResultKey("  draw a queue\n", base) != key {
		t.Error("surrounding whitespace should not change the key")
	}

	variants := []ResultKeyOpts{base, base, base, base}
	variants[0].Provider = "openai"
	variants[1].Format = "svg"
	variants[2].Layout = "neato"
	variants[3].ExplainMode = "structured"
	for i, v := range variants {
		if k.ResultKey("draw a queue", v) == key {
			t.Errorf("variant %d should produce a different key", i)
		}
	}
	if k.ResultKey("draw a stack", base) == key {
		t.Error("different intents should produce different keys")
	}
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	rec := &cacheRecorder{}
	c := Instrument(fc, rec, "result")

	c.Get(ctx, "k")
	c.Set(ctx, "k", []byte("abcd"), 0)
	c.Get(ctx, "k")

	want := []string{"miss:result", "set:result:4", "hit:result"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
	if Instrument(fc, nil, "result") != Cache(fc) {
		t.Error("nil hooks should return the cache unchanged")
	}
}

type cacheRecorder struct{ events []string }

func (r *cacheRecorder) OnCacheHit(_ context.Context, kt string) {
	r.events = append(r.events, "hit:"+kt)
}

func (r *cacheRecorder) OnCacheMiss(_ context.Context, kt string) {
	r.events = append(r.events, "miss:"+kt)
}

func (r *cacheRecorder) OnCacheSet(_ context.Context, kt string, size int) {
	r.events = append(r.events, "set:"+kt+":"+strconv.Itoa(size))
}
