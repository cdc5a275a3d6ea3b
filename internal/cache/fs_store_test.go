package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndRead(t *testing.T) {
	store, dir := newTestFileStore(t)
	_, path := resolvePath(dir, "greeting")

	env := newEnvelope("greeting", Text("hi"), 30, 1700000030)
	env.TimeKey = bucketFor(1700000030, sweepOffset)
	if err := store.write(path, env); err != nil {
		t.Fatalf("write error: %v", err)
	}

	got, err := store.read(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(got.Data) != "hi" || got.Key != "greeting" || got.DataType != DataTypeString {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if got.expiresAt() != 1700000030 || got.TTL != 30 || got.TimeKey != env.TimeKey {
		t.Fatalf("metadata mismatch: %+v", got)
	}
}

func TestFileStoreEnvelopeFormat(t *testing.T) {
	store, dir := newTestFileStore(t)
	_, path := resolvePath(dir, "k")
	if err := store.write(path, newEnvelope("k", Bytes([]byte("hi")), 0, 0)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("invalid json on disk: %v", err)
	}
	data, ok := doc["data"].([]any)
	if !ok || len(data) != 2 || data[0].(float64) != 104 || data[1].(float64) != 105 {
		t.Fatalf("data should be a byte array, got %v", doc["data"])
	}
	if doc["type"] != "Buffer" || doc["dataType"] != "buffer" || doc["key"] != "k" {
		t.Fatalf("unexpected envelope fields %v", doc)
	}
	if doc["expires"].(float64) != 0 || doc["ttl"].(float64) != 0 {
		t.Fatalf("permanent entry should have zero expires/ttl: %v", doc)
	}
	if _, exists := doc["timeKey"]; exists {
		t.Fatalf("permanent entry should not carry timeKey")
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store, dir := newTestFileStore(t)
	if _, err := store.read(filepath.Join(dir, "MA", "missing.json")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreReadCorrupt(t *testing.T) {
	store, dir := newTestFileStore(t)
	cases := map[string]string{
		"garbage.json":     "{not json",
		"no-expires.json":  `{"data":[1],"key":"x","ttl":0}`,
		"bad-data.json":    `{"data":[300],"expires":0}`,
		"string-data.json": `{"data":"aGk=","expires":0}`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := store.read(path); !errors.Is(err, ErrCorruptEntry) {
			t.Fatalf("%s: expected ErrCorruptEntry, got %v", name, err)
		}
	}
}

func TestFileStoreIgnoresDirectories(t *testing.T) {
	store, dir := newTestFileStore(t)
	_, path := resolvePath(dir, "as-dir")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := store.read(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestFileStoreRemoveIsIdempotent(t *testing.T) {
	store, dir := newTestFileStore(t)
	_, path := resolvePath(dir, "gone")
	if err := store.remove(path); err != nil {
		t.Fatalf("removing absent entry should succeed: %v", err)
	}
	if err := store.write(path, newEnvelope("gone", Text("x"), 0, 0)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := store.remove(path); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err=%v", err)
	}
}

func TestFileStoreList(t *testing.T) {
	store, dir := newTestFileStore(t)

	paths, err := store.list(context.Background(), dir)
	if err != nil || len(paths) != 0 {
		t.Fatalf("empty dir should list nothing, got %v (%v)", paths, err)
	}
	paths, err = store.list(context.Background(), filepath.Join(dir, "absent"))
	if err != nil || len(paths) != 0 {
		t.Fatalf("missing dir should list nothing, got %v (%v)", paths, err)
	}

	for _, key := range []string{"a", "bb", "a-considerably-longer-key"} {
		_, path := resolvePath(dir, key)
		if err := store.write(path, newEnvelope(key, Text(key), 0, 0)); err != nil {
			t.Fatalf("write error: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "MA", ".entry-123"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	paths, err = store.list(context.Background(), dir)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 entry files, got %v", paths)
	}
}

func TestFileStoreListHonoursContext(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.list(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func newTestFileStore(t *testing.T) (*fileStore, string) {
	t.Helper()
	return newFileStore(), t.TempDir()
}
