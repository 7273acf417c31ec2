package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"ecoindex/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "occurrence_download/file_0.csv", bytes.NewReader([]byte("id\n1\n")), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"rows": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "occurrence_download/file_0.csv" || info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	g, rc, err := store.Get(ctx, "occurrence_download/file_0.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "id\n1\n" || g.ETag != info.ETag || g.ContentType != "text/csv" || g.Metadata["rows"] != "1" {
		t.Fatalf("unexpected get artifacts %+v %q", g, b)
	}
	list, err := store.List(ctx, "occurrence_download/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "occurrence_download/file_0.csv" {
		t.Fatalf("unexpected list %+v", list)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("driver %s", store.Driver())
	}
}

func TestStore_PutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k1.csv", bytes.NewReader([]byte("first")), core.PutOptions{}); err != nil {
		t.Fatalf("put1: %v", err)
	}
	_, err := store.Put(ctx, "k1.csv", bytes.NewReader([]byte("again")), core.PutOptions{})
	if !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "k1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	if b, _ := io.ReadAll(rc); string(b) != "first" {
		t.Fatalf("blob overwritten: %q", b)
	}
}

func TestStore_ConcurrentPutsSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(ctx, "race/file_7.csv", bytes.NewReader([]byte(strconv.Itoa(i))), core.PutOptions{})
			switch {
			case err == nil:
				mu.Lock()
				winners++
				mu.Unlock()
			case !errors.Is(err, core.ErrExists):
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	list, err := store.List(ctx, "race/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTempStore(t)
	if _, _, err := store.Get(context.Background(), "mci_download/file_9.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PathTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "../escape.txt", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected traversal error")
	}
	if _, err := store.Put(ctx, "/abs.txt", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected absolute error")
	}
}

func TestStore_MetadataPersistence(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "meta/data.csv", bytes.NewReader([]byte("abc")), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	dataPath, metaPath, _ := store.pathFor("meta/data.csv")
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("expected data path: %v", err)
	}
	b, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !bytes.Contains(b, []byte("text/csv")) {
		t.Fatalf("meta missing content type")
	}
	if filepath.Ext(metaPath) != ".meta" {
		t.Fatalf("meta path extension mismatch")
	}
}

func TestStore_MissingSidecarFallsBackToFile(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "folder/f0.csv", bytes.NewReader([]byte("data")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, _ := store.pathFor("folder/f0.csv")
	if err := os.Remove(metaPath); err != nil {
		t.Fatalf("rm meta: %v", err)
	}
	info, rc, err := store.Get(ctx, "folder/f0.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = rc.Close()
	if info.Size != 4 {
		t.Fatalf("expected size from stat, got %+v", info)
	}
	list, err := store.List(ctx, "folder/")
	if err != nil || len(list) != 1 || list[0].Size != 4 {
		t.Fatalf("list: %v %+v", err, list)
	}
}

type errorReader struct{}

func (errorReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

func TestStore_PutCopyErrorLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad/file_1.csv", errorReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected copy error")
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty store, got %v %+v", err, list)
	}
	if _, err := store.Put(ctx, "bad/file_1.csv", bytes.NewReader([]byte("ok")), core.PutOptions{}); err != nil {
		t.Fatalf("retry after failed put: %v", err)
	}
}

func TestStore_ListOrderAndPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, k := range []string{"b/file_2.csv", "a/file_1.csv", "a/file_0.csv"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 3 {
		t.Fatalf("list root: %v %v", err, list)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Key > list[i].Key {
			t.Fatalf("expected sorted order: %+v", list)
		}
	}
	list, err = store.List(ctx, "a/")
	if err != nil || len(list) != 2 {
		t.Fatalf("list prefix: %v %v", err, list)
	}
}

func TestSanitizeKeyErrors(t *testing.T) {
	cases := []string{"", "  ", "../escape", "/abs", "a/../b", "x/file.csv.meta", "x/.tmp-123"}
	for _, c := range cases {
		if _, err := sanitizeKey(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
	if k, err := sanitizeKey("a//b/./c.csv"); err != nil || k != "a/b/c.csv" {
		t.Fatalf("unexpected clean %q %v", k, err)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.root != "./blobdata" {
		t.Fatalf("root %s", store.root)
	}
	if _, err := os.Stat(filepath.Join(dir, "blobdata")); err != nil {
		t.Fatalf("root not created: %v", err)
	}
}
