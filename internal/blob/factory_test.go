package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("expected default fs driver, got %s", fsStore.Driver())
	}
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("open memory: %v", err)
	}
	s3Store, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "downloads", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "minio", SecretAccessKey: "minio123"}})
	if err != nil || s3Store.Driver() != DriverS3 {
		t.Fatalf("open s3: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

// Every backend must honour the same create-only contract.
func TestBackendsShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{fsStore, NewMemory(), NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			if _, err := store.Put(ctx, "mci_download/file_3.csv", bytes.NewReader([]byte("a,b\n")), PutOptions{ContentType: "text/csv"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "mci_download/file_3.csv", bytes.NewReader([]byte("c")), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			info, rc, err := store.Get(ctx, "mci_download/file_3.csv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "a,b\n" || info.ContentType != "text/csv" {
				t.Fatalf("unexpected blob %q %+v", body, info)
			}
			if _, _, err := store.Get(ctx, "mci_download/file_4.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "mci_download/")
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v %+v", err, list)
			}
		})
	}
}
