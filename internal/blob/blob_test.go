package blob

import (
	"context"
	"errors"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver should be fs: %v", err)
	}
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("s3 without bucket should fail")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestPutBytesOverwritesAndReadAll(t *testing.T) {
	ctx := context.Background()
	store, _ := Open(ctx, Config{Driver: DriverMemory})
	if _, err := PutBytes(ctx, store, "device/current_user_id", []byte("alice"), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := PutBytes(ctx, store, "device/current_user_id", []byte("bob"), "text/plain"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := ReadAll(ctx, store, "device/current_user_id")
	if err != nil || string(b) != "bob" {
		t.Fatalf("read: %q %v", b, err)
	}
	if _, err := ReadAll(ctx, store, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
