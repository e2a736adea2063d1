package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"plantkeeper/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 || s.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected driver or bucket")
	}
	info, err := s.Put(ctx, "plants/p1/cover.jpg", strings.NewReader("jpeg-bytes"), core.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("jpeg-bytes")) || info.ContentType != "image/jpeg" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	_, rc, err := s.Get(ctx, "plants/p1/cover.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "jpeg-bytes" {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestMockStoreOverwriteAndMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if _, err := s.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if info, err := s.Put(ctx, "k", strings.NewReader("bb"), core.PutOptions{Overwrite: true}); err != nil || info.Size != 2 {
		t.Fatalf("overwrite: %v %+v", err, info)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if ok, err := s.Delete(ctx, "missing"); ok || err != nil {
		t.Fatalf("delete missing: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "k"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
}

func TestMockStoreListAndPresign(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	for _, k := range []string{"plants/b/cover.jpg", "plants/a/cover.jpg", "profiles/x/avatar.jpg"} {
		if _, err := s.Put(ctx, k, strings.NewReader(k), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := s.List(ctx, "plants/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "plants/a/cover.jpg" {
		t.Fatalf("unexpected list %+v", list)
	}
	url, err := s.PresignURL(ctx, "plants/a/cover.jpg", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "plants/a/cover.jpg") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported PUT presign")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "AKIA", SecretAccessKey: "s", Endpoint: "http://localhost:9000", PathStyle: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Bucket() != "b" {
		t.Fatalf("unexpected bucket")
	}
}
