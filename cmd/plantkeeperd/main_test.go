package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"plantkeeper/internal/config"
	"plantkeeper/internal/core"
	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/pkg/domain"
)

type closeCountingStore struct {
	*memory.Store
	closed int
}

func (s *closeCountingStore) Close() error {
	s.closed++
	return nil
}

func TestRunClosesStoreWhenBlobOpenFails(t *testing.T) {
	store := &closeCountingStore{Store: memory.NewStore(core.NewDefaultRulesEngine())}
	prev := openPersistentStore
	openPersistentStore = func(context.Context, core.StorageConfig, *domain.RulesEngine, ...memory.Option) (domain.PersistentStore, error) {
		return store, nil
	}
	t.Cleanup(func() { openPersistentStore = prev })

	cfg := &config.Config{Blob: config.BlobConfig{Driver: "bogus"}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(context.Background(), cfg, log); err == nil {
		t.Fatalf("expected unknown blob driver error")
	}
	if store.closed != 1 {
		t.Fatalf("expected store closed once, got %d", store.closed)
	}
}
