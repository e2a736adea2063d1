package integration

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"plantkeeper/internal/blob"
	"plantkeeper/internal/core"
	"plantkeeper/internal/imaging"
	"plantkeeper/internal/infra/blob/fs"
	blobmemory "plantkeeper/internal/infra/blob/memory"
	"plantkeeper/internal/infra/blob/s3"
	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/internal/infra/persistence/postgres"
	"plantkeeper/internal/infra/persistence/postgres/testutil"
	"plantkeeper/internal/infra/persistence/sqlite"
	"plantkeeper/pkg/domain"
)

const day = 24 * time.Hour

type storeVariant struct {
	name string
	open func(t *testing.T) domain.PersistentStore
	// reopen returns a fresh store over the same backing data, or nil when the
	// backend cannot be reopened in process.
	reopen func(t *testing.T) domain.PersistentStore
}

func storeVariants(t *testing.T) []storeVariant {
	t.Helper()
	sqlitePath := filepath.Join(t.TempDir(), "plantkeeper.db")
	openSQLite := func(t *testing.T) domain.PersistentStore {
		s, err := sqlite.NewStore(sqlitePath, core.NewDefaultRulesEngine())
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		return s
	}
	return []storeVariant{
		{
			name: "memory-store",
			open: func(*testing.T) domain.PersistentStore {
				return memory.NewStore(core.NewDefaultRulesEngine())
			},
		},
		{name: "sqlite-store", open: openSQLite, reopen: openSQLite},
		{
			name: "postgres-stub-store",
			open: func(t *testing.T) domain.PersistentStore {
				db, _ := testutil.NewStubDB()
				restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
				t.Cleanup(restore)
				s, err := postgres.NewStore(context.Background(), "stub", core.NewDefaultRulesEngine())
				if err != nil {
					t.Fatalf("open postgres store: %v", err)
				}
				return s
			},
		},
	}
}

func blobVariants() []struct {
	name string
	open func(t *testing.T) blob.Store
} {
	return []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{name: "memory-blob", open: func(*testing.T) blob.Store { return blobmemory.New() }},
		{
			name: "fs-blob",
			open: func(t *testing.T) blob.Store {
				s, err := fs.New(t.TempDir())
				if err != nil {
					t.Fatalf("open fs blob: %v", err)
				}
				return s
			},
		},
		{name: "mock-s3-blob", open: func(*testing.T) blob.Store { return s3.NewMockForTests() }},
	}
}

func greenSquare() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	return img
}

// TestIntegrationSmoke runs a short plant lifecycle against every in-process
// storage backend and checks the observability exporters saw it.
func TestIntegrationSmoke(t *testing.T) {
	for _, sv := range storeVariants(t) {
		t.Run(sv.name, func(t *testing.T) {
			ctx := core.WithActor(context.Background(), "ann")
			metrics := core.NewExpvarMetricsRecorder("")
			var traces bytes.Buffer
			tracer := core.NewJSONTracer(&traces, 16)
			svc := core.NewService(sv.open(t), core.WithMetricsRecorder(metrics), core.WithTracer(tracer))

			plant, res, err := svc.CreatePlant(ctx, domain.Plant{Name: "Monstera", WateringInterval: 7 * day, WateringAmount: 3})
			if err != nil {
				t.Fatalf("create plant: %v", err)
			}
			if res.HasBlocking() {
				t.Fatalf("unexpected violations: %+v", res.Violations)
			}
			room, _, err := svc.CreateRoom(ctx, domain.Room{Name: "Kitchen"})
			if err != nil {
				t.Fatalf("create room: %v", err)
			}
			if in, _, err := svc.TogglePlantInRoom(ctx, room.ID, plant.ID); err != nil || !in {
				t.Fatalf("toggle plant into room: in=%v err=%v", in, err)
			}
			watered := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			if _, _, err := svc.WaterPlant(ctx, plant.ID, watered, "first"); err != nil {
				t.Fatalf("water plant: %v", err)
			}

			got, err := svc.GetPlant(ctx, plant.ID)
			if err != nil {
				t.Fatalf("get plant: %v", err)
			}
			if len(got.WateringHistory) != 1 || !got.DateLastWatered.Equal(watered) {
				t.Fatalf("expected one watering on %v, got %+v", watered, got)
			}
			if got.RoomID == nil || *got.RoomID != room.ID {
				t.Fatalf("expected plant in room %s, got %v", room.ID, got.RoomID)
			}
			if err := svc.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			if sv.reopen != nil {
				reloaded := core.NewService(sv.reopen(t))
				defer reloaded.Close()
				again, err := reloaded.GetPlant(ctx, plant.ID)
				if err != nil {
					t.Fatalf("get after reopen: %v", err)
				}
				if len(again.WateringHistory) != 1 || again.WateringHistory[0].Comment != "first" {
					t.Fatalf("watering history not persisted: %+v", again.WateringHistory)
				}
			}

			snap := metrics.Snapshot()
			if snap.Results["water_plant"]["success"] != 1 {
				t.Fatalf("expected water_plant success metric, got %+v", snap.Results)
			}
			if traces.Len() == 0 {
				t.Fatalf("expected trace output")
			}
			var sawCreate bool
			for _, e := range tracer.Entries() {
				if e.Operation == "create_plant" && e.Status == "success" {
					sawCreate = true
				}
			}
			if !sawCreate {
				t.Fatalf("expected create_plant span, got %+v", tracer.Entries())
			}
		})
	}
}

// TestIntegrationImageArchive stores a cover image through each blob backend.
func TestIntegrationImageArchive(t *testing.T) {
	for _, bv := range blobVariants() {
		t.Run(bv.name, func(t *testing.T) {
			ctx := core.WithActor(context.Background(), "ann")
			store := bv.open(t)
			archive := imaging.NewArchive(store)
			svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithImageArchive(archive))
			defer svc.Close()

			plant, _, err := svc.CreatePlant(ctx, domain.Plant{Name: "Pothos", WateringInterval: 5 * day, WateringAmount: 1})
			if err != nil {
				t.Fatalf("create plant: %v", err)
			}
			updated, _, err := svc.SetPlantCoverImage(ctx, plant.ID, greenSquare())
			if err != nil {
				t.Fatalf("set cover: %v", err)
			}
			archived, err := blob.ReadAll(ctx, store, imaging.PlantCoverKey(plant.ID))
			if err != nil {
				t.Fatalf("archived cover: %v", err)
			}
			if !bytes.Equal(archived, updated.CoverImage) {
				t.Fatalf("archived bytes differ from stored cover")
			}
			if imaging.Decode(archived) == nil {
				t.Fatalf("archived cover does not decode")
			}
		})
	}
}
