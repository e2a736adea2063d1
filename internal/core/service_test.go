package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/pkg/domain"
)

const day = 24 * time.Hour

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	seq := 0
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}))
	return NewService(store, opts...)
}

func mustPlant(t *testing.T, svc *Service, ctx context.Context, name string) domain.Plant {
	t.Helper()
	p, _, err := svc.CreatePlant(ctx, domain.Plant{Name: name, WateringInterval: 3 * day, WateringAmount: 2})
	if err != nil {
		t.Fatalf("create plant %s: %v", name, err)
	}
	return p
}

func TestCreatePlantDefaultsOwnerToActor(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	if p.PrimaryOwnerID != "alice" {
		t.Fatalf("expected actor as primary owner, got %q", p.PrimaryOwnerID)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps: %+v", p)
	}
}

func TestCreatePlantRejectsInvalidInterval(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreatePlant(context.Background(), domain.Plant{Name: "Broken"})
	if !IsStage(err, StageRules) {
		t.Fatalf("expected rules stage error, got %v", err)
	}
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || rv.Result.Violations[0].Rule != "watering_interval" {
		t.Fatalf("expected watering_interval violation, got %v", err)
	}
	if len(svc.Store().ListPlants()) != 0 {
		t.Fatalf("blocked plant must not be committed")
	}
	if _, _, err := svc.CreatePlant(context.Background(), domain.Plant{Name: "Flood", WateringInterval: day, WateringAmount: 9}); !IsStage(err, StageRules) {
		t.Fatalf("expected amount violation, got %v", err)
	}
}

func TestWaterPlantRecordsActorAndOwner(t *testing.T) {
	now := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	if _, _, err := svc.AddPlantOwners(ctx, p.ID, "bob"); err != nil {
		t.Fatalf("add owner: %v", err)
	}

	bobCtx := WithActor(context.Background(), "bob")
	ev, _, err := svc.WaterPlant(bobCtx, p.ID, time.Time{}, "soaked")
	if err != nil {
		t.Fatalf("water: %v", err)
	}
	if ev.WateredBy != "bob" || ev.CompiledOwnerID != "alicebob" || !ev.Date.Equal(now) || ev.ID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	got, _ := svc.GetPlant(ctx, p.ID)
	if !got.DateLastWatered.Equal(now) || len(got.WateringHistory) != 1 {
		t.Fatalf("history not recorded: %+v", got)
	}

	if _, _, err := svc.WaterPlant(context.Background(), p.ID, now, ""); !errors.Is(err, ErrNoActor) || !IsStage(err, StageApply) {
		t.Fatalf("expected ErrNoActor at apply stage, got %v", err)
	}
	var nf ErrNotFound
	if _, _, err := svc.WaterPlant(ctx, "missing", now, ""); !errors.As(err, &nf) || nf.Entity != domain.EntityPlant {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnershipChangesResyncHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	for i := 0; i < 2; i++ {
		if _, _, err := svc.WaterPlant(ctx, p.ID, time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC), ""); err != nil {
			t.Fatalf("water: %v", err)
		}
	}

	p, _, err := svc.AddPlantOwners(ctx, p.ID, "bob", "bob")
	if err != nil {
		t.Fatalf("add owners: %v", err)
	}
	if len(p.SecondaryOwners) != 2 {
		t.Fatalf("plants keep duplicate owners, got %v", p.SecondaryOwners)
	}
	for _, ev := range p.WateringHistory {
		if ev.CompiledOwnerID != "alicebobbob" {
			t.Fatalf("history not resynced: %+v", ev)
		}
	}

	p, _, err = svc.TransferPlantOwnership(ctx, p.ID, "bob")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if p.PrimaryOwnerID != "bob" || p.WateringHistory[0].CompiledOwnerID != domain.CompileOwnerID(&p) {
		t.Fatalf("transfer did not resync: %+v", p)
	}

	p, _, err = svc.RemovePlantOwner(ctx, p.ID, "alice")
	if err != nil {
		t.Fatalf("remove owner: %v", err)
	}
	if !p.HistoryInSync() {
		t.Fatalf("remove did not resync: %+v", p.WateringHistory)
	}

	// A mutator that forgets to resync is still corrected by UpdatePlant.
	p, _, err = svc.UpdatePlant(ctx, p.ID, func(pl *domain.Plant) error {
		pl.PrimaryOwnerID = "carol"
		return nil
	})
	if err != nil || !p.HistoryInSync() {
		t.Fatalf("update should resync: %v %+v", err, p.WateringHistory)
	}
}

func TestCompiledOwnerRuleBlocksDirectStoreWrites(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	if _, _, err := svc.WaterPlant(ctx, p.ID, time.Now(), ""); err != nil {
		t.Fatalf("water: %v", err)
	}
	_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdatePlant(p.ID, func(pl *domain.Plant) error {
			pl.SecondaryOwners = append(pl.SecondaryOwners, "mallory")
			return nil
		})
		return err
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || rv.Result.Violations[0].Rule != "compiled_owner_consistency" {
		t.Fatalf("expected compiled owner violation, got %v", err)
	}
}

func TestRoomOwnersDedup(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	room, _, err := svc.CreateRoom(ctx, domain.Room{Name: "Kitchen"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	room, _, err = svc.AddRoomOwners(ctx, room.ID, "bob", "bob", "carol")
	if err != nil {
		t.Fatalf("add owners: %v", err)
	}
	if len(room.SecondaryOwners) != 2 {
		t.Fatalf("rooms dedup owners, got %v", room.SecondaryOwners)
	}
	room, _, err = svc.TransferRoomOwnership(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if room.PrimaryOwnerID != "bob" || !domain.IsOwner(&room, "alice") || domain.IsOwner(&room, "nobody") {
		t.Fatalf("unexpected owners after transfer: %+v", room.Ownership)
	}
	room, _, err = svc.RemoveRoomOwner(ctx, room.ID, "carol")
	if err != nil || domain.IsOwner(&room, "carol") {
		t.Fatalf("remove owner: %v %+v", err, room.Ownership)
	}
	rooms, err := svc.QueryRooms(ctx, RoomsOwnedBy("alice"))
	if err != nil || len(rooms) != 1 {
		t.Fatalf("query rooms: %v %d", err, len(rooms))
	}
}

func TestTogglePlantInRoomMovesBetweenRooms(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	kitchen, _, _ := svc.CreateRoom(ctx, domain.Room{Name: "Kitchen"})
	den, _, _ := svc.CreateRoom(ctx, domain.Room{Name: "Den"})

	added, _, err := svc.TogglePlantInRoom(ctx, kitchen.ID, p.ID)
	if err != nil || !added {
		t.Fatalf("toggle into kitchen: %v %v", added, err)
	}
	got, _ := svc.GetPlant(ctx, p.ID)
	if got.RoomID == nil || *got.RoomID != kitchen.ID || got.RoomName != "Kitchen" {
		t.Fatalf("back-reference not set: %+v", got)
	}

	if added, _, err = svc.TogglePlantInRoom(ctx, den.ID, p.ID); err != nil || !added {
		t.Fatalf("move to den: %v %v", added, err)
	}
	k, _ := svc.GetRoom(ctx, kitchen.ID)
	d, _ := svc.GetRoom(ctx, den.ID)
	if k.ContainsPlant(p.ID) || !d.ContainsPlant(p.ID) {
		t.Fatalf("plant should only be in den: kitchen=%v den=%v", k.PlantIDs, d.PlantIDs)
	}
	got, _ = svc.GetPlant(ctx, p.ID)
	if *got.RoomID != den.ID || got.RoomName != "Den" {
		t.Fatalf("back-reference should follow move: %+v", got)
	}

	if _, _, err := svc.UpdateRoom(ctx, den.ID, func(r *domain.Room) error { r.Name = "Study"; return nil }); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got, _ = svc.GetPlant(ctx, p.ID); got.RoomName != "Study" {
		t.Fatalf("rename should propagate, got %q", got.RoomName)
	}

	if added, _, err = svc.TogglePlantInRoom(ctx, den.ID, p.ID); err != nil || added {
		t.Fatalf("toggle out: %v %v", added, err)
	}
	got, _ = svc.GetPlant(ctx, p.ID)
	if got.RoomID != nil || got.RoomName != "" {
		t.Fatalf("back-reference should clear: %+v", got)
	}
}

func TestDeletePlantDetachesFromRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	room, _, err := svc.CreateRoom(ctx, domain.Room{Name: "Kitchen", PlantIDs: []string{p.ID}})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := svc.DeletePlant(ctx, p.ID); err != nil {
		t.Fatalf("delete plant: %v", err)
	}
	room, _ = svc.GetRoom(ctx, room.ID)
	if len(room.PlantIDs) != 0 {
		t.Fatalf("room still lists deleted plant: %v", room.PlantIDs)
	}
	if _, _, err := svc.CreateRoom(ctx, domain.Room{Name: "Ghost", PlantIDs: []string{"missing"}}); err == nil {
		t.Fatalf("expected missing plant error")
	}
}

func TestDeleteRoomClearsBackReferences(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), "alice")
	p := mustPlant(t, svc, ctx, "Fern")
	room, _, _ := svc.CreateRoom(ctx, domain.Room{Name: "Kitchen", PlantIDs: []string{p.ID}})
	if _, err := svc.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	got, _ := svc.GetPlant(ctx, p.ID)
	if got.RoomID != nil {
		t.Fatalf("expected cleared back-reference")
	}
}

type failingPersistStore struct {
	*memory.Store
}

func (s failingPersistStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, domain.PersistError{Backend: "test", Err: errors.New("disk full")}
}

func TestCommitErrorStages(t *testing.T) {
	svc := NewService(failingPersistStore{memory.NewStore(NewDefaultRulesEngine())})
	ctx := WithActor(context.Background(), "alice")
	_, _, err := svc.CreatePlant(ctx, domain.Plant{Name: "Fern", WateringInterval: day})
	if !IsStage(err, StagePersist) {
		t.Fatalf("expected persist stage, got %v", err)
	}
	var pe domain.PersistError
	if !errors.As(err, &pe) || pe.Backend != "test" {
		t.Fatalf("persist error should unwrap: %v", err)
	}
	var ce *CommitError
	if !errors.As(err, &ce) || ce.Operation != "create_plant" {
		t.Fatalf("expected operation on commit error: %v", err)
	}
	if IsStage(nil, StageApply) {
		t.Fatalf("nil is not a commit error")
	}
}

func TestQueryPlantsPredicates(t *testing.T) {
	svc := newTestService(t)
	alice := WithActor(context.Background(), "alice")
	bob := WithActor(context.Background(), "bob")
	fern := mustPlant(t, svc, alice, "Fern")
	mustPlant(t, svc, bob, "Cactus")
	if _, _, err := svc.TogglePlantFavorite(alice, fern.ID); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	all, _ := svc.QueryPlants(alice, nil)
	mine, _ := svc.QueryPlants(alice, PlantsOwnedBy("alice"))
	favs, _ := svc.QueryPlants(alice, FavoritePlants)
	if len(all) != 2 || len(mine) != 1 || len(favs) != 1 || favs[0].ID != fern.ID {
		t.Fatalf("unexpected query results all=%d mine=%d favs=%d", len(all), len(mine), len(favs))
	}
}

func TestScheduleOperations(t *testing.T) {
	now := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := WithActor(context.Background(), "alice")
	p, _, err := svc.CreatePlant(ctx, domain.Plant{
		Name:             "Fern",
		WateringInterval: 7 * day,
		DateLastWatered:  time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	nodes, err := svc.PlantSchedule(ctx, p.ID, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	want := []int{4, 11, 18, 25}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i, d := range want {
		if nodes[i].Date.Day() != d || nodes[i].PlantID != p.ID {
			t.Fatalf("node %d: got %v", i, nodes[i].Date)
		}
	}
	week, err := svc.PlantScheduleRange(ctx, p.ID, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC))
	if err != nil || len(week) != 1 || week[0].Date.Day() != 11 {
		t.Fatalf("week range: %v %+v", err, week)
	}
	status, err := svc.PlantStatus(ctx, p.ID, now)
	if err != nil || status != "missed" {
		t.Fatalf("expected missed status, got %q %v", status, err)
	}
	month, err := svc.MonthSchedule(ctx, "alice", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || len(month) != 4 {
		t.Fatalf("month schedule: %v %d", err, len(month))
	}
	if month, _ := svc.MonthSchedule(ctx, "bob", now); len(month) != 0 {
		t.Fatalf("bob owns nothing")
	}
	if _, err := svc.PlantSchedule(ctx, "missing", now); err == nil {
		t.Fatalf("expected not found")
	}
}
