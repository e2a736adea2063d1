package core

import (
	"context"
	"testing"
	"time"

	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/pkg/domain"
)

type stubView struct {
	plants   []domain.Plant
	rooms    []domain.Room
	profiles []domain.Profile
}

func (v stubView) ListPlants() []domain.Plant     { return v.plants }
func (v stubView) ListRooms() []domain.Room       { return v.rooms }
func (v stubView) ListProfiles() []domain.Profile { return v.profiles }

func (v stubView) FindPlant(id string) (domain.Plant, bool) {
	for _, p := range v.plants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Plant{}, false
}

func (v stubView) FindRoom(id string) (domain.Room, bool) {
	for _, r := range v.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Room{}, false
}

func (v stubView) FindProfile(id string) (domain.Profile, bool) {
	for _, p := range v.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Profile{}, false
}

func strPtr(s string) *string { return &s }

func plantWithID(id string) domain.Plant {
	return domain.Plant{Base: domain.Base{ID: id}, WateringInterval: time.Hour}
}

func TestDefaultRulesEngineOrder(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := []string{"watering_interval", "room_membership", "compiled_owner_consistency", "friendship_symmetry"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rule %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestWateringIntervalRuleIgnoresDeletes(t *testing.T) {
	rule := NewWateringIntervalRule()
	res, err := rule.Evaluate(context.Background(), stubView{}, []domain.Change{
		{Entity: domain.EntityPlant, Action: domain.ActionDelete, Before: domain.Plant{}},
		{Entity: domain.EntityRoom, Action: domain.ActionCreate, After: domain.Room{}},
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected no violations: %v %+v", err, res)
	}
	res, _ = rule.Evaluate(context.Background(), stubView{}, []domain.Change{
		{Entity: domain.EntityPlant, Action: domain.ActionUpdate, After: domain.Plant{WateringInterval: -time.Hour, WateringAmount: 6}},
	})
	if len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("expected interval and amount violations, got %+v", res.Violations)
	}
}

func TestRoomMembershipRule(t *testing.T) {
	cases := []struct {
		name  string
		view  stubView
		wantN int
	}{
		{
			name: "consistent",
			view: stubView{
				plants: []domain.Plant{{Base: domain.Base{ID: "p"}, RoomID: strPtr("r")}},
				rooms:  []domain.Room{{Base: domain.Base{ID: "r"}, PlantIDs: []string{"p"}}},
			},
		},
		{
			name: "two rooms",
			view: stubView{
				plants: []domain.Plant{{Base: domain.Base{ID: "p"}, RoomID: strPtr("r1")}},
				rooms: []domain.Room{
					{Base: domain.Base{ID: "r1"}, PlantIDs: []string{"p"}},
					{Base: domain.Base{ID: "r2"}, PlantIDs: []string{"p"}},
				},
			},
			wantN: 1,
		},
		{
			name: "missing back-reference",
			view: stubView{
				plants: []domain.Plant{{Base: domain.Base{ID: "p"}}},
				rooms:  []domain.Room{{Base: domain.Base{ID: "r"}, PlantIDs: []string{"p"}}},
			},
			wantN: 1,
		},
		{
			name: "dangling back-reference",
			view: stubView{
				plants: []domain.Plant{{Base: domain.Base{ID: "p"}, RoomID: strPtr("r")}},
				rooms:  []domain.Room{{Base: domain.Base{ID: "r"}}},
			},
			wantN: 1,
		},
		{
			name: "wrong room",
			view: stubView{
				plants: []domain.Plant{{Base: domain.Base{ID: "p"}, RoomID: strPtr("r2")}},
				rooms:  []domain.Room{{Base: domain.Base{ID: "r1"}, PlantIDs: []string{"p"}}},
			},
			wantN: 1,
		},
		{
			name:  "missing plant",
			view:  stubView{rooms: []domain.Room{{Base: domain.Base{ID: "r"}, PlantIDs: []string{"ghost"}}}},
			wantN: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewRoomMembershipRule().Evaluate(context.Background(), tc.view, nil)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if len(res.Violations) != tc.wantN {
				t.Fatalf("expected %d violations, got %+v", tc.wantN, res.Violations)
			}
		})
	}
}

func TestCompiledOwnerRule(t *testing.T) {
	stale := plantWithID("p")
	stale.PrimaryOwnerID = "alice"
	stale.WateringHistory = []domain.WateringEvent{{ID: "e", CompiledOwnerID: "bob"}}
	res, _ := NewCompiledOwnerRule().Evaluate(context.Background(), stubView{}, []domain.Change{
		{Entity: domain.EntityPlant, Action: domain.ActionUpdate, After: stale},
	})
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "p" {
		t.Fatalf("expected stale history violation, got %+v", res.Violations)
	}
	stale.SyncCompiledOwner()
	res, _ = NewCompiledOwnerRule().Evaluate(context.Background(), stubView{}, []domain.Change{
		{Entity: domain.EntityPlant, Action: domain.ActionUpdate, After: stale},
	})
	if len(res.Violations) != 0 {
		t.Fatalf("synced plant should pass: %+v", res.Violations)
	}
}

func TestFriendshipSymmetryRuleWarns(t *testing.T) {
	a := domain.Profile{Base: domain.Base{ID: "a"}, Friends: []string{"b", "b", "c"}}
	b := domain.Profile{Base: domain.Base{ID: "b"}}
	view := stubView{profiles: []domain.Profile{a, b}}
	res, err := NewFriendshipSymmetryRule().Evaluate(context.Background(), view, []domain.Change{
		{Entity: domain.EntityProfile, Action: domain.ActionUpdate, After: a},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.HasBlocking() {
		t.Fatalf("expected two non-blocking warnings, got %+v", res.Violations)
	}
}

func TestWarningsDoNotBlockCommit(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateProfile(domain.Profile{Base: domain.Base{ID: "a"}, Friends: []string{"b"}})
		if err != nil {
			return err
		}
		_, err = tx.CreateProfile(domain.Profile{Base: domain.Base{ID: "b"}})
		return err
	})
	if err != nil {
		t.Fatalf("warnings must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected one warning, got %+v", res.Violations)
	}
}
