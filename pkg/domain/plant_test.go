package domain

import (
	"testing"
	"time"
)

func TestWaterAppendsEventAndAllowsBackdating(t *testing.T) {
	plant := &Plant{Ownership: Ownership{PrimaryOwnerID: "p", SecondaryOwners: []string{"s"}}}
	later := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	ev := plant.Water("e1", later, "first", "actor")
	if ev.CompiledOwnerID != "ps" || ev.WateredBy != "actor" {
		t.Fatalf("unexpected event %+v", ev)
	}
	plant.Water("e2", earlier, "backdated", "actor")

	if !plant.DateLastWatered.Equal(earlier) {
		t.Fatalf("expected last watered to follow the supplied date, got %v", plant.DateLastWatered)
	}
	if len(plant.WateringHistory) != 2 || plant.WateringHistory[0].ID != "e1" || plant.WateringHistory[1].ID != "e2" {
		t.Fatalf("history must keep insertion order: %+v", plant.WateringHistory)
	}
}

func TestToggleFavoriteIndependentOfHistory(t *testing.T) {
	plant := &Plant{}
	if !plant.ToggleFavorite() || plant.ToggleFavorite() {
		t.Fatalf("toggle should flip the flag")
	}
	if len(plant.WateringHistory) != 0 {
		t.Fatalf("favorite must not touch history")
	}
}

func TestSyncCompiledOwnerAfterOwnershipChange(t *testing.T) {
	plant := &Plant{Ownership: Ownership{PrimaryOwnerID: "p"}}
	plant.Water("e1", time.Now(), "", "p")
	plant.Water("e2", time.Now(), "", "p")
	AddOwner(plant, "friend")
	if plant.HistoryInSync() {
		t.Fatalf("history should be stale after owner change")
	}
	if n := plant.SyncCompiledOwner(); n != 2 {
		t.Fatalf("expected 2 events updated, got %d", n)
	}
	if !plant.HistoryInSync() || plant.WateringHistory[1].CompiledOwnerID != "pfriend" {
		t.Fatalf("history not synchronised: %+v", plant.WateringHistory)
	}
}

func TestToggleRoomPlant(t *testing.T) {
	kitchen := &Room{Base: Base{ID: "kitchen"}, Name: "Kitchen"}
	office := &Room{Base: Base{ID: "office"}, Name: "Office"}
	plant := &Plant{Base: Base{ID: "fern"}}

	if !ToggleRoomPlant(kitchen, plant, nil) {
		t.Fatalf("expected plant added")
	}
	if plant.RoomID == nil || *plant.RoomID != "kitchen" || plant.RoomName != "Kitchen" {
		t.Fatalf("back-reference not set: %+v", plant)
	}

	if !ToggleRoomPlant(office, plant, kitchen) {
		t.Fatalf("expected plant moved")
	}
	if kitchen.ContainsPlant("fern") {
		t.Fatalf("plant must leave its prior room")
	}
	if *plant.RoomID != "office" {
		t.Fatalf("back-reference should point at office, got %s", *plant.RoomID)
	}

	if ToggleRoomPlant(office, plant, office) {
		t.Fatalf("second add should remove")
	}
	if office.ContainsPlant("fern") || plant.RoomID != nil {
		t.Fatalf("toggle removal must clear membership and back-reference: %+v %+v", office, plant)
	}
}

func TestRemoveRoomPlantKeepsForeignBackRef(t *testing.T) {
	room := &Room{Base: Base{ID: "a"}, PlantIDs: []string{"p"}}
	other := "b"
	plant := &Plant{Base: Base{ID: "p"}, RoomID: &other}
	RemoveRoomPlant(room, plant, true)
	if plant.RoomID == nil || *plant.RoomID != "b" {
		t.Fatalf("back-reference to another room must survive")
	}
}
