package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"plantkeeper/pkg/domain"
)

func TestSubscriptionDeliversCommittedMatchingChanges(t *testing.T) {
	svc := newTestService(t)
	if err := svc.AddOrUpdateSubscription("alice-plants", Subscription{Entity: domain.EntityPlant, Predicate: OwnedBy("alice")}); err != nil {
		t.Fatalf("add subscription: %v", err)
	}
	events, cancel, err := svc.Subscribe("alice-plants")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	alice := WithActor(context.Background(), "alice")
	bob := WithActor(context.Background(), "bob")
	mustPlant(t, svc, bob, "Cactus")
	if _, _, err := svc.CreatePlant(alice, domain.Plant{Name: "Broken"}); err == nil {
		t.Fatalf("expected blocked create")
	}
	fern := mustPlant(t, svc, alice, "Fern")
	if _, _, err := svc.CreateRoom(alice, domain.Room{Name: "Kitchen"}); err != nil {
		t.Fatalf("room: %v", err)
	}

	select {
	case ev := <-events:
		p, ok := ev.Change.After.(domain.Plant)
		if !ok || p.ID != fern.ID || ev.Change.Action != domain.ActionCreate || ev.Subscription != "alice-plants" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event")
	}
	select {
	case ev := <-events:
		t.Fatalf("only the committed alice plant should be delivered, got %+v", ev)
	default:
	}
}

func TestSubscriptionUpdateKeepsListeners(t *testing.T) {
	reg := NewSubscriptionRegistry(nil, 4)
	if err := reg.AddOrUpdate("s", Subscription{Entity: domain.EntityRoom}); err != nil {
		t.Fatalf("add: %v", err)
	}
	ch, cancel, err := reg.Listen("s")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := reg.AddOrUpdate("s", Subscription{Entity: domain.EntityProfile}); err != nil {
		t.Fatalf("update: %v", err)
	}
	reg.Publish([]domain.Change{
		{Entity: domain.EntityRoom, Action: domain.ActionCreate},
		{Entity: domain.EntityProfile, Action: domain.ActionUpdate},
	})
	ev := <-ch
	if ev.Change.Entity != domain.EntityProfile {
		t.Fatalf("updated selection should apply, got %+v", ev)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("cancel should close the channel")
	}
	if got := reg.Names(); len(got) != 1 || got[0] != "s" {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestSubscriptionValidationAndRemoval(t *testing.T) {
	reg := NewSubscriptionRegistry(nil, 1)
	if err := reg.AddOrUpdate("", Subscription{Entity: domain.EntityPlant}); err == nil {
		t.Fatalf("expected name error")
	}
	if err := reg.AddOrUpdate("x", Subscription{}); err == nil {
		t.Fatalf("expected entity error")
	}
	if _, _, err := reg.Listen("nope"); !errors.Is(err, ErrUnknownSubscription) {
		t.Fatalf("expected unknown subscription, got %v", err)
	}
	_ = reg.AddOrUpdate("x", Subscription{Entity: domain.EntityPlant})
	ch, _, _ := reg.Listen("x")
	if !reg.Remove("x") || reg.Remove("x") {
		t.Fatalf("remove should report presence once")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("remove should close listeners")
	}
}

func TestSubscriptionOverflowDropsAndWarns(t *testing.T) {
	logger := &captureLogger{}
	reg := NewSubscriptionRegistry(logger, 1)
	_ = reg.AddOrUpdate("x", Subscription{Entity: domain.EntityPlant})
	ch, cancel, _ := reg.Listen("x")
	defer cancel()
	reg.Publish([]domain.Change{{Entity: domain.EntityPlant}, {Entity: domain.EntityPlant}})
	if len(ch) != 1 || len(logger.warns) != 1 {
		t.Fatalf("expected one buffered event and one drop warning, got %d/%d", len(ch), len(logger.warns))
	}
	reg.Close()
	if _, _, err := reg.Listen("x"); err == nil {
		t.Fatalf("closed registry should reject listeners")
	}
}

func TestOwnedByMatchesBeforeAndAfter(t *testing.T) {
	pred := OwnedBy("alice")
	plant := domain.Plant{Ownership: domain.Ownership{PrimaryOwnerID: "alice"}}
	transferred := domain.Plant{Ownership: domain.Ownership{PrimaryOwnerID: "bob"}}
	cases := []struct {
		name   string
		change domain.Change
		want   bool
	}{
		{"plant after", domain.Change{After: plant}, true},
		{"transferred away", domain.Change{Before: plant, After: transferred}, true},
		{"not owned", domain.Change{After: transferred}, false},
		{"room secondary", domain.Change{After: domain.Room{Ownership: domain.Ownership{SecondaryOwners: []string{"alice"}}}}, true},
		{"profile", domain.Change{Before: domain.Profile{OwnerID: "alice"}}, true},
		{"unknown payload", domain.Change{After: "x"}, false},
	}
	for _, tc := range cases {
		if got := pred(tc.change); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
