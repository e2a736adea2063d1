package core

import (
	"context"
	"errors"
	"testing"

	"plantkeeper/pkg/domain"
)

func twoProfiles(t *testing.T, svc *Service) (domain.Profile, domain.Profile) {
	t.Helper()
	a, _, err := svc.CreateProfile(WithActor(context.Background(), "user-a"), domain.Profile{Username: "ann"})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, _, err := svc.CreateProfile(WithActor(context.Background(), "user-b"), domain.Profile{Username: "ben", Publicity: domain.PublicityPublic})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	return a, b
}

func TestCreateProfileDefaults(t *testing.T) {
	svc := newTestService(t)
	a, _ := twoProfiles(t, svc)
	if a.OwnerID != "user-a" || a.DateJoined.IsZero() || a.Publicity != domain.PublicityPrivate {
		t.Fatalf("unexpected defaults: %+v", a)
	}
	if _, _, err := svc.CreateProfile(context.Background(), domain.Profile{Username: "ANN"}); err == nil {
		t.Fatalf("expected duplicate username error")
	}
	public, _ := svc.QueryProfiles(context.Background(), PublicProfiles)
	if len(public) != 1 || public[0].Username != "ben" {
		t.Fatalf("unexpected public profiles %+v", public)
	}
	mine, _ := svc.QueryProfiles(context.Background(), ProfilesOwnedBy("user-a"))
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Fatalf("unexpected owned profiles %+v", mine)
	}
}

func TestFriendRequestLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, b := twoProfiles(t, svc)

	if _, err := svc.RequestFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if rel, _ := svc.RelationBetween(ctx, a.ID, b.ID); rel != domain.RelationPending {
		t.Fatalf("expected pending, got %s", rel)
	}
	if rel, _ := svc.RelationBetween(ctx, b.ID, a.ID); rel != domain.RelationRequested {
		t.Fatalf("expected requested, got %s", rel)
	}

	// Accepting from the wrong side is a no-op.
	accepted, _, err := svc.AcceptFriendRequest(ctx, a.ID, b.ID)
	if err != nil || accepted {
		t.Fatalf("sender cannot accept own request: %v %v", accepted, err)
	}

	accepted, _, err = svc.AcceptFriendRequest(ctx, b.ID, a.ID)
	if err != nil || !accepted {
		t.Fatalf("accept: %v %v", accepted, err)
	}
	a, _ = svc.GetProfile(ctx, a.ID)
	b, _ = svc.GetProfile(ctx, b.ID)
	if !a.IsFriend(b.ID) || !b.IsFriend(a.ID) {
		t.Fatalf("friendship must be symmetric: a=%v b=%v", a.Friends, b.Friends)
	}
	if len(a.PendingRequests)+len(a.FriendRequests)+len(b.PendingRequests)+len(b.FriendRequests) != 0 {
		t.Fatalf("request bookkeeping should be cleared: a=%+v b=%+v", a, b)
	}

	// A second accept without a new request changes nothing.
	accepted, _, err = svc.AcceptFriendRequest(ctx, b.ID, a.ID)
	if err != nil || accepted {
		t.Fatalf("repeat accept should be a no-op: %v %v", accepted, err)
	}
	b, _ = svc.GetProfile(ctx, b.ID)
	if len(b.Friends) != 1 {
		t.Fatalf("friend list changed: %v", b.Friends)
	}
}

func TestUnrequestFriend(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, b := twoProfiles(t, svc)
	if _, err := svc.RequestFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.UnrequestFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("unrequest: %v", err)
	}
	if rel, _ := svc.RelationBetween(ctx, a.ID, b.ID); rel != domain.RelationUnrelated {
		t.Fatalf("expected unrelated, got %s", rel)
	}
	if accepted, _, _ := svc.AcceptFriendRequest(ctx, b.ID, a.ID); accepted {
		t.Fatalf("withdrawn request must not be accepted")
	}
	if _, err := svc.RequestFriend(ctx, a.ID, a.ID); !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("expected self request error, got %v", err)
	}
	var nf ErrNotFound
	if _, err := svc.RequestFriend(ctx, a.ID, "ghost"); !errors.As(err, &nf) || nf.ID != "ghost" {
		t.Fatalf("expected not found for ghost, got %v", err)
	}
}

func TestPairOperationsRejectSameProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, b := twoProfiles(t, svc)
	if _, err := svc.RequestFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.UnrequestFriend(ctx, a.ID, a.ID); !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("unrequest self: expected ErrSelfRequest, got %v", err)
	}
	if accepted, _, err := svc.AcceptFriendRequest(ctx, a.ID, a.ID); accepted || !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("accept self: expected ErrSelfRequest, got %v %v", accepted, err)
	}
	a, _ = svc.GetProfile(ctx, a.ID)
	if len(a.PendingRequests) != 1 || a.PendingRequests[0] != b.ID || len(a.Friends) != 0 {
		t.Fatalf("self operations must not touch the profile: %+v", a)
	}
}

func befriend(t *testing.T, svc *Service, a, b domain.Profile) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.RequestFriend(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if ok, _, err := svc.AcceptFriendRequest(ctx, b.ID, a.ID); err != nil || !ok {
		t.Fatalf("accept: %v %v", ok, err)
	}
}

func TestAcceptFromExistingFriend(t *testing.T) {
	t.Run("default records duplicate and warns", func(t *testing.T) {
		logger := &captureLogger{}
		svc := newTestService(t, WithLogger(logger))
		a, b := twoProfiles(t, svc)
		befriend(t, svc, a, b)
		befriend(t, svc, a, b)
		got, _ := svc.GetProfile(context.Background(), b.ID)
		if len(got.Friends) != 2 {
			t.Fatalf("expected duplicated friend entry, got %v", got.Friends)
		}
		found := false
		for _, w := range logger.warns {
			if w == "accepting request from existing friend" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected warning, got %v", logger.warns)
		}
	})
	t.Run("strict rejects", func(t *testing.T) {
		svc := newTestService(t, WithStrictFriendship(true))
		a, b := twoProfiles(t, svc)
		befriend(t, svc, a, b)
		ctx := context.Background()
		if _, err := svc.RequestFriend(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("request: %v", err)
		}
		_, _, err := svc.AcceptFriendRequest(ctx, b.ID, a.ID)
		if !errors.Is(err, ErrAlreadyFriends) || !IsStage(err, StageApply) {
			t.Fatalf("expected ErrAlreadyFriends, got %v", err)
		}
		got, _ := svc.GetProfile(ctx, b.ID)
		if len(got.Friends) != 1 || len(got.FriendRequests) != 1 {
			t.Fatalf("rejected accept must not change state: %+v", got)
		}
	})
}

func TestUpdateProfileKeepsFriendLists(t *testing.T) {
	svc := newTestService(t)
	a, b := twoProfiles(t, svc)
	befriend(t, svc, a, b)
	updated, _, err := svc.UpdateProfile(context.Background(), a.ID, func(p *domain.Profile) error {
		p.FirstName = "Ann"
		p.Friends = nil
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != "Ann" || len(updated.Friends) != 1 {
		t.Fatalf("friend list must survive profile edits: %+v", updated)
	}
	if _, _, err := svc.UpdateProfile(context.Background(), a.ID, func(p *domain.Profile) error {
		p.Username = "ben"
		return nil
	}); err == nil {
		t.Fatalf("expected username clash")
	}
}

func TestDeleteProfileScrubsFriends(t *testing.T) {
	svc := newTestService(t)
	a, b := twoProfiles(t, svc)
	befriend(t, svc, a, b)
	if _, err := svc.DeleteProfile(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := svc.GetProfile(context.Background(), b.ID)
	if len(got.Friends) != 0 {
		t.Fatalf("deleted profile still listed: %v", got.Friends)
	}
}
