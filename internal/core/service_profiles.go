package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plantkeeper/pkg/domain"
)

var (
	// ErrSelfRequest is returned when a friend operation names the same profile on both sides.
	ErrSelfRequest = errors.New("friend operation requires two different profiles")
	// ErrUsernameTaken is returned when another profile already uses the username.
	ErrUsernameTaken = errors.New("username already taken")
)

// CreateProfile persists a profile for the acting user. Usernames are unique
// ignoring case.
func (s *Service) CreateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, domain.Result, error) {
	var created domain.Profile
	res, err := s.run(ctx, "create_profile", domain.EntityProfile, func(tx domain.Transaction) (string, error) {
		if profile.OwnerID == "" {
			profile.OwnerID = ActorFromContext(ctx)
		}
		if profile.DateJoined.IsZero() {
			profile.DateJoined = s.opts.now()
		}
		if err := usernameFree(tx.Snapshot(), profile.Username, ""); err != nil {
			return profile.ID, err
		}
		var err error
		created, err = tx.CreateProfile(profile)
		return created.ID, err
	})
	return created, res, err
}

// UpdateProfile mutates a profile using the provided mutator. Friend lists are
// managed through the request operations and cannot be edited here.
func (s *Service) UpdateProfile(ctx context.Context, id string, mutator func(*domain.Profile) error) (domain.Profile, domain.Result, error) {
	var updated domain.Profile
	res, err := s.run(ctx, "update_profile", domain.EntityProfile, func(tx domain.Transaction) (string, error) {
		current, ok := tx.FindProfile(id)
		if !ok {
			return id, ErrNotFound{Entity: domain.EntityProfile, ID: id}
		}
		var err error
		updated, err = tx.UpdateProfile(id, func(p *domain.Profile) error {
			if err := mutator(p); err != nil {
				return err
			}
			p.PendingRequests = current.PendingRequests
			p.FriendRequests = current.FriendRequests
			p.Friends = current.Friends
			return nil
		})
		if err != nil {
			return id, err
		}
		return id, usernameFree(tx.Snapshot(), updated.Username, id)
	})
	return updated, res, err
}

// DeleteProfile removes a profile and scrubs it from other profiles' lists.
func (s *Service) DeleteProfile(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_profile", domain.EntityProfile, func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindProfile(id); !ok {
			return id, ErrNotFound{Entity: domain.EntityProfile, ID: id}
		}
		return id, tx.DeleteProfile(id)
	})
}

// GetProfile returns a committed profile.
func (s *Service) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var profile domain.Profile
	err := s.observe(ctx, "get_profile", func(context.Context) error {
		var ok bool
		profile, ok = s.store.GetProfile(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityProfile, ID: id}
		}
		return nil
	})
	return profile, err
}

// QueryProfiles returns committed profiles matching pred, ordered by id.
func (s *Service) QueryProfiles(ctx context.Context, pred func(domain.Profile) bool) ([]domain.Profile, error) {
	var out []domain.Profile
	err := s.observe(ctx, "query_profiles", func(ctx context.Context) error {
		return s.store.View(ctx, func(view domain.TransactionView) error {
			for _, p := range view.ListProfiles() {
				if pred == nil || pred(p) {
					out = append(out, p)
				}
			}
			return nil
		})
	})
	return out, err
}

// ProfilesOwnedBy matches the profiles of an authenticated user.
func ProfilesOwnedBy(userID string) func(domain.Profile) bool {
	return func(p domain.Profile) bool { return p.OwnerID == userID }
}

// PublicProfiles matches discoverable profiles.
func PublicProfiles(p domain.Profile) bool { return p.Publicity == domain.PublicityPublic }

// RequestFriend records a friend request from one profile to another.
func (s *Service) RequestFriend(ctx context.Context, fromID, toID string) (domain.Result, error) {
	return s.pairProfiles(ctx, "request_friend", fromID, toID, func(from, to *domain.Profile) (bool, error) {
		domain.RequestFriend(from, to)
		return true, nil
	})
}

// UnrequestFriend withdraws a request previously sent by fromID.
func (s *Service) UnrequestFriend(ctx context.Context, fromID, toID string) (domain.Result, error) {
	return s.pairProfiles(ctx, "unrequest_friend", fromID, toID, func(from, to *domain.Profile) (bool, error) {
		domain.UnrequestFriend(from, to)
		return true, nil
	})
}

// AcceptFriendRequest makes selfID and requesterID friends when selfID holds a
// request from requesterID. Both profiles are written in one unit of work. It
// reports false without error when there is no request to accept.
func (s *Service) AcceptFriendRequest(ctx context.Context, selfID, requesterID string) (bool, domain.Result, error) {
	var accepted bool
	res, err := s.pairProfiles(ctx, "accept_friend_request", selfID, requesterID, func(self, requester *domain.Profile) (bool, error) {
		if self.IsFriend(requester.ID) {
			if s.strict {
				return false, ErrAlreadyFriends
			}
			s.logger.Warn("accepting request from existing friend", "profile_id", self.ID, "requester_id", requester.ID)
		}
		accepted = domain.AcceptFriendRequest(self, requester)
		return accepted, nil
	})
	return accepted, res, err
}

// RelationBetween classifies the relationship of fromID towards toID.
func (s *Service) RelationBetween(ctx context.Context, fromID, toID string) (domain.RelationState, error) {
	from, err := s.GetProfile(ctx, fromID)
	if err != nil {
		return "", err
	}
	to, err := s.GetProfile(ctx, toID)
	if err != nil {
		return "", err
	}
	return domain.Relation(&from, &to), nil
}

// pairProfiles loads two distinct profiles, applies fn and writes both back
// when fn reports a change. Identical ids fail with ErrSelfRequest.
func (s *Service) pairProfiles(ctx context.Context, op, aID, bID string, fn func(a, b *domain.Profile) (bool, error)) (domain.Result, error) {
	return s.run(ctx, op, domain.EntityProfile, func(tx domain.Transaction) (string, error) {
		if aID == bID {
			return aID, ErrSelfRequest
		}
		a, ok := tx.FindProfile(aID)
		if !ok {
			return aID, ErrNotFound{Entity: domain.EntityProfile, ID: aID}
		}
		b, ok := tx.FindProfile(bID)
		if !ok {
			return aID, ErrNotFound{Entity: domain.EntityProfile, ID: bID}
		}
		changed, err := fn(&a, &b)
		if err != nil || !changed {
			return aID, err
		}
		for _, p := range []domain.Profile{a, b} {
			p := p
			if _, err := tx.UpdateProfile(p.ID, func(dst *domain.Profile) error {
				dst.PendingRequests = p.PendingRequests
				dst.FriendRequests = p.FriendRequests
				dst.Friends = p.Friends
				return nil
			}); err != nil {
				return aID, err
			}
		}
		return aID, nil
	})
}

func usernameFree(view domain.TransactionView, username, selfID string) error {
	if username == "" {
		return nil
	}
	for _, p := range view.ListProfiles() {
		if p.ID != selfID && strings.EqualFold(p.Username, username) {
			return fmt.Errorf("%w: %q", ErrUsernameTaken, username)
		}
	}
	return nil
}
