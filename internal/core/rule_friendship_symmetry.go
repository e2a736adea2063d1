package core

import (
	"context"
	"fmt"

	"plantkeeper/pkg/domain"
)

// NewFriendshipSymmetryRule warns about one-sided friend entries and duplicate
// friends. It never blocks: existing data written before strict mode may
// legitimately carry duplicates.
func NewFriendshipSymmetryRule() domain.Rule {
	return friendshipSymmetryRule{}
}

type friendshipSymmetryRule struct{}

func (friendshipSymmetryRule) Name() string { return "friendship_symmetry" }

func (r friendshipSymmetryRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		if c.Entity != domain.EntityProfile || c.Action == domain.ActionDelete {
			continue
		}
		p, ok := c.After.(domain.Profile)
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(p.Friends))
		for _, friendID := range p.Friends {
			if seen[friendID] {
				res.Violations = append(res.Violations, r.warn(p.ID, fmt.Sprintf("profile %s lists friend %s more than once", p.ID, friendID)))
				continue
			}
			seen[friendID] = true
			friend, ok := view.FindProfile(friendID)
			if !ok {
				continue
			}
			if !friend.IsFriend(p.ID) {
				res.Violations = append(res.Violations, r.warn(p.ID, fmt.Sprintf("profile %s lists %s as friend but not the reverse", p.ID, friendID)))
			}
		}
	}
	return res, nil
}

func (r friendshipSymmetryRule) warn(id, msg string) domain.Violation {
	return domain.Violation{Rule: r.Name(), Severity: domain.SeverityWarn, Message: msg, Entity: domain.EntityProfile, EntityID: id}
}
