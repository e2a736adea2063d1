package core

import "plantkeeper/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewWateringIntervalRule())
	engine.Register(NewRoomMembershipRule())
	engine.Register(NewCompiledOwnerRule())
	engine.Register(NewFriendshipSymmetryRule())
	return engine
}

// changedPlants returns the post-change state of plants created or updated in changes.
func changedPlants(changes []domain.Change) []domain.Plant {
	var out []domain.Plant
	for _, c := range changes {
		if c.Entity != domain.EntityPlant || c.Action == domain.ActionDelete {
			continue
		}
		if p, ok := c.After.(domain.Plant); ok {
			out = append(out, p)
		}
	}
	return out
}
