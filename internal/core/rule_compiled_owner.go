package core

import (
	"context"
	"fmt"

	"plantkeeper/pkg/domain"
)

// NewCompiledOwnerRule blocks commits that leave a plant's watering history
// stamped with a stale compiled owner id.
func NewCompiledOwnerRule() domain.Rule {
	return compiledOwnerRule{}
}

type compiledOwnerRule struct{}

func (compiledOwnerRule) Name() string { return "compiled_owner_consistency" }

func (r compiledOwnerRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, plant := range changedPlants(changes) {
		if plant.HistoryInSync() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("plant %s watering history does not carry compiled owner %q", plant.ID, domain.CompileOwnerID(&plant)),
			Entity:   domain.EntityPlant,
			EntityID: plant.ID,
		})
	}
	return res, nil
}
