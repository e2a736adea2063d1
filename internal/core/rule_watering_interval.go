package core

import (
	"context"
	"fmt"

	"plantkeeper/pkg/domain"
)

// NewWateringIntervalRule blocks plants that cannot be scheduled: a
// non-positive interval or an amount outside 1..5. Amount 0 means unset.
func NewWateringIntervalRule() domain.Rule {
	return wateringIntervalRule{}
}

type wateringIntervalRule struct{}

func (wateringIntervalRule) Name() string { return "watering_interval" }

func (r wateringIntervalRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, plant := range changedPlants(changes) {
		if plant.WateringInterval <= 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("plant %s (%s) watering interval must be positive, got %s", plant.Name, plant.ID, plant.WateringInterval),
				Entity:   domain.EntityPlant,
				EntityID: plant.ID,
			})
		}
		if plant.WateringAmount != 0 && !plant.WateringAmount.Valid() {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("plant %s (%s) watering amount %d outside 1..5", plant.Name, plant.ID, plant.WateringAmount),
				Entity:   domain.EntityPlant,
				EntityID: plant.ID,
			})
		}
	}
	return res, nil
}
