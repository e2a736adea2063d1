package core

import (
	"context"
	"time"

	"plantkeeper/pkg/domain"
	"plantkeeper/pkg/schedule"
)

// CreatePlant persists a new plant. The acting user becomes primary owner when
// none is set and the watering history is stamped with the compiled owner id.
func (s *Service) CreatePlant(ctx context.Context, plant domain.Plant) (domain.Plant, domain.Result, error) {
	var created domain.Plant
	res, err := s.run(ctx, "create_plant", domain.EntityPlant, func(tx domain.Transaction) (string, error) {
		if plant.PrimaryOwnerID == "" {
			plant.PrimaryOwnerID = ActorFromContext(ctx)
		}
		plant.SyncCompiledOwner()
		var err error
		created, err = tx.CreatePlant(plant)
		return created.ID, err
	})
	return created, res, err
}

// UpdatePlant mutates a plant using the provided mutator. Owner changes made by
// the mutator are propagated to the watering history in the same unit of work.
func (s *Service) UpdatePlant(ctx context.Context, id string, mutator func(*domain.Plant) error) (domain.Plant, domain.Result, error) {
	return s.mutatePlant(ctx, "update_plant", id, mutator)
}

// DeletePlant removes a plant, detaching it from its room first.
func (s *Service) DeletePlant(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_plant", domain.EntityPlant, func(tx domain.Transaction) (string, error) {
		plant, ok := tx.FindPlant(id)
		if !ok {
			return id, ErrNotFound{Entity: domain.EntityPlant, ID: id}
		}
		for _, room := range tx.Snapshot().ListRooms() {
			if !room.ContainsPlant(id) {
				continue
			}
			if _, err := tx.UpdateRoom(room.ID, func(r *domain.Room) error {
				domain.RemoveRoomPlant(r, &plant, true)
				return nil
			}); err != nil {
				return id, err
			}
		}
		return id, tx.DeletePlant(id)
	})
}

// GetPlant returns a committed plant.
func (s *Service) GetPlant(ctx context.Context, id string) (domain.Plant, error) {
	var plant domain.Plant
	err := s.observe(ctx, "get_plant", func(context.Context) error {
		var ok bool
		plant, ok = s.store.GetPlant(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityPlant, ID: id}
		}
		return nil
	})
	return plant, err
}

// QueryPlants returns committed plants matching pred, ordered by id. A nil
// predicate matches everything.
func (s *Service) QueryPlants(ctx context.Context, pred func(domain.Plant) bool) ([]domain.Plant, error) {
	var out []domain.Plant
	err := s.observe(ctx, "query_plants", func(ctx context.Context) error {
		return s.store.View(ctx, func(view domain.TransactionView) error {
			for _, p := range view.ListPlants() {
				if pred == nil || pred(p) {
					out = append(out, p)
				}
			}
			return nil
		})
	})
	return out, err
}

// PlantsOwnedBy matches plants where userID is primary or secondary owner.
func PlantsOwnedBy(userID string) func(domain.Plant) bool {
	return func(p domain.Plant) bool { return domain.IsOwner(&p, userID) }
}

// FavoritePlants matches plants flagged as favorite.
func FavoritePlants(p domain.Plant) bool { return p.IsFavorite }

// WaterPlant appends a watering event performed by the acting user. A zero
// date means now.
func (s *Service) WaterPlant(ctx context.Context, plantID string, date time.Time, comment string) (domain.WateringEvent, domain.Result, error) {
	var event domain.WateringEvent
	actor := ActorFromContext(ctx)
	if date.IsZero() {
		date = s.opts.now()
	}
	res, err := s.run(ctx, "water_plant", domain.EntityPlant, func(tx domain.Transaction) (string, error) {
		if actor == "" {
			return plantID, ErrNoActor
		}
		if _, ok := tx.FindPlant(plantID); !ok {
			return plantID, ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
		}
		eventID := tx.NewID()
		_, err := tx.UpdatePlant(plantID, func(p *domain.Plant) error {
			event = p.Water(eventID, date, comment, actor)
			return nil
		})
		return plantID, err
	})
	return event, res, err
}

// TogglePlantFavorite flips the favorite flag.
func (s *Service) TogglePlantFavorite(ctx context.Context, plantID string) (domain.Plant, domain.Result, error) {
	return s.mutatePlant(ctx, "toggle_plant_favorite", plantID, func(p *domain.Plant) error {
		p.ToggleFavorite()
		return nil
	})
}

// AddPlantOwners appends secondary owners. Plants keep duplicates.
func (s *Service) AddPlantOwners(ctx context.Context, plantID string, ownerIDs ...string) (domain.Plant, domain.Result, error) {
	return s.mutatePlant(ctx, "add_plant_owners", plantID, func(p *domain.Plant) error {
		domain.AddOwners(p, ownerIDs...)
		return nil
	})
}

// RemovePlantOwner drops the first occurrence of ownerID from the secondary owners.
func (s *Service) RemovePlantOwner(ctx context.Context, plantID, ownerID string) (domain.Plant, domain.Result, error) {
	return s.mutatePlant(ctx, "remove_plant_owner", plantID, func(p *domain.Plant) error {
		domain.RemoveOwner(p, ownerID)
		return nil
	})
}

// TransferPlantOwnership makes newOwnerID primary and demotes the previous primary.
func (s *Service) TransferPlantOwnership(ctx context.Context, plantID, newOwnerID string) (domain.Plant, domain.Result, error) {
	return s.mutatePlant(ctx, "transfer_plant_ownership", plantID, func(p *domain.Plant) error {
		domain.TransferOwnership(p, newOwnerID)
		return nil
	})
}

func (s *Service) mutatePlant(ctx context.Context, op, id string, mutator func(*domain.Plant) error) (domain.Plant, domain.Result, error) {
	var updated domain.Plant
	res, err := s.run(ctx, op, domain.EntityPlant, func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindPlant(id); !ok {
			return id, ErrNotFound{Entity: domain.EntityPlant, ID: id}
		}
		var err error
		updated, err = tx.UpdatePlant(id, func(p *domain.Plant) error {
			if err := mutator(p); err != nil {
				return err
			}
			if n := p.SyncCompiledOwner(); n > 0 {
				s.logger.Debug("compiled owner propagated", "plant_id", id, "events", n)
			}
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// PlantSchedule returns the watering dates of one plant within forMonth.
func (s *Service) PlantSchedule(ctx context.Context, plantID string, forMonth time.Time) ([]schedule.Node, error) {
	var nodes []schedule.Node
	err := s.observe(ctx, "plant_schedule", func(context.Context) error {
		plant, ok := s.store.GetPlant(plantID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
		}
		var err error
		nodes, err = s.calc.WateringSchedule(plant, forMonth)
		return err
	})
	return nodes, err
}

// PlantScheduleRange returns watering dates in [from, to) for week and day views.
func (s *Service) PlantScheduleRange(ctx context.Context, plantID string, from, to time.Time) ([]schedule.Node, error) {
	var nodes []schedule.Node
	err := s.observe(ctx, "plant_schedule_range", func(context.Context) error {
		plant, ok := s.store.GetPlant(plantID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
		}
		var err error
		nodes, err = s.calc.WateringScheduleRange(plant, from, to)
		return err
	})
	return nodes, err
}

// PlantStatus classifies the plant's watering state for the day containing at.
func (s *Service) PlantStatus(ctx context.Context, plantID string, at time.Time) (schedule.Status, error) {
	var status schedule.Status
	err := s.observe(ctx, "plant_status", func(context.Context) error {
		plant, ok := s.store.GetPlant(plantID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
		}
		status = s.calc.WateringStatus(plant, at)
		return nil
	})
	return status, err
}

// MonthSchedule merges the schedules of every plant userID owns. Plants with
// an invalid interval are left out and reported in the joined error alongside
// the nodes that could be computed.
func (s *Service) MonthSchedule(ctx context.Context, userID string, forMonth time.Time) ([]schedule.Node, error) {
	plants, err := s.QueryPlants(ctx, PlantsOwnedBy(userID))
	if err != nil {
		return nil, err
	}
	var nodes []schedule.Node
	err = s.observe(ctx, "month_schedule", func(context.Context) error {
		var err error
		nodes, err = s.calc.MonthSchedule(plants, forMonth)
		return err
	})
	return nodes, err
}
