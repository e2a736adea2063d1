package core

import (
	"context"

	"plantkeeper/pkg/domain"
)

// CreateRoom persists a new room owned by the acting user unless a primary
// owner is given.
func (s *Service) CreateRoom(ctx context.Context, room domain.Room) (domain.Room, domain.Result, error) {
	var created domain.Room
	res, err := s.run(ctx, "create_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		if room.PrimaryOwnerID == "" {
			room.PrimaryOwnerID = ActorFromContext(ctx)
		}
		for _, plantID := range room.PlantIDs {
			if _, ok := tx.FindPlant(plantID); !ok {
				return room.ID, ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
			}
		}
		var err error
		created, err = tx.CreateRoom(room)
		if err != nil {
			return room.ID, err
		}
		for _, plantID := range created.PlantIDs {
			if _, err := tx.UpdatePlant(plantID, func(p *domain.Plant) error {
				id := created.ID
				p.RoomID = &id
				p.RoomName = created.Name
				return nil
			}); err != nil {
				return created.ID, err
			}
		}
		return created.ID, nil
	})
	return created, res, err
}

// UpdateRoom mutates a room using the provided mutator. Renames are copied to
// the room name cached on member plants.
func (s *Service) UpdateRoom(ctx context.Context, id string, mutator func(*domain.Room) error) (domain.Room, domain.Result, error) {
	var updated domain.Room
	res, err := s.run(ctx, "update_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		before, ok := tx.FindRoom(id)
		if !ok {
			return id, ErrNotFound{Entity: domain.EntityRoom, ID: id}
		}
		var err error
		updated, err = tx.UpdateRoom(id, mutator)
		if err != nil || updated.Name == before.Name {
			return id, err
		}
		for _, plantID := range updated.PlantIDs {
			if _, err := tx.UpdatePlant(plantID, func(p *domain.Plant) error {
				p.RoomName = updated.Name
				return nil
			}); err != nil {
				return id, err
			}
		}
		return id, nil
	})
	return updated, res, err
}

// DeleteRoom removes a room and clears the back-reference on its plants.
func (s *Service) DeleteRoom(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindRoom(id); !ok {
			return id, ErrNotFound{Entity: domain.EntityRoom, ID: id}
		}
		return id, tx.DeleteRoom(id)
	})
}

// GetRoom returns a committed room.
func (s *Service) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	var room domain.Room
	err := s.observe(ctx, "get_room", func(context.Context) error {
		var ok bool
		room, ok = s.store.GetRoom(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityRoom, ID: id}
		}
		return nil
	})
	return room, err
}

// QueryRooms returns committed rooms matching pred, ordered by id.
func (s *Service) QueryRooms(ctx context.Context, pred func(domain.Room) bool) ([]domain.Room, error) {
	var out []domain.Room
	err := s.observe(ctx, "query_rooms", func(ctx context.Context) error {
		return s.store.View(ctx, func(view domain.TransactionView) error {
			for _, r := range view.ListRooms() {
				if pred == nil || pred(r) {
					out = append(out, r)
				}
			}
			return nil
		})
	})
	return out, err
}

// RoomsOwnedBy matches rooms where userID is primary or secondary owner.
func RoomsOwnedBy(userID string) func(domain.Room) bool {
	return func(r domain.Room) bool { return domain.IsOwner(&r, userID) }
}

// AddRoomOwners adds secondary owners, skipping ids already present.
func (s *Service) AddRoomOwners(ctx context.Context, roomID string, ownerIDs ...string) (domain.Room, domain.Result, error) {
	return s.mutateRoomOwners(ctx, "add_room_owners", roomID, func(r *domain.Room) {
		domain.AddOwners(r, ownerIDs...)
	})
}

// RemoveRoomOwner drops ownerID from the secondary owners.
func (s *Service) RemoveRoomOwner(ctx context.Context, roomID, ownerID string) (domain.Room, domain.Result, error) {
	return s.mutateRoomOwners(ctx, "remove_room_owner", roomID, func(r *domain.Room) {
		domain.RemoveOwner(r, ownerID)
	})
}

// TransferRoomOwnership makes newOwnerID primary and demotes the previous primary.
func (s *Service) TransferRoomOwnership(ctx context.Context, roomID, newOwnerID string) (domain.Room, domain.Result, error) {
	return s.mutateRoomOwners(ctx, "transfer_room_ownership", roomID, func(r *domain.Room) {
		domain.TransferOwnership(r, newOwnerID)
	})
}

func (s *Service) mutateRoomOwners(ctx context.Context, op, roomID string, mutate func(*domain.Room)) (domain.Room, domain.Result, error) {
	var updated domain.Room
	res, err := s.run(ctx, op, domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindRoom(roomID); !ok {
			return roomID, ErrNotFound{Entity: domain.EntityRoom, ID: roomID}
		}
		var err error
		updated, err = tx.UpdateRoom(roomID, func(r *domain.Room) error {
			mutate(r)
			return nil
		})
		return roomID, err
	})
	return updated, res, err
}

// TogglePlantInRoom adds the plant to the room, moving it out of any other
// room, or removes it when already listed. It reports whether the plant ended
// up in the room.
func (s *Service) TogglePlantInRoom(ctx context.Context, roomID, plantID string) (bool, domain.Result, error) {
	var added bool
	res, err := s.run(ctx, "toggle_plant_in_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		room, ok := tx.FindRoom(roomID)
		if !ok {
			return roomID, ErrNotFound{Entity: domain.EntityRoom, ID: roomID}
		}
		plant, ok := tx.FindPlant(plantID)
		if !ok {
			return roomID, ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
		}
		prior := priorRoom(tx, plant, roomID)
		added = domain.ToggleRoomPlant(&room, &plant, prior)

		if _, err := tx.UpdateRoom(room.ID, func(r *domain.Room) error {
			r.PlantIDs = room.PlantIDs
			return nil
		}); err != nil {
			return roomID, err
		}
		if prior != nil {
			if _, err := tx.UpdateRoom(prior.ID, func(r *domain.Room) error {
				r.PlantIDs = prior.PlantIDs
				return nil
			}); err != nil {
				return roomID, err
			}
		}
		_, err := tx.UpdatePlant(plant.ID, func(p *domain.Plant) error {
			p.RoomID = plant.RoomID
			p.RoomName = plant.RoomName
			return nil
		})
		return roomID, err
	})
	return added, res, err
}

// priorRoom finds the room currently holding plant, other than roomID.
func priorRoom(tx domain.Transaction, plant domain.Plant, roomID string) *domain.Room {
	if plant.RoomID != nil && *plant.RoomID != roomID {
		if r, ok := tx.FindRoom(*plant.RoomID); ok && r.ContainsPlant(plant.ID) {
			return &r
		}
	}
	for _, r := range tx.Snapshot().ListRooms() {
		if r.ID != roomID && r.ContainsPlant(plant.ID) {
			r := r
			return &r
		}
	}
	return nil
}
