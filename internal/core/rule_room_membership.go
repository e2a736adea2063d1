package core

import (
	"context"
	"fmt"

	"plantkeeper/pkg/domain"
)

// NewRoomMembershipRule keeps room plant lists and plant back-references in
// agreement: a plant sits in at most one room and points at that room.
func NewRoomMembershipRule() domain.Rule {
	return roomMembershipRule{}
}

type roomMembershipRule struct{}

func (roomMembershipRule) Name() string { return "room_membership" }

func (r roomMembershipRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(entity domain.EntityType, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}

	member := make(map[string]string)
	for _, room := range view.ListRooms() {
		for _, plantID := range room.PlantIDs {
			if prev, ok := member[plantID]; ok {
				block(domain.EntityPlant, plantID, fmt.Sprintf("plant %s listed in rooms %s and %s", plantID, prev, room.ID))
				continue
			}
			member[plantID] = room.ID
			if _, ok := view.FindPlant(plantID); !ok {
				block(domain.EntityRoom, room.ID, fmt.Sprintf("room %s references missing plant %s", room.ID, plantID))
			}
		}
	}

	for _, plant := range view.ListPlants() {
		roomID, listed := member[plant.ID]
		switch {
		case plant.RoomID == nil && listed:
			block(domain.EntityPlant, plant.ID, fmt.Sprintf("plant %s listed in room %s without back-reference", plant.ID, roomID))
		case plant.RoomID != nil && !listed:
			block(domain.EntityPlant, plant.ID, fmt.Sprintf("plant %s references room %s that does not list it", plant.ID, *plant.RoomID))
		case plant.RoomID != nil && *plant.RoomID != roomID:
			block(domain.EntityPlant, plant.ID, fmt.Sprintf("plant %s references room %s but is listed in %s", plant.ID, *plant.RoomID, roomID))
		}
	}
	return res, nil
}
