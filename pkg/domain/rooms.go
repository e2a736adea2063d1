package domain

// ContainsPlant reports whether the room lists plantID.
func (r *Room) ContainsPlant(plantID string) bool {
	return indexOf(r.PlantIDs, plantID) >= 0
}

// RemoveRoomPlant drops plant from room. When clearBackRef is false the plant's
// room reference is left untouched, which callers use while moving a plant
// between rooms.
func RemoveRoomPlant(room *Room, plant *Plant, clearBackRef bool) {
	room.PlantIDs = removeFirst(room.PlantIDs, plant.ID)
	if clearBackRef && plant.RoomID != nil && *plant.RoomID == room.ID {
		plant.RoomID = nil
		plant.RoomName = ""
	}
}

// ToggleRoomPlant adds plant to room, or removes it when it is already listed.
// prior is the room the plant currently belongs to, if any; it is detached
// first so a plant never sits in two rooms. It reports whether the plant ended
// up in the room.
func ToggleRoomPlant(room *Room, plant *Plant, prior *Room) bool {
	if room.ContainsPlant(plant.ID) {
		RemoveRoomPlant(room, plant, true)
		return false
	}
	if prior != nil && prior.ID != room.ID {
		RemoveRoomPlant(prior, plant, false)
	}
	id := room.ID
	plant.RoomID = &id
	plant.RoomName = room.Name
	room.PlantIDs = append(room.PlantIDs, plant.ID)
	return true
}
