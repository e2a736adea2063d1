package http

import (
	"time"

	"plantkeeper/internal/core"
	"plantkeeper/pkg/domain"
	"plantkeeper/pkg/schedule"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

type plantResponse struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	RoomID               string                 `json:"room_id,omitempty"`
	RoomName             string                 `json:"room_name,omitempty"`
	Notes                string                 `json:"notes,omitempty"`
	PrimaryOwnerID       string                 `json:"primary_owner_id"`
	SecondaryOwners      []string               `json:"secondary_owners"`
	CompiledOwnerID      string                 `json:"compiled_owner_id"`
	WateringIntervalDays float64                `json:"watering_interval_days"`
	WateringAmount       int                    `json:"watering_amount"`
	WateringInstructions string                 `json:"watering_instructions,omitempty"`
	DateLastWatered      time.Time              `json:"date_last_watered"`
	IsFavorite           bool                   `json:"is_favorite"`
	HasCover             bool                   `json:"has_cover"`
	WateringHistory      []domain.WateringEvent `json:"watering_history"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

func plantToAPI(p domain.Plant) plantResponse {
	out := plantResponse{
		ID:                   p.ID,
		Name:                 p.Name,
		RoomName:             p.RoomName,
		Notes:                p.Notes,
		PrimaryOwnerID:       p.PrimaryOwnerID,
		SecondaryOwners:      append([]string{}, p.SecondaryOwners...),
		CompiledOwnerID:      domain.CompileOwnerID(&p),
		WateringIntervalDays: p.WateringInterval.Hours() / 24,
		WateringAmount:       int(p.WateringAmount),
		WateringInstructions: p.WateringInstructions,
		DateLastWatered:      p.DateLastWatered,
		IsFavorite:           p.IsFavorite,
		HasCover:             len(p.CoverImage) > 0,
		WateringHistory:      append([]domain.WateringEvent{}, p.WateringHistory...),
		UpdatedAt:            p.UpdatedAt,
	}
	if p.RoomID != nil {
		out.RoomID = *p.RoomID
	}
	return out
}

func plantsToAPI(plants []domain.Plant) []plantResponse {
	out := make([]plantResponse, 0, len(plants))
	for _, p := range plants {
		out = append(out, plantToAPI(p))
	}
	return out
}

type roomResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Notes           string   `json:"notes,omitempty"`
	PrimaryOwnerID  string   `json:"primary_owner_id"`
	SecondaryOwners []string `json:"secondary_owners"`
	PlantIDs        []string `json:"plant_ids"`
}

func roomToAPI(r domain.Room) roomResponse {
	return roomResponse{
		ID:              r.ID,
		Name:            r.Name,
		Notes:           r.Notes,
		PrimaryOwnerID:  r.PrimaryOwnerID,
		SecondaryOwners: append([]string{}, r.SecondaryOwners...),
		PlantIDs:        append([]string{}, r.PlantIDs...),
	}
}

func roomsToAPI(rooms []domain.Room) []roomResponse {
	out := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomToAPI(r))
	}
	return out
}

type profileResponse struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	Username        string           `json:"username"`
	Publicity       domain.Publicity `json:"publicity"`
	FullName        string           `json:"full_name,omitempty"`
	Email           string           `json:"email,omitempty"`
	PhoneNumber     string           `json:"phone_number,omitempty"`
	Birthday        *time.Time       `json:"birthday,omitempty"`
	HasImage        bool             `json:"has_image"`
	DateJoined      time.Time        `json:"date_joined"`
	PendingRequests []string         `json:"pending_requests,omitempty"`
	FriendRequests  []string         `json:"friend_requests,omitempty"`
	Friends         []string         `json:"friends"`
}

// profileToAPI hides contact details and request lists from anyone but the
// profile's owner.
func profileToAPI(p domain.Profile, viewer string) profileResponse {
	out := profileResponse{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Username:   p.Username,
		Publicity:  p.Publicity,
		FullName:   p.FullName(),
		HasImage:   len(p.ProfileImage) > 0,
		DateJoined: p.DateJoined,
		Friends:    append([]string{}, p.Friends...),
	}
	if viewer == p.OwnerID {
		out.Email = p.Email
		out.PhoneNumber = p.PhoneNumber
		out.Birthday = p.Birthday
		out.PendingRequests = append([]string{}, p.PendingRequests...)
		out.FriendRequests = append([]string{}, p.FriendRequests...)
	}
	return out
}

type nodeResponse struct {
	Date      string `json:"date"`
	PlantID   string `json:"plant_id"`
	PlantName string `json:"plant_name"`
}

func nodesToAPI(nodes []schedule.Node) []nodeResponse {
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeResponse{Date: n.Date.Format(dayLayout), PlantID: n.PlantID, PlantName: n.Plant.Name})
	}
	return out
}

type violationResponse struct {
	Rule     string            `json:"rule"`
	Severity domain.Severity   `json:"severity"`
	Message  string            `json:"message"`
	Entity   domain.EntityType `json:"entity,omitempty"`
	EntityID string            `json:"entity_id,omitempty"`
}

func violationsToAPI(vs []domain.Violation) []violationResponse {
	out := make([]violationResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, violationResponse{Rule: v.Rule, Severity: v.Severity, Message: v.Message, Entity: v.Entity, EntityID: v.EntityID})
	}
	return out
}

type eventResponse struct {
	Subscription string            `json:"subscription"`
	Entity       domain.EntityType `json:"entity"`
	Action       domain.Action     `json:"action"`
	Before       any               `json:"before,omitempty"`
	After        any               `json:"after,omitempty"`
}

func eventToAPI(ev core.Event, viewer string) eventResponse {
	return eventResponse{
		Subscription: ev.Subscription,
		Entity:       ev.Change.Entity,
		Action:       ev.Change.Action,
		Before:       entityToAPI(ev.Change.Before, viewer),
		After:        entityToAPI(ev.Change.After, viewer),
	}
}

func entityToAPI(v any, viewer string) any {
	switch e := v.(type) {
	case domain.Plant:
		return plantToAPI(e)
	case domain.Room:
		return roomToAPI(e)
	case domain.Profile:
		return profileToAPI(e, viewer)
	default:
		return nil
	}
}
