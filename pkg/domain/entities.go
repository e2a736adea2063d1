// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by plantkeeper.
package domain

import "time"

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPlant identifies a plant record.
	EntityPlant EntityType = "plant"
	// EntityRoom identifies a room record.
	EntityRoom EntityType = "room"
	// EntityProfile identifies a user profile record.
	EntityProfile EntityType = "profile"
)

// Publicity controls whether a profile is discoverable by other users.
type Publicity string

// Profile publicity values.
const (
	PublicityPublic  Publicity = "public"
	PublicityPrivate Publicity = "private"
)

// Severity captures rule outcomes.
type Severity string

// Rule severities.
const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityLog   Severity = "log"
)

// Base contains common fields for persisted entities.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WateringAmount is an ordinal from 1 (light) to 5 (heavy).
type WateringAmount int

// Valid reports whether the amount lies within the supported ordinal range.
func (a WateringAmount) Valid() bool { return a >= 1 && a <= 5 }

// StatusFrequencies holds the intervals at which secondary plant checks are due.
type StatusFrequencies struct {
	Sunlight time.Duration `json:"sunlight,omitempty"`
	Humidity time.Duration `json:"humidity,omitempty"`
	Growth   time.Duration `json:"growth,omitempty"`
}

// WateringEvent is a single entry in a plant's watering history.
type WateringEvent struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	Comment         string    `json:"comment,omitempty"`
	WateredBy       string    `json:"watered_by"`
	CompiledOwnerID string    `json:"compiled_owner_id"`
}

// Plant is a tracked houseplant.
type Plant struct {
	Base
	Ownership
	Name                 string            `json:"name"`
	RoomName             string            `json:"room_name,omitempty"`
	Notes                string            `json:"notes,omitempty"`
	CoverImage           []byte            `json:"cover_image,omitempty"`
	WateringInterval     time.Duration     `json:"watering_interval"`
	WateringAmount       WateringAmount    `json:"watering_amount"`
	WateringInstructions string            `json:"watering_instructions,omitempty"`
	StatusFrequencies    StatusFrequencies `json:"status_frequencies"`
	DateLastWatered      time.Time         `json:"date_last_watered"`
	IsFavorite           bool              `json:"is_favorite"`
	WateringHistory      []WateringEvent   `json:"watering_history"`
	RoomID               *string           `json:"room_id,omitempty"`
}

// Room groups plants and shares them with a set of owners.
type Room struct {
	Base
	Ownership
	Name     string   `json:"name"`
	Notes    string   `json:"notes,omitempty"`
	PlantIDs []string `json:"plant_ids"`
}

// Profile is the public face of an authenticated user.
type Profile struct {
	Base
	OwnerID         string     `json:"owner_id"`
	Publicity       Publicity  `json:"publicity"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Username        string     `json:"username"`
	Email           string     `json:"email,omitempty"`
	PhoneNumber     string     `json:"phone_number,omitempty"`
	Birthday        *time.Time `json:"birthday,omitempty"`
	ProfileImage    []byte     `json:"profile_image,omitempty"`
	DateJoined      time.Time  `json:"date_joined"`
	PendingRequests []string   `json:"pending_requests"`
	FriendRequests  []string   `json:"friend_requests"`
	Friends         []string   `json:"friends"`
}

// FullName joins the first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType `json:"entity"`
	Action Action     `json:"action"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// PersistError reports that state could not be written to the durable backend.
type PersistError struct {
	Backend string
	Err     error
}

func (e PersistError) Error() string {
	return e.Backend + " persist: " + e.Err.Error()
}

func (e PersistError) Unwrap() error { return e.Err }
