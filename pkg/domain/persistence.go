package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Changes() []Change
	NewID() string
	CreatePlant(Plant) (Plant, error)
	UpdatePlant(id string, mutator func(*Plant) error) (Plant, error)
	DeletePlant(id string) error
	CreateRoom(Room) (Room, error)
	UpdateRoom(id string, mutator func(*Room) error) (Room, error)
	DeleteRoom(id string) error
	CreateProfile(Profile) (Profile, error)
	UpdateProfile(id string, mutator func(*Profile) error) (Profile, error)
	DeleteProfile(id string) error
	FindPlant(id string) (Plant, bool)
	FindRoom(id string) (Room, bool)
	FindProfile(id string) (Profile, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	RuleView
}

// PersistentStore abstracts durable backends. Every mutation runs inside
// RunInTransaction; the store commits only when fn and the rules engine both
// succeed.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPlant(id string) (Plant, bool)
	ListPlants() []Plant
	GetRoom(id string) (Room, bool)
	ListRooms() []Room
	GetProfile(id string) (Profile, bool)
	ListProfiles() []Profile
	Close() error
}
