// Package memory provides an in-memory implementation of the persistence
// store used for tests, ephemeral environments, and as the transactional core
// of the snapshotting backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plantkeeper/pkg/domain"
)

// Compile-time contract assertion ensuring Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Plant aliases domain.Plant for in-memory persistence operations.
	Plant = domain.Plant
	// Room aliases domain.Room.
	Room = domain.Room
	// Profile aliases domain.Profile.
	Profile = domain.Profile
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	plants   map[string]Plant
	rooms    map[string]Room
	profiles map[string]Profile
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Plants   map[string]Plant   `json:"plants"`
	Rooms    map[string]Room    `json:"rooms"`
	Profiles map[string]Profile `json:"profiles"`
}

// Buckets lists the snapshot sections in the order durable backends persist them.
var Buckets = []string{"plants", "rooms", "profiles"}

// Section returns the snapshot section for bucket as a JSON-serialisable value.
func (s Snapshot) Section(bucket string) (any, error) {
	switch bucket {
	case "plants":
		return s.Plants, nil
	case "rooms":
		return s.Rooms, nil
	case "profiles":
		return s.Profiles, nil
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
}

// SectionTarget returns a pointer suitable for decoding bucket into s.
func (s *Snapshot) SectionTarget(bucket string) (any, bool) {
	switch bucket {
	case "plants":
		return &s.Plants, true
	case "rooms":
		return &s.Rooms, true
	case "profiles":
		return &s.Profiles, true
	default:
		return nil, false
	}
}

func newMemoryState() memoryState {
	return memoryState{
		plants:   make(map[string]Plant),
		rooms:    make(map[string]Room),
		profiles: make(map[string]Profile),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.plants {
		cloned.plants[k] = clonePlant(v)
	}
	for k, v := range s.rooms {
		cloned.rooms[k] = cloneRoom(v)
	}
	for k, v := range s.profiles {
		cloned.profiles[k] = cloneProfile(v)
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Plants: cloned.plants, Rooms: cloned.rooms, Profiles: cloned.profiles}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Plants {
		state.plants[k] = normalizePlant(clonePlant(v))
	}
	for k, v := range s.Rooms {
		state.rooms[k] = normalizeRoom(cloneRoom(v))
	}
	for k, v := range s.Profiles {
		state.profiles[k] = normalizeProfile(cloneProfile(v))
	}
	return state
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	return append([]byte(nil), in...)
}

func clonePlant(p Plant) Plant {
	cp := p
	cp.SecondaryOwners = cloneStrings(p.SecondaryOwners)
	cp.CoverImage = cloneBytes(p.CoverImage)
	if p.WateringHistory != nil {
		cp.WateringHistory = append([]domain.WateringEvent(nil), p.WateringHistory...)
	}
	if p.RoomID != nil {
		id := *p.RoomID
		cp.RoomID = &id
	}
	return cp
}

func cloneRoom(r Room) Room {
	cp := r
	cp.SecondaryOwners = cloneStrings(r.SecondaryOwners)
	cp.PlantIDs = cloneStrings(r.PlantIDs)
	return cp
}

func cloneProfile(p Profile) Profile {
	cp := p
	cp.ProfileImage = cloneBytes(p.ProfileImage)
	cp.PendingRequests = cloneStrings(p.PendingRequests)
	cp.FriendRequests = cloneStrings(p.FriendRequests)
	cp.Friends = cloneStrings(p.Friends)
	if p.Birthday != nil {
		b := *p.Birthday
		cp.Birthday = &b
	}
	return cp
}

// Slices are normalised to empty rather than nil so snapshots serialise as [].
func normalizePlant(p Plant) Plant {
	if p.SecondaryOwners == nil {
		p.SecondaryOwners = []string{}
	}
	if p.WateringHistory == nil {
		p.WateringHistory = []domain.WateringEvent{}
	}
	return p
}

func normalizeRoom(r Room) Room {
	if r.SecondaryOwners == nil {
		r.SecondaryOwners = []string{}
	}
	if r.PlantIDs == nil {
		r.PlantIDs = []string{}
	}
	return r
}

func normalizeProfile(p Profile) Profile {
	if p.Publicity == "" {
		p.Publicity = domain.PublicityPrivate
	}
	if p.PendingRequests == nil {
		p.PendingRequests = []string{}
	}
	if p.FriendRequests == nil {
		p.FriendRequests = []string{}
	}
	if p.Friends == nil {
		p.Friends = []string{}
	}
	return p
}

// Store provides an in-memory transactional store for the domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy snapshot of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the current state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc exposes the timestamp source.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v transactionView) ListPlants() []Plant {
	out := make([]Plant, 0, len(v.state.plants))
	for _, k := range sortedKeys(v.state.plants) {
		out = append(out, clonePlant(v.state.plants[k]))
	}
	return out
}

func (v transactionView) ListRooms() []Room {
	out := make([]Room, 0, len(v.state.rooms))
	for _, k := range sortedKeys(v.state.rooms) {
		out = append(out, cloneRoom(v.state.rooms[k]))
	}
	return out
}

func (v transactionView) ListProfiles() []Profile {
	out := make([]Profile, 0, len(v.state.profiles))
	for _, k := range sortedKeys(v.state.profiles) {
		out = append(out, cloneProfile(v.state.profiles[k]))
	}
	return out
}

func (v transactionView) FindPlant(id string) (Plant, bool) {
	p, ok := v.state.plants[id]
	if !ok {
		return Plant{}, false
	}
	return clonePlant(p), true
}

func (v transactionView) FindRoom(id string) (Room, bool) {
	r, ok := v.state.rooms[id]
	if !ok {
		return Room{}, false
	}
	return cloneRoom(r), true
}

func (v transactionView) FindProfile(id string) (Profile, bool) {
	p, ok := v.state.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return cloneProfile(p), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule
// violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Changes returns the change records captured so far.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// NewID issues an identifier from the store's generator.
func (tx *transaction) NewID() string {
	return tx.store.idFn()
}

// FindPlant exposes plant lookup within the transaction scope.
func (tx *transaction) FindPlant(id string) (Plant, bool) {
	return transactionView{state: &tx.state}.FindPlant(id)
}

// FindRoom exposes room lookup within the transaction scope.
func (tx *transaction) FindRoom(id string) (Room, bool) {
	return transactionView{state: &tx.state}.FindRoom(id)
}

// FindProfile exposes profile lookup within the transaction scope.
func (tx *transaction) FindProfile(id string) (Profile, bool) {
	return transactionView{state: &tx.state}.FindProfile(id)
}

// CreatePlant stores a new plant within the transaction.
func (tx *transaction) CreatePlant(p Plant) (Plant, error) {
	if p.ID == "" {
		p.ID = tx.NewID()
	}
	if _, exists := tx.state.plants[p.ID]; exists {
		return Plant{}, fmt.Errorf("plant %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	p = normalizePlant(clonePlant(p))
	tx.state.plants[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionCreate, After: clonePlant(p)})
	return clonePlant(p), nil
}

// UpdatePlant mutates a plant using the provided mutator function.
func (tx *transaction) UpdatePlant(id string, mutator func(*Plant) error) (Plant, error) {
	current, ok := tx.state.plants[id]
	if !ok {
		return Plant{}, fmt.Errorf("plant %q not found", id)
	}
	before := clonePlant(current)
	current = clonePlant(current)
	if err := mutator(&current); err != nil {
		return Plant{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	current = normalizePlant(current)
	tx.state.plants[id] = clonePlant(current)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionUpdate, Before: before, After: clonePlant(current)})
	return clonePlant(current), nil
}

// DeletePlant removes a plant from the transaction state.
func (tx *transaction) DeletePlant(id string) error {
	current, ok := tx.state.plants[id]
	if !ok {
		return fmt.Errorf("plant %q not found", id)
	}
	for _, room := range tx.state.rooms {
		if room.ContainsPlant(id) {
			return fmt.Errorf("plant %q still referenced by room %q", id, room.ID)
		}
	}
	delete(tx.state.plants, id)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionDelete, Before: clonePlant(current)})
	return nil
}

// CreateRoom stores a new room.
func (tx *transaction) CreateRoom(r Room) (Room, error) {
	if r.ID == "" {
		r.ID = tx.NewID()
	}
	if _, exists := tx.state.rooms[r.ID]; exists {
		return Room{}, fmt.Errorf("room %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r = normalizeRoom(cloneRoom(r))
	tx.state.rooms[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRoom, Action: domain.ActionCreate, After: cloneRoom(r)})
	return cloneRoom(r), nil
}

// UpdateRoom mutates a room.
func (tx *transaction) UpdateRoom(id string, mutator func(*Room) error) (Room, error) {
	current, ok := tx.state.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("room %q not found", id)
	}
	before := cloneRoom(current)
	current = cloneRoom(current)
	if err := mutator(&current); err != nil {
		return Room{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	current = normalizeRoom(current)
	tx.state.rooms[id] = cloneRoom(current)
	tx.recordChange(Change{Entity: domain.EntityRoom, Action: domain.ActionUpdate, Before: before, After: cloneRoom(current)})
	return cloneRoom(current), nil
}

// DeleteRoom removes a room. Plants keep existing; their back-references are
// cleared in the same transaction.
func (tx *transaction) DeleteRoom(id string) error {
	current, ok := tx.state.rooms[id]
	if !ok {
		return fmt.Errorf("room %q not found", id)
	}
	for _, plantID := range current.PlantIDs {
		if _, exists := tx.state.plants[plantID]; !exists {
			continue
		}
		if _, err := tx.UpdatePlant(plantID, func(p *Plant) error {
			if p.RoomID != nil && *p.RoomID == id {
				p.RoomID = nil
				p.RoomName = ""
			}
			return nil
		}); err != nil {
			return err
		}
	}
	delete(tx.state.rooms, id)
	tx.recordChange(Change{Entity: domain.EntityRoom, Action: domain.ActionDelete, Before: cloneRoom(current)})
	return nil
}

// CreateProfile stores a new profile.
func (tx *transaction) CreateProfile(p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = tx.NewID()
	}
	if _, exists := tx.state.profiles[p.ID]; exists {
		return Profile{}, fmt.Errorf("profile %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	if p.DateJoined.IsZero() {
		p.DateJoined = tx.now
	}
	p = normalizeProfile(cloneProfile(p))
	tx.state.profiles[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProfile, Action: domain.ActionCreate, After: cloneProfile(p)})
	return cloneProfile(p), nil
}

// UpdateProfile mutates a profile.
func (tx *transaction) UpdateProfile(id string, mutator func(*Profile) error) (Profile, error) {
	current, ok := tx.state.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", id)
	}
	before := cloneProfile(current)
	current = cloneProfile(current)
	if err := mutator(&current); err != nil {
		return Profile{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	current = normalizeProfile(current)
	tx.state.profiles[id] = cloneProfile(current)
	tx.recordChange(Change{Entity: domain.EntityProfile, Action: domain.ActionUpdate, Before: before, After: cloneProfile(current)})
	return cloneProfile(current), nil
}

// DeleteProfile removes a profile and scrubs its id from other profiles'
// request and friend lists.
func (tx *transaction) DeleteProfile(id string) error {
	current, ok := tx.state.profiles[id]
	if !ok {
		return fmt.Errorf("profile %q not found", id)
	}
	delete(tx.state.profiles, id)
	for _, k := range sortedKeys(tx.state.profiles) {
		other := tx.state.profiles[k]
		if !references(other, id) {
			continue
		}
		if _, err := tx.UpdateProfile(k, func(p *Profile) error {
			p.PendingRequests = without(p.PendingRequests, id)
			p.FriendRequests = without(p.FriendRequests, id)
			p.Friends = without(p.Friends, id)
			return nil
		}); err != nil {
			return err
		}
	}
	tx.recordChange(Change{Entity: domain.EntityProfile, Action: domain.ActionDelete, Before: cloneProfile(current)})
	return nil
}

func references(p Profile, id string) bool {
	for _, list := range [][]string{p.PendingRequests, p.FriendRequests, p.Friends} {
		for _, v := range list {
			if v == id {
				return true
			}
		}
	}
	return false
}

func without(values []string, id string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// GetPlant returns a plant by id from the committed state.
func (s *Store) GetPlant(id string) (Plant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindPlant(id)
}

// ListPlants returns all committed plants ordered by id.
func (s *Store) ListPlants() []Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListPlants()
}

// GetRoom returns a room by id.
func (s *Store) GetRoom(id string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindRoom(id)
}

// ListRooms returns all committed rooms ordered by id.
func (s *Store) ListRooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListRooms()
}

// GetProfile returns a profile by id.
func (s *Store) GetProfile(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindProfile(id)
}

// ListProfiles returns all committed profiles ordered by id.
func (s *Store) ListProfiles() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListProfiles()
}
