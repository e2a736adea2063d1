// Package firestore provides a Cloud Firestore backed persistent store. Like
// the SQL backends it runs transactions against the in-memory store; after
// each commit it writes one document per changed entity under
// <collection>/<bucket>/items/<id>.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultCollection holds the bucket documents.
const DefaultCollection = "plantkeeper_state"

// itemsCollection is the subcollection holding one document per entity.
const itemsCollection = "items"

// MaxPayloadBytes bounds one encoded entity. Firestore rejects documents above
// 1 MiB; the remainder covers the document name and field overhead.
const MaxPayloadBytes = 1<<20 - 16<<10

// ErrDocumentTooLarge is returned when an entity cannot fit in one document.
// The transaction that produced it is not committed.
var ErrDocumentTooLarge = errors.New("entity exceeds firestore document limit")

// Config describes how to reach Firestore.
type Config struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
}

// Store persists entities to a Firestore collection.
type Store struct {
	*memory.Store
	client     *gfs.Client
	collection string

	mu sync.Mutex
	// pending holds keys whose last write failed; they are retried with the
	// next commit.
	pending map[docKey]struct{}
}

type docKey struct {
	bucket string
	id     string
}

// entityDoc is the stored document shape; payload holds the entity as JSON.
type entityDoc struct {
	Payload string `firestore:"payload"`
}

// NewStore dials Firestore and hydrates the memory store from existing documents.
func NewStore(ctx context.Context, cfg Config, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gfs.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewStoreWithClient(ctx, client, cfg.Collection, engine, opts...)
}

// NewStoreWithClient wraps an existing client, e.g. one created from a Firebase app.
func NewStoreWithClient(ctx context.Context, client *gfs.Client, collection string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	s := &Store{
		Store:      memory.NewStore(engine, opts...),
		client:     client,
		collection: collection,
		pending:    make(map[docKey]struct{}),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) items(bucket string) *gfs.CollectionRef {
	return s.client.Collection(s.collection).Doc(bucket).Collection(itemsCollection)
}

func (s *Store) load(ctx context.Context) error {
	var (
		snapshot memory.Snapshot
		found    bool
	)
	for _, bucket := range memory.Buckets {
		iter := s.items(bucket).Documents(ctx)
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return fmt.Errorf("list %s: %w", bucket, err)
			}
			var ed entityDoc
			if err := doc.DataTo(&ed); err != nil {
				iter.Stop()
				return fmt.Errorf("decode %s/%s document: %w", bucket, doc.Ref.ID, err)
			}
			if err := decodeEntity(&snapshot, bucket, ed); err != nil {
				iter.Stop()
				return err
			}
			found = true
		}
		iter.Stop()
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func bucketFor(entity domain.EntityType) (string, bool) {
	switch entity {
	case domain.EntityPlant:
		return "plants", true
	case domain.EntityRoom:
		return "rooms", true
	case domain.EntityProfile:
		return "profiles", true
	default:
		return "", false
	}
}

func entityID(v any) string {
	switch e := v.(type) {
	case domain.Plant:
		return e.ID
	case domain.Room:
		return e.ID
	case domain.Profile:
		return e.ID
	default:
		return ""
	}
}

// changedKeys lists the documents touched by changes, deduplicated and sorted.
func changedKeys(changes []domain.Change) []docKey {
	seen := make(map[docKey]struct{}, len(changes))
	for _, c := range changes {
		bucket, ok := bucketFor(c.Entity)
		if !ok {
			continue
		}
		for _, v := range []any{c.Before, c.After} {
			if id := entityID(v); id != "" {
				seen[docKey{bucket: bucket, id: id}] = struct{}{}
			}
		}
	}
	keys := make([]docKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bucket != keys[j].bucket {
			return keys[i].bucket < keys[j].bucket
		}
		return keys[i].id < keys[j].id
	})
	return keys
}

func encodeEntity(v any) (entityDoc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return entityDoc{}, fmt.Errorf("encode entity: %w", err)
	}
	return entityDoc{Payload: string(data)}, nil
}

// checkDocumentSizes rejects changes whose resulting entity would not fit in
// a single document.
func checkDocumentSizes(changes []domain.Change) error {
	for _, c := range changes {
		if c.After == nil {
			continue
		}
		ed, err := encodeEntity(c.After)
		if err != nil {
			return err
		}
		if len(ed.Payload) > MaxPayloadBytes {
			return fmt.Errorf("%w: %s %s is %d bytes", ErrDocumentTooLarge, c.Entity, entityID(c.After), len(ed.Payload))
		}
	}
	return nil
}

func decodeEntity(snapshot *memory.Snapshot, bucket string, ed entityDoc) error {
	if ed.Payload == "" {
		return nil
	}
	raw := []byte(ed.Payload)
	switch bucket {
	case "plants":
		var p domain.Plant
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode plant: %w", err)
		}
		if snapshot.Plants == nil {
			snapshot.Plants = make(map[string]domain.Plant)
		}
		snapshot.Plants[p.ID] = p
	case "rooms":
		var r domain.Room
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("decode room: %w", err)
		}
		if snapshot.Rooms == nil {
			snapshot.Rooms = make(map[string]domain.Room)
		}
		snapshot.Rooms[r.ID] = r
	case "profiles":
		var p domain.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		if snapshot.Profiles == nil {
			snapshot.Profiles = make(map[string]domain.Profile)
		}
		snapshot.Profiles[p.ID] = p
	}
	return nil
}

// current returns the committed entity for key, or nil when it was deleted.
func (s *Store) current(key docKey) any {
	switch key.bucket {
	case "plants":
		if p, ok := s.GetPlant(key.id); ok {
			return p
		}
	case "rooms":
		if r, ok := s.GetRoom(key.id); ok {
			return r
		}
	case "profiles":
		if p, ok := s.GetProfile(key.id); ok {
			return p
		}
	}
	return nil
}

func (s *Store) persist(ctx context.Context, changed []docKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range changed {
		s.pending[k] = struct{}{}
	}
	keys := make([]docKey, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	docs := make(map[docKey]*entityDoc, len(keys))
	for _, k := range keys {
		v := s.current(k)
		if v == nil {
			docs[k] = nil
			continue
		}
		ed, err := encodeEntity(v)
		if err != nil {
			return err
		}
		docs[k] = &ed
	}
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *gfs.Transaction) error {
		for k, ed := range docs {
			ref := s.items(k.bucket).Doc(k.id)
			var err error
			if ed == nil {
				err = tx.Delete(ref)
			} else {
				err = tx.Set(ref, *ed)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.pending, k)
	}
	return nil
}

// RunInTransaction applies fn and writes the changed entities to Firestore on
// success. Oversized entities fail the transaction before it commits.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	var changes []domain.Change
	res, err := s.Store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		if err := checkDocumentSizes(changes); err != nil {
			return domain.PersistError{Backend: "firestore", Err: err}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx, changedKeys(changes)); err != nil {
		return res, domain.PersistError{Backend: "firestore", Err: err}
	}
	return res, nil
}

// Close closes the Firestore client.
func (s *Store) Close() error { return s.client.Close() }
