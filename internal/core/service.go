package core

import (
	"context"
	"time"

	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/pkg/domain"
	"plantkeeper/pkg/schedule"
)

// Service is the data access facade. Every mutation runs as one unit of work
// against the persistent store and is traced, measured and audited.
type Service struct {
	store   domain.PersistentStore
	opts    serviceOptions
	logger  Logger
	calc    *schedule.Calculator
	subs    *SubscriptionRegistry
	strict  bool
	archive ImageArchive
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	calc := o.calculator
	if calc == nil {
		calc = schedule.New(schedule.WithClock(o.now))
	}
	return &Service{
		store:   store,
		opts:    o,
		logger:  o.logger,
		calc:    calc,
		subs:    NewSubscriptionRegistry(o.logger, o.subscriberBuffer),
		strict:  o.strictFriendship,
		archive: o.images,
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Subscriptions exposes the subscription registry fed by committed changes.
func (s *Service) Subscriptions() *SubscriptionRegistry {
	return s.subs
}

// Calculator returns the schedule calculator used by the service.
func (s *Service) Calculator() *schedule.Calculator {
	return s.calc
}

// Close releases the underlying store.
func (s *Service) Close() error {
	s.subs.Close()
	return s.store.Close()
}

// run executes fn as one unit of work. fn returns the id of the primary entity
// it touched, which is recorded in the audit trail. Changes are published to
// subscriptions only after a successful commit.
func (s *Service) run(ctx context.Context, op string, entity domain.EntityType, fn func(tx domain.Transaction) (string, error)) (domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, op)
	started := time.Now()

	var (
		entityID string
		changes  []domain.Change
	)
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		if err != nil {
			return applyError{err: err}
		}
		changes = tx.Changes()
		return nil
	})
	err = classifyCommitError(op, err)
	elapsed := time.Since(started)

	s.opts.metrics.Observe(ctx, op, err == nil, elapsed)
	entry := AuditEntry{
		Operation:  op,
		Entity:     string(entity),
		EntityID:   entityID,
		Actor:      ActorFromContext(ctx),
		Status:     AuditStatusSuccess,
		Duration:   elapsed,
		OccurredAt: s.opts.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.opts.audit.Record(ctx, entry)
	span.End(err)

	if err != nil {
		s.logger.Error("transaction failed", "operation", op, "entity_id", entityID, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "message", v.Message)
	}
	s.logger.Debug("transaction committed", "operation", op, "entity_id", entityID, "changes", len(changes))
	s.subs.Publish(changes)
	return res, nil
}

// observe wraps read-only operations with the same tracing and metrics.
func (s *Service) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.opts.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	s.opts.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	return err
}

type actorKey struct{}

// WithActor returns a context carrying the authenticated user id.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the user id stored by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
