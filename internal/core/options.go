package core

import (
	"context"
	"time"

	"plantkeeper/pkg/schedule"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus is the outcome recorded for an operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation.
type AuditEntry struct {
	Operation  string        `json:"operation"`
	Entity     string        `json:"entity"`
	EntityID   string        `json:"entity_id,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	Status     AuditStatus   `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AuditRecorder receives an entry for every service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans for service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// LoggerAuditRecorder writes audit entries through a Logger.
type LoggerAuditRecorder struct {
	logger Logger
}

// NewLoggerAuditRecorder constructs an audit recorder that logs each entry.
func NewLoggerAuditRecorder(logger Logger) *LoggerAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoggerAuditRecorder{logger: logger}
}

// Record logs the entry at info level, or warn level for failures.
func (r *LoggerAuditRecorder) Record(_ context.Context, e AuditEntry) {
	args := []any{"operation", e.Operation, "entity", e.Entity, "entity_id", e.EntityID, "actor", e.Actor, "duration", e.Duration}
	if e.Status == AuditStatusError {
		r.logger.Warn("audit", append(args, "error", e.Error)...)
		return
	}
	r.logger.Info("audit", args...)
}

type serviceOptions struct {
	logger           Logger
	audit            AuditRecorder
	metrics          MetricsRecorder
	tracer           Tracer
	now              func() time.Time
	calculator       *schedule.Calculator
	images           ImageArchive
	strictFriendship bool
	subscriberBuffer int
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:           noopLogger{},
		audit:            noopAudit{},
		metrics:          noopMetrics{},
		tracer:           noopTracer{},
		now:              func() time.Time { return time.Now().UTC() },
		subscriberBuffer: 32,
	}
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock overrides the service clock used for default watering dates and
// schedule status.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithScheduleCalculator injects a preconfigured calculator.
func WithScheduleCalculator(calc *schedule.Calculator) Option {
	return func(o *serviceOptions) {
		o.calculator = calc
	}
}

// WithImageArchive mirrors encoded images to blob storage.
func WithImageArchive(archive ImageArchive) Option {
	return func(o *serviceOptions) {
		o.images = archive
	}
}

// WithStrictFriendship rejects accepting a request from an existing friend
// with ErrAlreadyFriends instead of recording a second friend entry.
func WithStrictFriendship(strict bool) Option {
	return func(o *serviceOptions) {
		o.strictFriendship = strict
	}
}

// WithSubscriberBuffer sets the channel capacity of subscription listeners.
func WithSubscriberBuffer(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.subscriberBuffer = n
		}
	}
}
