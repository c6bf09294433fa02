package authflow

import (
	"errors"

	internalaudit "github.com/bookline/authflow/internal/audit"
	"github.com/bookline/authflow/internal/sched"
	"github.com/bookline/authflow/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Construction is allocation-only; no I/O
// happens until the first Engine operation.
type Builder struct {
	config      Config
	redis       *redis.Client
	persistence session.Persistence
	client      Client
	auditSink   AuditSink
	clock       sched.Clock

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis wires a Redis client as the durable session persistence.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithPersistence wires a custom session persistence boundary. Takes
// precedence over WithRedis.
func (b *Builder) WithPersistence(p session.Persistence) *Builder {
	b.persistence = p
	return b
}

// WithClient wires the remote API boundary. Required.
func (b *Builder) WithClient(c Client) *Builder {
	b.client = c
	return b
}

// WithAuditSink wires the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces the wall clock, primarily for tests.
func (b *Builder) WithClock(clock sched.Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the wiring and returns a ready Engine. A Builder may
// only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.client == nil {
		return nil, errors.New("remote API client required")
	}

	persistence := b.persistence
	if persistence == nil && b.redis != nil {
		persistence = session.NewRedisPersistence(b.redis, cfg.Session.RedisPrefix)
	}

	clock := b.clock
	if clock == nil {
		clock = sched.RealClock{}
	}

	b.built = true

	metrics := NewMetrics(cfg.Metrics)

	return &Engine{
		config:   cfg,
		client:   b.client,
		sessions: session.NewStore(persistence),
		clock:    clock,
		metrics:  metrics,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			OnDrop:     func() { metrics.Inc(MetricAuditDropped) },
		}, b.auditSink),
	}, nil
}
