package palgraph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/policypal/palgraph/internal/nodes"
	"github.com/policypal/palgraph/pkg/adapters/memory"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
	"github.com/policypal/palgraph/pkg/ports"
	"github.com/policypal/palgraph/pkg/session"
)

// Version is the release version, overridden at build time via ldflags.
var Version = "0.1.0-dev"

// Engine is the high-level entry point for the library. It wires the default
// pipeline (intent resolution, document resolution, input validation, the
// four action executors, response formatting) around a snapshot store and
// exposes the run, resume, and history operations.
type Engine struct {
	executor *graph.Executor
	sessions *session.Manager

	classifier ports.Classifier
	entities   ports.EntityStore
	retriever  ports.Retriever
	web        ports.WebSearcher
	store      ports.SnapshotStore
	locker     ports.ThreadLocker
	lockTTL    time.Duration
	logger     *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithStore sets the snapshot store. Defaults to an in-memory store.
func WithStore(store ports.SnapshotStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithLocker sets a distributed thread locker for multi-process deployments.
func WithLocker(locker ports.ThreadLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLockTTL bounds how long a crashed process can hold a thread lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.lockTTL = ttl }
}

// WithEntities sets the document lookup backend. Defaults to an empty
// in-memory store.
func WithEntities(entities ports.EntityStore) Option {
	return func(e *Engine) { e.entities = entities }
}

// WithRetriever sets the passage retrieval backend. Defaults to an empty
// in-memory retriever.
func WithRetriever(retriever ports.Retriever) Option {
	return func(e *Engine) { e.retriever = retriever }
}

// WithWebSearcher sets the web search backend. Without one, turns that ask
// for web results proceed on document context alone.
func WithWebSearcher(web ports.WebSearcher) Option {
	return func(e *Engine) { e.web = web }
}

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds an Engine around the given classifier. The classifier is the
// one capability with no in-memory default; everything else falls back to
// local implementations suitable for tests and single-process use.
func New(classifier ports.Classifier, opts ...Option) (*Engine, error) {
	if classifier == nil {
		return nil, errors.New("palgraph: classifier is required")
	}

	e := &Engine{classifier: classifier}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.entities == nil {
		e.entities = memory.NewEntityStore()
	}
	if e.retriever == nil {
		e.retriever = memory.NewRetriever()
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	deps := nodes.Deps{
		Classifier: e.classifier,
		Entities:   e.entities,
		Retriever:  e.retriever,
		Web:        e.web,
		Logger:     e.logger,
	}
	executor, err := graph.NewExecutor(e.sessions, []graph.Node{
		nodes.NewIntentResolver(deps),
		nodes.NewDocResolver(deps),
		nodes.NewValidateInputs(deps),
		nodes.NewSummarize(deps),
		nodes.NewInquire(deps),
		nodes.NewCompare(deps),
		nodes.NewAudit(deps),
		nodes.NewFormatResponse(deps),
	}, graph.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.executor = executor
	return e, nil
}

// Run starts a new turn on the thread and streams its events. The channel
// closes when the turn completes, suspends, or fails.
func (e *Engine) Run(ctx context.Context, threadID string, input graph.RunInput) (<-chan domain.Event, error) {
	return e.executor.Run(ctx, threadID, input)
}

// Resume answers the thread's pending suspension and streams the rest of the
// turn. Returns domain.ErrNoPendingSuspension when nothing is pending and
// domain.ErrThreadNotFound for an unknown thread, both before any event is
// emitted.
func (e *Engine) Resume(ctx context.Context, threadID string, resume domain.Resume) (<-chan domain.Event, error) {
	return e.executor.Resume(ctx, threadID, resume)
}

// History returns the thread's persisted state.
func (e *Engine) History(ctx context.Context, threadID string) (*domain.State, error) {
	return e.executor.History(ctx, threadID)
}

// Sessions exposes the thread manager for transports that need listing or
// deletion.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
