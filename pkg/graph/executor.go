package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/policypal/palgraph/internal/logging"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/observability"
	"github.com/policypal/palgraph/pkg/session"
)

// statusMessages is what the transport shows while each node runs.
var statusMessages = map[string]string{
	NodeIntentResolver: "Understanding your request...",
	NodeDocResolver:    "Finding the right documents...",
	NodeValidateInputs: "Checking required inputs...",
	NodeSummarize:      "Summarizing your documents...",
	NodeInquire:        "Searching your documents...",
	NodeCompare:        "Comparing your documents...",
	NodeAudit:          "Auditing your text...",
	NodeFormatResponse: "Preparing the response...",
}

// RunInput carries one user turn into the pipeline.
type RunInput struct {
	UserID          string
	Content         string
	RichText        json.RawMessage
	Action          domain.Action // empty lets the intent resolver classify
	EnableWebSearch bool
	SetID           string
	ExplicitDocIDs  []string
}

// Executor runs the fixed pipeline for a thread, persists a snapshot after
// every node, and implements suspend and resume. At most one run (first call
// or resume) is active per thread at a time; the session manager serializes
// them.
type Executor struct {
	sessions *session.Manager
	nodes    map[string]Node
	logger   *slog.Logger
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor wires the given nodes into an executor. Every route target
// must be present: missing nodes fail construction, not a live run.
func NewExecutor(sessions *session.Manager, nodes []Node, opts ...Option) (*Executor, error) {
	e := &Executor{
		sessions: sessions,
		nodes:    make(map[string]Node, len(nodes)),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, n := range nodes {
		if _, dup := e.nodes[n.Name()]; dup {
			return nil, fmt.Errorf("duplicate node %q", n.Name())
		}
		e.nodes[n.Name()] = n
	}
	for name := range statusMessages {
		if _, ok := e.nodes[name]; !ok {
			return nil, fmt.Errorf("missing node %q", name)
		}
	}
	return e, nil
}

// Run starts a new turn for the thread and streams events until the run
// suspends, completes, or fails. A pending suspension from an earlier turn
// is discarded: a fresh user message supersedes the stale prompt.
func (e *Executor) Run(ctx context.Context, threadID string, input RunInput) (<-chan domain.Event, error) {
	events := make(chan domain.Event, 16)
	go func() {
		defer close(events)
		err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
			state, err := e.loadOrStart(ctx, threadID, input.UserID)
			if err != nil {
				return err
			}

			state.ResetTurn()
			state.UserID = input.UserID
			state.RichText = input.RichText
			state.Action = input.Action
			state.EnableWebSearch = input.EnableWebSearch
			state.SetID = input.SetID
			state.ExplicitDocIDs = append([]string(nil), input.ExplicitDocIDs...)
			state.AppendMessage(domain.NewMessage(domain.RoleUser, input.Content))

			return e.drive(ctx, threadID, state, StartNode, events)
		})
		if err != nil {
			e.fail(ctx, threadID, err, events)
		}
	}()
	return events, nil
}

// Resume answers the thread's pending suspension and streams events with the
// same terminal contract as Run. Fails with domain.ErrNoPendingSuspension,
// before any state mutation, if nothing is pending.
func (e *Executor) Resume(ctx context.Context, threadID string, resume domain.Resume) (<-chan domain.Event, error) {
	// Fail fast before streaming begins so the transport can reject with a
	// client error instead of an in-stream event.
	state, err := e.sessions.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if state.Pending == nil {
		return nil, domain.ErrNoPendingSuspension
	}

	events := make(chan domain.Event, 16)
	go func() {
		defer close(events)
		err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
			state, err := e.sessions.Store().Get(ctx, threadID)
			if err != nil {
				return err
			}
			// Re-check under the run lock: a concurrent resume may have
			// consumed the suspension between the precheck and here.
			if state.Pending == nil {
				return domain.ErrNoPendingSuspension
			}

			node := state.CurrentNode
			if node == "" {
				node = StartNode
			}
			state.Pending = nil
			state.ResumeValue = &resume

			return e.drive(ctx, threadID, state, node, events)
		})
		if err != nil {
			e.fail(ctx, threadID, err, events)
		}
	}()
	return events, nil
}

// History returns the thread's persisted state.
func (e *Executor) History(ctx context.Context, threadID string) (*domain.State, error) {
	return e.sessions.Load(ctx, threadID)
}

// loadOrStart fetches the snapshot inside an already-held run lock, creating
// a fresh state for an unknown thread.
func (e *Executor) loadOrStart(ctx context.Context, threadID, userID string) (*domain.State, error) {
	state, err := e.sessions.Store().Get(ctx, threadID)
	if err == nil {
		return state, nil
	}
	if err != domain.ErrThreadNotFound {
		return nil, err
	}
	return domain.NewState(threadID, userID), nil
}

// drive walks the graph from node until it suspends or terminates, emitting
// events and persisting the snapshot after every node.
func (e *Executor) drive(ctx context.Context, threadID string, state *domain.State, node string, events chan<- domain.Event) error {
	store := e.sessions.Store()

	for node != "" {
		n, ok := e.nodes[node]
		if !ok {
			return fmt.Errorf("route to unknown node %q", node)
		}

		state.CurrentNode = node
		start := time.Now()
		outcome, err := n.Run(ctx, state)
		if err != nil {
			observability.ObserveNode(node, "error", time.Since(start))
			return fmt.Errorf("node %s: %w", node, err)
		}
		observability.ObserveNode(node, outcome.metricLabel(), time.Since(start))

		if outcome.Suspended() {
			state.Pending = outcome.Suspension()
			state.ResumeValue = nil
			if err := store.Put(ctx, threadID, state); err != nil {
				return fmt.Errorf("persist suspension: %w", err)
			}
			observability.ObserveSuspension(string(state.Pending.Kind))
			observability.ObserveRun("suspended")
			e.logger.Info("run suspended",
				"thread_id", threadID,
				"node", node,
				"kind", state.Pending.Kind,
			)
			events <- domain.Event{Type: domain.EventSuspended, Node: node, Suspension: state.Pending}
			return nil
		}

		if err := store.Put(ctx, threadID, state); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
		events <- e.statusEvent(node, state)

		switch outcome.kind {
		case outcomeShortCircuit:
			node = outcome.target
		default:
			node = e.next(node, state)
		}
	}

	if state.Response == "" {
		return domain.ErrUnexpectedTermination
	}

	observability.ObserveRun("completed")
	events <- domain.Event{Type: domain.EventResponse, Response: e.finalResponse(state)}
	return nil
}

// next is the pure routing function. An invalid or unset action logs a
// warning and falls back to the safe default instead of erroring.
func (e *Executor) next(node string, state *domain.State) string {
	switch node {
	case NodeIntentResolver:
		return NodeDocResolver
	case NodeDocResolver:
		return NodeValidateInputs
	case NodeValidateInputs:
		action := state.Action
		if !action.Valid() {
			e.logger.Warn("unexpected action, defaulting",
				"thread_id", state.ThreadID,
				"action", string(action),
				"default", string(domain.DefaultAction),
			)
			action = domain.DefaultAction
			state.Action = action
		}
		return string(action)
	case NodeSummarize, NodeInquire, NodeCompare, NodeAudit:
		return NodeFormatResponse
	case NodeFormatResponse:
		return ""
	}
	return ""
}

func (e *Executor) statusEvent(node string, state *domain.State) domain.Event {
	ev := domain.Event{
		Type:    domain.EventStatus,
		Node:    node,
		Message: statusMessages[node],
	}
	if node == NodeDocResolver {
		for _, id := range state.ResolvedDocIDs {
			title := state.ResolvedDocTitles[id]
			if title == "" {
				title = id
			}
			ev.DocsFound = append(ev.DocsFound, domain.DocRef{ID: id, Title: title})
		}
	}
	if state.WebSearchQuery != "" {
		switch node {
		case NodeSummarize, NodeInquire, NodeCompare, NodeAudit:
			ev.WebQuery = state.WebSearchQuery
		}
	}
	return ev
}

func (e *Executor) finalResponse(state *domain.State) *domain.FinalResponse {
	// Unknown confidence surfaces as cautious, not falsely certain.
	inference := state.InferenceConfidence
	if inference == "" {
		inference = domain.ConfidenceLow
	}
	retrieval := state.RetrievalConfidence
	if retrieval == "" {
		retrieval = domain.ConfidenceLow
	}
	return &domain.FinalResponse{
		Response:            state.Response,
		Citations:           state.Citations,
		Action:              state.Action,
		InferenceConfidence: inference,
		RetrievalConfidence: retrieval,
		TokensUsed:          state.TokensUsed,
		CostUSD:             state.CostUSD,
	}
}

func (e *Executor) fail(ctx context.Context, threadID string, err error, events chan<- domain.Event) {
	observability.ObserveRun("error")
	e.logger.Error("run failed", "thread_id", threadID, "err", err)
	select {
	case events <- domain.Event{Type: domain.EventError, Err: err.Error()}:
	case <-ctx.Done():
	}
}
