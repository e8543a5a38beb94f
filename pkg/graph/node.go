package graph

import (
	"context"

	"github.com/policypal/palgraph/pkg/domain"
)

// Node names, in pipeline order.
const (
	NodeIntentResolver = "intent_resolver"
	NodeDocResolver    = "doc_resolver"
	NodeValidateInputs = "validate_inputs"
	NodeSummarize      = "summarize"
	NodeInquire        = "inquire"
	NodeCompare        = "compare"
	NodeAudit          = "audit"
	NodeFormatResponse = "format_response"
)

// StartNode is where every turn begins.
const StartNode = NodeIntentResolver

// Node is one named stage of the pipeline. Run mutates the state in place
// and reports how the executor should proceed through the Outcome tag.
//
// Replay contract: when a node suspends, resume re-enters Run from the top
// with the resume value available on the state. Everything Run computes
// before a possible suspension point must therefore be idempotent under
// identical inputs, and classification calls made before that point must be
// deterministic so the replayed pass reaches the same gate.
type Node interface {
	Name() string
	Run(ctx context.Context, state *domain.State) (Outcome, error)
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeSuspend
	outcomeShortCircuit
)

// Outcome is the tagged result of one node execution.
type Outcome struct {
	kind       outcomeKind
	suspension *domain.SuspensionRequest
	target     string
}

// Continue proceeds to the next node on the normal route.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Suspend pauses the run on a suspension request. The executor persists the
// request with the snapshot and ends the event stream with an interrupt.
func Suspend(req domain.SuspensionRequest) Outcome {
	return Outcome{kind: outcomeSuspend, suspension: &req}
}

// ShortCircuit jumps directly to target, skipping the normal route. An empty
// target jumps to the response formatter (the cancellation path).
func ShortCircuit(target string) Outcome {
	if target == "" {
		target = NodeFormatResponse
	}
	return Outcome{kind: outcomeShortCircuit, target: target}
}

// Suspension returns the request carried by a Suspend outcome, or nil.
func (o Outcome) Suspension() *domain.SuspensionRequest {
	return o.suspension
}

// Suspended reports whether the outcome pauses the run.
func (o Outcome) Suspended() bool {
	return o.kind == outcomeSuspend
}

func (o Outcome) metricLabel() string {
	switch o.kind {
	case outcomeSuspend:
		return "suspend"
	case outcomeShortCircuit:
		return "short_circuit"
	}
	return "continue"
}

// NodeFunc adapts a function to the Node interface, for tests and simple
// stages.
type NodeFunc struct {
	NodeName string
	Fn       func(ctx context.Context, state *domain.State) (Outcome, error)
}

func (n NodeFunc) Name() string { return n.NodeName }

func (n NodeFunc) Run(ctx context.Context, state *domain.State) (Outcome, error) {
	return n.Fn(ctx, state)
}
