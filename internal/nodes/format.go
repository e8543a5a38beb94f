package nodes

import (
	"context"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
)

// FormatResponse closes the turn: it folds the resolved documents into the
// conversation registry so later turns can resolve implicit references, and
// stamps the answer's metadata onto the assistant message for the transport.
type FormatResponse struct {
	deps Deps
}

func NewFormatResponse(deps Deps) *FormatResponse {
	return &FormatResponse{deps: deps}
}

func (n *FormatResponse) Name() string { return graph.NodeFormatResponse }

func (n *FormatResponse) Run(ctx context.Context, state *domain.State) (graph.Outcome, error) {
	if len(state.ResolvedDocIDs) > 0 {
		pairs := make(map[string]string)
		docs, err := n.deps.Entities.DocumentsByID(ctx, state.ResolvedDocIDs)
		if err != nil {
			n.deps.logger().Warn("title lookup for registry update failed",
				"thread_id", state.ThreadID, "err", err)
		}
		titled := make(map[string]bool)
		for _, d := range docs {
			if d.Title != "" {
				pairs[d.Title] = d.ID
				titled[d.ID] = true
			}
		}
		// Turn-local titles cover ids the store no longer returns.
		for _, id := range state.ResolvedDocIDs {
			if titled[id] {
				continue
			}
			if t := state.ResolvedDocTitles[id]; t != "" && t != id {
				pairs[t] = id
			}
		}
		state.ConversationDocs = domain.MergeRegistry(state.ConversationDocs, pairs)
	}

	last, ok := state.LastAssistantMessage()
	if !ok {
		// Nothing to stamp. A turn can end without an assistant message only
		// when an upstream node failed to produce one; the executor reports
		// that as a termination error.
		return graph.Continue(), nil
	}

	confidence := state.RetrievalConfidence
	if confidence == "" {
		confidence = domain.ConfidenceLow
	}
	action := state.Action
	if !action.Valid() {
		action = domain.DefaultAction
	}

	if last.Meta == nil {
		last.Meta = make(map[string]any)
	}
	last.Meta["retrieval_confidence"] = string(confidence)
	last.Meta["cost_usd"] = state.CostUSD
	last.Meta["tokens_used"] = state.TokensUsed
	last.Meta["citations"] = state.Citations
	last.Meta["action"] = string(action)
	state.ReplaceMessage(last)

	return graph.Continue(), nil
}
