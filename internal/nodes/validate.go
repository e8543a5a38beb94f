package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/policypal/palgraph/internal/richtext"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
)

// minAuditTextLen is the shortest audit excerpt worth checking. Anything
// shorter after tag stripping is treated as missing.
const minAuditTextLen = 50

// minDocs is the document floor per action.
var minDocs = map[domain.Action]int{
	domain.ActionSummarize: 1,
	domain.ActionInquire:   0,
	domain.ActionCompare:   2,
	domain.ActionAudit:     1,
}

// ValidateInputs is the last gate before an action runs: it expands a
// document set selection, enforces each action's document floor, and makes
// sure audit has an excerpt to check. Missing inputs suspend for free text.
type ValidateInputs struct {
	deps Deps
}

func NewValidateInputs(deps Deps) *ValidateInputs {
	return &ValidateInputs{deps: deps}
}

func (n *ValidateInputs) Name() string { return graph.NodeValidateInputs }

func (n *ValidateInputs) Run(ctx context.Context, state *domain.State) (graph.Outcome, error) {
	log := n.deps.logger()
	action := state.Action
	if !action.Valid() {
		action = domain.DefaultAction
	}

	if state.SetID != "" && state.UserID != "" {
		ids, err := n.deps.Entities.ExpandSet(ctx, state.SetID, state.UserID)
		if err != nil {
			log.Warn("document set expansion failed",
				"thread_id", state.ThreadID, "set_id", state.SetID, "err", err)
		} else if len(ids) > 0 {
			state.ResolvedDocIDs = domain.MergeIDs(state.ResolvedDocIDs, ids...)
		}
	}

	// Compare runs over stored documents only.
	if action == domain.ActionCompare && state.EnableWebSearch {
		state.EnableWebSearch = false
	}

	if len(state.ResolvedDocIDs) < minDocs[action] {
		if resume, ok := state.TakeResume(); ok {
			if resume.Canceled() {
				cancelReply(state, missingDocsCancelMessage(action))
				return graph.ShortCircuit(""), nil
			}
			if _, err := uuid.Parse(resume.Value); err == nil {
				state.ResolvedDocIDs = domain.MergeIDs(state.ResolvedDocIDs, resume.Value)
			} else {
				log.Warn("resume value is not a document id, proceeding without it",
					"thread_id", state.ThreadID, "value", resume.Value)
			}
			return graph.Continue(), nil
		}
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendTextInput,
			Message: missingDocsPrompt(action),
		}), nil
	}

	if action == domain.ActionAudit && auditTextMissing(state) {
		if resume, ok := state.TakeResume(); ok {
			if resume.Canceled() {
				cancelReply(state, "I need the text you'd like to audit. Please include it in your next message along with a @tagged regulation document.")
				return graph.ShortCircuit(""), nil
			}
			state.AppendMessage(domain.NewMessage(domain.RoleUser, resume.Value))
			return graph.Continue(), nil
		}
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendTextInput,
			Message: "Please enter the text you'd like to audit (e.g. an email or policy excerpt).",
		}), nil
	}

	return graph.Continue(), nil
}

// auditTextMissing reports whether the latest user message, tags stripped,
// is too short to be an audit excerpt.
func auditTextMissing(state *domain.State) bool {
	last, ok := state.LastUserMessage()
	if !ok {
		return true
	}
	return len(strings.TrimSpace(richtext.StripTags(last.Content))) < minAuditTextLen
}

func missingDocsPrompt(action domain.Action) string {
	switch action {
	case domain.ActionCompare:
		return "Compare requires at least 2 documents. Please @tag the additional document."
	case domain.ActionSummarize:
		return "Please @tag the document you'd like to summarize."
	}
	return "Please @tag the regulation document you'd like to audit against."
}

func missingDocsCancelMessage(action domain.Action) string {
	switch action {
	case domain.ActionCompare:
		return "Compare requires at least 2 documents. Please @tag them and try again."
	case domain.ActionSummarize:
		return "I need a document to summarize. Please @tag a document and try again."
	}
	return fmt.Sprintf("I need a regulation document to run %s. Please @tag one and try again.", action.Label())
}
