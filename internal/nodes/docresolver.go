package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/policypal/palgraph/internal/fuzzy"
	"github.com/policypal/palgraph/internal/richtext"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
	"github.com/policypal/palgraph/pkg/observability"
	"github.com/policypal/palgraph/pkg/ports"
)

// fuzzyThreshold is the minimum weighted-ratio score for an unresolved name
// to bind to a stored document title.
const fuzzyThreshold = 0.85

// resolverContextTurns is how many prior messages the classifier sees when
// the free text names nothing from the registry.
const resolverContextTurns = 5

const docSystemPromptFormat = `You resolve which stored documents a user message refers to.

DOCUMENT REGISTRY (title -> id, the only ids that exist):
%s

CURRENT ACTION: %s

ALREADY EXPLICITLY TAGGED (do NOT re-add these to resolved_uuids, they are already confirmed):
%s

INSTRUCTIONS:
1. Look for references in the user's message(s) to any document in the registry.
2. For each reference you can match, add its id to resolved_uuids.
3. For each reference you CANNOT match (unknown name, unclear pronoun with no prior context), add the name or phrase to unresolved_names.
4. Set has_implicit_refs=true if any resolved document was NOT explicitly tagged.
5. Confidence: high = certain match, medium = probable match, low = guessing or registry is empty.
6. NEVER invent ids. Only use ids from the registry above.

Respond with JSON only:
{"resolved_uuids": ["..."], "unresolved_names": ["..."], "inference_confidence": "high|medium|low", "has_implicit_refs": true|false, "reasoning": "..."}`

type docResolution struct {
	ResolvedUUIDs       []string `json:"resolved_uuids"`
	UnresolvedNames     []string `json:"unresolved_names"`
	InferenceConfidence string   `json:"inference_confidence"`
	HasImplicitRefs     bool     `json:"has_implicit_refs"`
	Reasoning           string   `json:"reasoning"`
}

// DocResolver binds the turn to a set of document ids: explicit tags from the
// editor document, implicit references resolved against the conversation
// registry, and fuzzy title matches for names the classifier could not place.
// Uncertain resolutions suspend for user confirmation.
type DocResolver struct {
	deps Deps
}

func NewDocResolver(deps Deps) *DocResolver {
	return &DocResolver{deps: deps}
}

func (n *DocResolver) Name() string { return graph.NodeDocResolver }

func (n *DocResolver) Run(ctx context.Context, state *domain.State) (graph.Outcome, error) {
	log := n.deps.logger()
	last, _ := state.LastUserMessage()

	mentions, freeText, err := richtext.Walk(state.RichText)
	if err != nil {
		log.Warn("malformed rich text, treating message as plain text",
			"thread_id", state.ThreadID, "err", err)
		mentions, freeText = nil, last.Content
	}
	if len(state.RichText) == 0 {
		freeText = last.Content
	}

	labels := richtext.Labels(mentions)
	explicit := richtext.IDs(mentions)
	if len(explicit) == 0 {
		explicit = state.ExplicitDocIDs
	}

	// Pure tag shortcut: nothing to infer, no classification needed.
	if strings.TrimSpace(freeText) == "" && len(explicit) > 0 {
		titles := make(map[string]string, len(explicit))
		for _, id := range explicit {
			titles[id] = titleFor(id, labels, state.ConversationDocs, nil)
		}
		state.ResolvedDocIDs = domain.MergeIDs(nil, explicit...)
		state.InferredDocIDs = nil
		state.SuggestedDocIDs = nil
		state.UnresolvedNames = nil
		state.InferenceSource = domain.SourceExplicit
		state.InferenceConfidence = domain.ConfidenceHigh
		state.HasImplicitRefs = false
		state.InferenceReasoning = "all documents explicitly tagged, no free text"
		state.CleanQuery = ""
		state.ResolvedDocTitles = titles
		return graph.Continue(), nil
	}

	res := n.classify(ctx, state, explicit, labels, freeText, last.Content)

	// Only ids from the registry or the current tags may enter the pipeline.
	known := state.KnownIDs()
	for _, id := range explicit {
		known[id] = true
	}
	var validated []string
	for _, id := range res.ResolvedUUIDs {
		if known[id] {
			validated = append(validated, id)
		}
	}
	if dropped := len(res.ResolvedUUIDs) - len(validated); dropped > 0 {
		observability.ObserveDroppedDocIDs(dropped)
		log.Warn("dropped unknown document ids from classifier output",
			"thread_id", state.ThreadID, "dropped", dropped)
	}

	merged := domain.MergeIDs(explicit, validated...)
	source := domain.SourceExplicit
	if len(validated) > 0 || len(explicit) == 0 {
		source = domain.SourceInferred
	}
	confidence := domain.Confidence(res.InferenceConfidence)
	switch confidence {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow:
	default:
		confidence = domain.ConfidenceLow
	}

	unresolved := res.UnresolvedNames
	fuzzyTitles := make(map[string]string)
	if len(unresolved) > 0 && state.UserID != "" {
		docs, derr := n.deps.Entities.ReadyDocuments(ctx, state.UserID)
		if derr != nil {
			log.Warn("document fetch for fuzzy matching failed",
				"thread_id", state.ThreadID, "err", derr)
		}
		var fuzzyIDs []string
		fuzzyIDs, unresolved, fuzzyTitles = matchTitles(unresolved, docs, log)
		if len(fuzzyIDs) > 0 {
			merged = domain.MergeIDs(merged, fuzzyIDs...)
			source = domain.SourceFuzzy
		}
	}

	titles := make(map[string]string, len(merged))
	for _, id := range merged {
		titles[id] = titleFor(id, labels, state.ConversationDocs, fuzzyTitles)
	}

	var suggested []string
	if confidence != domain.ConfidenceHigh {
		suggested = validated
	}

	state.ResolvedDocIDs = merged
	state.InferredDocIDs = validated
	state.SuggestedDocIDs = suggested
	state.UnresolvedNames = unresolved
	state.InferenceSource = source
	state.InferenceConfidence = confidence
	state.HasImplicitRefs = res.HasImplicitRefs
	state.InferenceReasoning = res.Reasoning
	state.CleanQuery = strings.TrimSpace(freeText)
	state.ResolvedDocTitles = titles

	// Gate 1: probable but unconfirmed candidates. The user picks one, all,
	// or backs out.
	if confidence == domain.ConfidenceMedium && len(suggested) > 0 {
		if resume, ok := state.TakeResume(); ok {
			if resume.Canceled() {
				state.InferenceConfidence = domain.ConfidenceLow
				cancelReply(state, docCancelMessage(state.Action))
				return graph.ShortCircuit(""), nil
			}
			if resume.Value == domain.AllOptionID {
				state.ResolvedDocIDs = domain.MergeIDs(merged, suggested...)
			} else {
				state.ResolvedDocIDs = domain.MergeIDs(merged, resume.Value)
			}
			state.InferenceConfidence = domain.ConfidenceHigh
			return graph.Continue(), nil
		}
		opts := make([]domain.Option, 0, len(suggested)+1)
		for _, id := range suggested {
			opts = append(opts, domain.Option{ID: id, Label: titleFor(id, labels, state.ConversationDocs, nil)})
		}
		opts = append(opts, domain.AllOption())
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendDocChoice,
			Message: fmt.Sprintf("Which document would you like to %s?", actionVerb(state.Action)),
			Options: opts,
		}), nil
	}

	// Gate 2: nothing resolved and names left dangling. Explicit tags make
	// stray pronouns irrelevant, so this only fires on an empty set.
	if confidence == domain.ConfidenceLow && len(unresolved) > 0 && len(merged) == 0 {
		if resume, ok := state.TakeResume(); ok {
			if resume.Canceled() {
				cancelReply(state, docCancelMessage(state.Action))
				return graph.ShortCircuit(""), nil
			}
			if _, perr := uuid.Parse(resume.Value); perr == nil {
				state.ResolvedDocIDs = domain.MergeIDs(merged, resume.Value)
				state.InferenceConfidence = domain.ConfidenceHigh
			} else {
				log.Warn("resume value is not a document id, proceeding without it",
					"thread_id", state.ThreadID, "value", resume.Value)
			}
			return graph.Continue(), nil
		}
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendTextInput,
			Message: "I couldn't find the document you're referring to. Please @tag the document you'd like to use.",
		}), nil
	}

	return graph.Continue(), nil
}

func (n *DocResolver) classify(ctx context.Context, state *domain.State, explicit []string, labels map[string]string, freeText, latest string) docResolution {
	registry := state.ConversationDocs

	registryBlock := "(empty: this is the user's first message, no prior documents)"
	if len(registry) > 0 {
		titles := make([]string, 0, len(registry))
		for title := range registry {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		var b strings.Builder
		for _, title := range titles {
			fmt.Fprintf(&b, "- %q -> %s\n", title, registry[title])
		}
		registryBlock = strings.TrimRight(b.String(), "\n")
	}

	explicitBlock := "(none)"
	if len(explicit) > 0 {
		var b strings.Builder
		for _, id := range explicit {
			fmt.Fprintf(&b, "- %s (%q)\n", id, titleFor(id, labels, registry, nil))
		}
		explicitBlock = strings.TrimRight(b.String(), "\n")
	}

	action := state.Action
	if !action.Valid() {
		action = domain.DefaultAction
	}
	msgs := []ports.ChatMessage{{
		Role:    "system",
		Content: fmt.Sprintf(docSystemPromptFormat, registryBlock, action, explicitBlock),
	}}

	// A registry title named outright in the free text means the latest
	// message stands alone; otherwise prior turns disambiguate pronouns.
	lowerFree := strings.ToLower(freeText)
	registryHit := false
	for title := range registry {
		if strings.Contains(lowerFree, strings.ToLower(title)) {
			registryHit = true
			break
		}
	}
	if !registryHit && len(registry) > 0 {
		for _, m := range state.RecentContext(resolverContextTurns, false) {
			msgs = append(msgs, ports.ChatMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	msgs = append(msgs, ports.ChatMessage{Role: "user", Content: latest})

	var res docResolution
	if _, err := n.deps.Classifier.Classify(ctx, ports.TaskDocResolution, msgs, &res); err != nil {
		n.deps.logger().Warn("document resolution classification failed, degrading to low confidence",
			"thread_id", state.ThreadID, "err", err)
		return docResolution{InferenceConfidence: string(domain.ConfidenceLow)}
	}
	return res
}

// matchTitles binds unresolved names to stored document titles. Returns the
// matched ids, the names still unmatched, and the titles of the matched docs.
func matchTitles(names []string, docs []ports.Document, log *slog.Logger) (ids, remaining []string, titles map[string]string) {
	titles = make(map[string]string)
	if len(docs) == 0 {
		return nil, names, titles
	}
	pool := make([]string, len(docs))
	byTitle := make(map[string]ports.Document, len(docs))
	for i, d := range docs {
		pool[i] = d.Title
		byTitle[d.Title] = d
	}
	for _, name := range names {
		match, score, ok := fuzzy.BestMatch(name, pool)
		if ok && score >= fuzzyThreshold {
			d := byTitle[match]
			ids = append(ids, d.ID)
			titles[d.ID] = d.Title
			log.Info("fuzzy matched document title", "name", name, "title", match, "score", score)
		} else {
			remaining = append(remaining, name)
		}
	}
	return ids, remaining, titles
}

// titleFor picks the best display title for a document id: the current
// turn's tag label, then the registry, then a fuzzy-fetch title, then the
// raw id.
func titleFor(id string, labels, registry, fuzzyTitles map[string]string) string {
	if t := labels[id]; t != "" {
		return t
	}
	for title, rid := range registry {
		if rid == id {
			return title
		}
	}
	if t := fuzzyTitles[id]; t != "" {
		return t
	}
	return id
}

func actionVerb(a domain.Action) string {
	switch a {
	case domain.ActionSummarize:
		return "summarize"
	case domain.ActionCompare:
		return "compare"
	case domain.ActionAudit:
		return "audit against"
	case domain.ActionInquire:
		return "query"
	}
	return "use"
}

func docCancelMessage(a domain.Action) string {
	return fmt.Sprintf("I can't proceed with %s without a specific document. Please @tag a document and try again for optimal results.", a.Label())
}
