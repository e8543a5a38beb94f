package nodes

import (
	"context"
	"regexp"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
	"github.com/policypal/palgraph/pkg/ports"
)

// temporalPattern flags requests about current or recent facts; those get the
// web search flag regardless of what the classifier decides.
var temporalPattern = regexp.MustCompile(`(?i)\b(latest|recent|current|now|today|still|updated?|new|2025|2026)\b`)

// specificTopicPattern catches "summarize" requests that are really questions
// about a specific provision. Those route to inquire, which can cite passages.
var specificTopicPattern = regexp.MustCompile(`(?i)\b(what|how|when|where|why|which|does|is|are|can|explain|tell me)\b|\b(requirements?|provisions?|rules?|limits?|thresholds?|definitions?|sections?|clauses?|articles?)\b`)

const intentSystemPrompt = `You classify a user request to a regulatory document assistant into exactly one action.

Actions:
- summarize: produce an overview of one or more documents
- inquire: answer a question about documents or regulations
- compare: contrast two or more documents against each other
- audit: check a piece of user text against a regulation document

Respond with JSON only:
{"action": "summarize|inquire|compare|audit", "confidence": "high|medium|low", "enable_web_search": true|false, "multi_action_detected": true|false, "detected_actions": ["..."], "reasoning": "..."}

Set enable_web_search only when answering needs current, time-sensitive information beyond stored documents. Set multi_action_detected when the message asks for more than one distinct action, and list each requested action in detected_actions.`

const intentCancelMessage = "I wasn't sure which action to perform. Try again using @Summarize, @Inquire, @Compare, or @Audit with your message."

// contextTurns is how many recent messages the second classification pass
// sees, the ambiguous message included.
const contextTurns = 6

type intentResult struct {
	Action              string   `json:"action"`
	Confidence          string   `json:"confidence"`
	EnableWebSearch     bool     `json:"enable_web_search"`
	MultiActionDetected bool     `json:"multi_action_detected"`
	DetectedActions     []string `json:"detected_actions"`
	Reasoning           string   `json:"reasoning"`
}

// IntentResolver decides which action the turn performs. An explicit action
// from the caller skips classification entirely; otherwise a single-message
// pass runs first and a context-widened pass re-runs it when the first is
// unsure. Ambiguity suspends on an action menu.
type IntentResolver struct {
	deps Deps
}

func NewIntentResolver(deps Deps) *IntentResolver {
	return &IntentResolver{deps: deps}
}

func (n *IntentResolver) Name() string { return graph.NodeIntentResolver }

func (n *IntentResolver) Run(ctx context.Context, state *domain.State) (graph.Outcome, error) {
	last, _ := state.LastUserMessage()
	keywordWeb := temporalPattern.MatchString(last.Content)

	if state.Action.Valid() {
		state.EnableWebSearch = state.EnableWebSearch || keywordWeb
		n.finish(state)
		return graph.Continue(), nil
	}

	frontendWeb := state.EnableWebSearch

	res, err := n.classify(ctx, []ports.ChatMessage{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: last.Content},
	})
	if err != nil {
		n.deps.logger().Warn("intent classification failed, deferring to the user",
			"thread_id", state.ThreadID, "err", err)
		res = intentResult{Action: string(domain.DefaultAction), Confidence: string(domain.ConfidenceLow)}
	} else if res.Confidence != string(domain.ConfidenceHigh) {
		// Widen to recent conversation context; its verdict replaces the
		// single-message one outright.
		msgs := []ports.ChatMessage{{Role: "system", Content: intentSystemPrompt}}
		for _, m := range state.RecentContext(contextTurns, true) {
			msgs = append(msgs, ports.ChatMessage{Role: string(m.Role), Content: m.Content})
		}
		if wide, werr := n.classify(ctx, msgs); werr == nil {
			res = wide
		} else {
			n.deps.logger().Warn("context-widened intent pass failed, keeping first pass",
				"thread_id", state.ThreadID, "err", werr)
		}
	}

	action := domain.Action(res.Action)
	if action == domain.ActionSummarize && specificTopicPattern.MatchString(last.Content) {
		action = domain.ActionInquire
	}
	state.EnableWebSearch = frontendWeb || keywordWeb || res.EnableWebSearch

	if res.MultiActionDetected {
		if resume, ok := state.TakeResume(); ok {
			return n.adoptChoice(state, resume), nil
		}
		opts := actionOptions(res.DetectedActions)
		if len(opts) < 2 {
			opts = fullActionMenu()
		}
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendActionChoice,
			Message: "I can only perform one action at a time. Which would you like to do first?",
			Options: opts,
		}), nil
	}

	if res.Confidence == string(domain.ConfidenceLow) {
		if resume, ok := state.TakeResume(); ok {
			return n.adoptChoice(state, resume), nil
		}
		return graph.Suspend(domain.SuspensionRequest{
			Kind:    domain.SuspendActionChoice,
			Message: "I'm not sure what you'd like to do. Please choose an action:",
			Options: fullActionMenu(),
		}), nil
	}

	state.Action = action
	n.finish(state)
	return graph.Continue(), nil
}

func (n *IntentResolver) classify(ctx context.Context, msgs []ports.ChatMessage) (intentResult, error) {
	var res intentResult
	_, err := n.deps.Classifier.Classify(ctx, ports.TaskIntent, msgs, &res)
	return res, err
}

func (n *IntentResolver) adoptChoice(state *domain.State, r domain.Resume) graph.Outcome {
	if r.Canceled() {
		cancelReply(state, intentCancelMessage)
		return graph.ShortCircuit("")
	}
	state.Action = domain.Action(r.Value)
	n.finish(state)
	return graph.Continue()
}

// finish applies the one hard domain rule on the merged flags: compare runs
// over stored documents only, never the live web.
func (n *IntentResolver) finish(state *domain.State) {
	if state.Action == domain.ActionCompare {
		state.EnableWebSearch = false
	}
}

func actionOptions(detected []string) []domain.Option {
	var opts []domain.Option
	seen := make(map[domain.Action]bool)
	for _, d := range detected {
		a := domain.Action(d)
		if !a.Valid() || seen[a] {
			continue
		}
		seen[a] = true
		opts = append(opts, domain.Option{ID: string(a), Label: a.Label()})
	}
	return opts
}

func fullActionMenu() []domain.Option {
	var opts []domain.Option
	for _, a := range domain.Actions() {
		opts = append(opts, domain.Option{ID: string(a), Label: a.Label()})
	}
	return opts
}
