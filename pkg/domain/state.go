package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Action is one of the four things the assistant can do with documents.
type Action string

const (
	ActionSummarize Action = "summarize"
	ActionInquire   Action = "inquire"
	ActionCompare   Action = "compare"
	ActionAudit     Action = "audit"
)

// DefaultAction is the safe routing fallback for an unknown or unset action.
const DefaultAction = ActionInquire

// Actions lists all valid actions in menu order.
func Actions() []Action {
	return []Action{ActionSummarize, ActionInquire, ActionCompare, ActionAudit}
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionSummarize, ActionInquire, ActionCompare, ActionAudit:
		return true
	}
	return false
}

// Label returns the human-readable menu label for the action.
func (a Action) Label() string {
	switch a {
	case ActionSummarize:
		return "Summarize"
	case ActionInquire:
		return "Inquire"
	case ActionCompare:
		return "Compare"
	case ActionAudit:
		return "Audit"
	}
	return string(a)
}

// Confidence is the three-tier certainty scale that governs suspension gates.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source records how a document id entered the resolved set.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
	SourceFuzzy    Source = "fuzzy_match"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a thread's conversation history.
type Message struct {
	ID      string         `json:"id"`
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// Citation is one numbered source reference in a draft answer.
type Citation struct {
	ID         int    `json:"id"`
	SourceType string `json:"source_type"` // "document" or "web"
	DocID      string `json:"doc_id,omitempty"`
	Title      string `json:"title"`
	Page       int    `json:"page,omitempty"`
	URL        string `json:"url,omitempty"`
	Quote      string `json:"quote"`
}

// State is the per-run pipeline record threaded through nodes and persisted
// after each node so a suspended run can be resumed from another process.
// It is owned exclusively by the graph executor while a run is active.
type State struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`

	// Ordered conversation history across all turns of this thread.
	Messages []Message `json:"messages"`

	// Inputs for the current turn.
	RichText        json.RawMessage `json:"rich_text,omitempty"` // structured editor doc, walked by richtext
	Action          Action          `json:"action,omitempty"`
	EnableWebSearch bool            `json:"enable_web_search"`
	SetID           string          `json:"set_id,omitempty"`
	ExplicitDocIDs  []string        `json:"explicit_doc_ids,omitempty"`

	// Document resolution outputs for the current turn.
	ResolvedDocIDs      []string          `json:"resolved_doc_ids,omitempty"`
	InferredDocIDs      []string          `json:"inferred_doc_ids,omitempty"`
	SuggestedDocIDs     []string          `json:"suggested_doc_ids,omitempty"`
	UnresolvedNames     []string          `json:"unresolved_names,omitempty"`
	InferenceSource     Source            `json:"inference_source,omitempty"`
	InferenceConfidence Confidence        `json:"inference_confidence,omitempty"`
	HasImplicitRefs     bool              `json:"has_implicit_refs,omitempty"`
	InferenceReasoning  string            `json:"inference_reasoning,omitempty"` // debug only, never user-facing
	CleanQuery          string            `json:"clean_query,omitempty"`
	ResolvedDocTitles   map[string]string `json:"resolved_doc_titles,omitempty"` // id → title

	// Registry: title → id accumulated across turns (implicit-reference
	// resolution). Survives turn resets; merged by MergeRegistry only.
	ConversationDocs map[string]string `json:"conversation_docs,omitempty"`

	// Executor bookkeeping.
	CurrentNode string             `json:"current_node,omitempty"`
	Pending     *SuspensionRequest `json:"pending,omitempty"`
	ResumeValue *Resume            `json:"resume_value,omitempty"`

	// Draft answer and accounting.
	Response            string     `json:"response,omitempty"`
	Citations           []Citation `json:"citations,omitempty"`
	RetrievalConfidence Confidence `json:"retrieval_confidence,omitempty"`
	WebSearchQuery      string     `json:"web_search_query,omitempty"`
	TokensUsed          int        `json:"tokens_used"`
	CostUSD             float64    `json:"cost_usd"`
}

// NewState creates a clean thread state.
func NewState(threadID, userID string) *State {
	return &State{
		ThreadID:         threadID,
		UserID:           userID,
		ConversationDocs: make(map[string]string),
	}
}

// ResetTurn clears every transient field before a new user turn while keeping
// the cross-turn fields (messages, registry) intact. The incoming turn's
// inputs are applied by the caller afterwards.
func (s *State) ResetTurn() {
	s.RichText = nil
	s.Action = ""
	s.EnableWebSearch = false
	s.SetID = ""
	s.ExplicitDocIDs = nil
	s.ResolvedDocIDs = nil
	s.InferredDocIDs = nil
	s.SuggestedDocIDs = nil
	s.UnresolvedNames = nil
	s.InferenceSource = ""
	s.InferenceConfidence = ""
	s.HasImplicitRefs = false
	s.InferenceReasoning = ""
	s.CleanQuery = ""
	s.ResolvedDocTitles = nil
	s.CurrentNode = ""
	s.Pending = nil
	s.ResumeValue = nil
	s.Response = ""
	s.Citations = nil
	s.RetrievalConfidence = ""
	s.WebSearchQuery = ""
	s.TokensUsed = 0
	s.CostUSD = 0
}

// AppendMessage adds a message to the conversation history.
func (s *State) AppendMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// ReplaceMessage swaps the message with the same id in place. Returns false
// if no message with that id exists.
func (s *State) ReplaceMessage(msg Message) bool {
	for i := range s.Messages {
		if s.Messages[i].ID == msg.ID {
			s.Messages[i] = msg
			return true
		}
	}
	return false
}

// LastUserMessage returns the most recent user message, if any.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant message, if any.
func (s *State) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// RecentContext returns up to n of the most recent non-system messages.
// When includeLatest is false the latest message is excluded; resolver
// context windows never repeat the message under resolution.
func (s *State) RecentContext(n int, includeLatest bool) []Message {
	msgs := s.Messages
	if !includeLatest && len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	var out []Message
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		if msgs[i].Role == RoleSystem {
			continue
		}
		out = append(out, msgs[i])
	}
	// Reverse back to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// TakeResume consumes the pending resume value. The first gate a resumed
// node reaches takes it; replayed gates after that see none and re-suspend
// or continue as the state dictates.
func (s *State) TakeResume() (Resume, bool) {
	if s.ResumeValue == nil {
		return Resume{}, false
	}
	r := *s.ResumeValue
	s.ResumeValue = nil
	return r, true
}

// KnownIDs is the set of document ids the pipeline is allowed to trust:
// registry values plus the current turn's explicit tags. Classifier output
// outside this set is hallucinated and must be dropped.
func (s *State) KnownIDs() map[string]bool {
	known := make(map[string]bool, len(s.ConversationDocs)+len(s.ExplicitDocIDs))
	for _, id := range s.ConversationDocs {
		known[id] = true
	}
	for _, id := range s.ExplicitDocIDs {
		known[id] = true
	}
	return known
}

// Clone returns a deep copy so stores and callers can never alias the
// executor's working state.
func (s *State) Clone() *State {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m
		if m.Meta != nil {
			out.Messages[i].Meta = make(map[string]any, len(m.Meta))
			for k, v := range m.Meta {
				out.Messages[i].Meta[k] = v
			}
		}
	}
	out.RichText = append(json.RawMessage(nil), s.RichText...)
	out.ExplicitDocIDs = append([]string(nil), s.ExplicitDocIDs...)
	out.ResolvedDocIDs = append([]string(nil), s.ResolvedDocIDs...)
	out.InferredDocIDs = append([]string(nil), s.InferredDocIDs...)
	out.SuggestedDocIDs = append([]string(nil), s.SuggestedDocIDs...)
	out.UnresolvedNames = append([]string(nil), s.UnresolvedNames...)
	out.Citations = append([]Citation(nil), s.Citations...)
	if s.ResolvedDocTitles != nil {
		out.ResolvedDocTitles = make(map[string]string, len(s.ResolvedDocTitles))
		for k, v := range s.ResolvedDocTitles {
			out.ResolvedDocTitles[k] = v
		}
	}
	if s.ConversationDocs != nil {
		out.ConversationDocs = make(map[string]string, len(s.ConversationDocs))
		for k, v := range s.ConversationDocs {
			out.ConversationDocs[k] = v
		}
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Options = append([]Option(nil), s.Pending.Options...)
		out.Pending = &p
	}
	if s.ResumeValue != nil {
		r := *s.ResumeValue
		out.ResumeValue = &r
	}
	return &out
}
