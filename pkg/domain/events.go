package domain

// EventType discriminates the entries of a run's event stream.
type EventType string

const (
	// EventStatus is emitted after each completed node.
	EventStatus EventType = "status"

	// EventSuspended terminates the stream: the run is paused on a
	// suspension request and waits for a resume call.
	EventSuspended EventType = "interrupt"

	// EventResponse terminates the stream with the final answer.
	EventResponse EventType = "response"

	// EventError terminates the stream with a surfaced failure.
	EventError EventType = "error"
)

// DocRef is a resolved document surfaced in a status event.
type DocRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FinalResponse is the terminal payload of a successful run.
type FinalResponse struct {
	Response            string     `json:"response"`
	Citations           []Citation `json:"citations"`
	Action              Action     `json:"action"`
	InferenceConfidence Confidence `json:"inference_confidence"`
	RetrievalConfidence Confidence `json:"retrieval_confidence"`
	TokensUsed          int        `json:"tokens_used"`
	CostUSD             float64    `json:"cost_usd"`
}

// Event is one entry in the stream produced by a run or resume call. The
// stream ends with exactly one of EventSuspended, EventResponse, EventError.
type Event struct {
	Type EventType `json:"type"`

	// Status fields.
	Node      string   `json:"node,omitempty"`
	Message   string   `json:"message,omitempty"`
	DocsFound []DocRef `json:"docs_found,omitempty"`
	WebQuery  string   `json:"web_query,omitempty"`

	// Terminal payloads.
	Suspension *SuspensionRequest `json:"suspension,omitempty"`
	Response   *FinalResponse     `json:"response,omitempty"`
	Err        string             `json:"err,omitempty"`
}
