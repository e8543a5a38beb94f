package ports

import "context"

// Classification tasks. Each task routes to a model tier configured by the
// implementation; the names double as accounting labels.
const (
	TaskIntent        = "intent"
	TaskDocResolution = "doc_resolution"
	TaskQueryRewrite  = "query_rewrite"
	TaskSummarize     = "summarize"
	TaskInquire       = "inquire"
	TaskCompare       = "compare"
	TaskAudit         = "audit"
)

// ChatMessage is one prompt message for the classification capability.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Usage reports the token and dollar cost of one classification call.
type Usage struct {
	Tokens  int
	CostUSD float64
}

// Classifier is the external semantic classification capability.
//
// Classify sends the messages to the model selected for task and decodes the
// structured result into out (a pointer to a struct with json tags).
//
// Hard contract on implementations: output must be deterministic for
// identical inputs (temperature and seed pinned). Nodes call Classify before
// possible suspension points and replay the call on resume; a
// non-deterministic implementation would make a resumed run take a different
// gate than the one the user answered. Implementations retry once on
// rate-limit and timeout; all other failures surface to the caller.
type Classifier interface {
	Classify(ctx context.Context, task string, messages []ChatMessage, out any) (Usage, error)
}
