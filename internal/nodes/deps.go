// Package nodes implements the pipeline stages: intent resolution, document
// resolution, input validation, the four action executors, and response
// formatting. Every node follows the replay contract in pkg/graph.
package nodes

import (
	"log/slog"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

// Deps bundles the external capabilities the nodes draw on. Logger is
// required; the rest may be nil only for nodes that never touch them.
type Deps struct {
	Classifier ports.Classifier
	Entities   ports.EntityStore
	Retriever  ports.Retriever
	Web        ports.WebSearcher
	Logger     *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// cancelReply records the canned cancellation answer and routes the run
// straight to the formatter.
func cancelReply(state *domain.State, msg string) {
	state.Response = msg
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, msg))
}
