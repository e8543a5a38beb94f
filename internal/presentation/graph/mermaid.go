// Package graph renders the pipeline topology as a Mermaid flowchart, for
// docs and for inspecting where a suspended thread is parked.
package graph

import (
	"fmt"
	"strings"

	"github.com/policypal/palgraph/pkg/domain"
	pipeline "github.com/policypal/palgraph/pkg/graph"
)

// Overlay contains per-thread state to visualize on top of the static
// topology.
type Overlay struct {
	CurrentNode string
	Pending     *domain.SuspensionRequest
}

type nodeSpec struct {
	name     string
	opener   string
	closer   string
	suspends bool
}

// The pipeline is fixed, so the topology is declared rather than inspected.
var nodeSpecs = []nodeSpec{
	{pipeline.NodeIntentResolver, "((", "))", true},
	{pipeline.NodeDocResolver, "[/", "/]", true},
	{pipeline.NodeValidateInputs, "[/", "/]", true},
	{pipeline.NodeSummarize, "[[", "]]", false},
	{pipeline.NodeInquire, "[[", "]]", false},
	{pipeline.NodeCompare, "[[", "]]", false},
	{pipeline.NodeAudit, "[[", "]]", false},
	{pipeline.NodeFormatResponse, "[", "]", false},
}

// GenerateMermaid produces a Mermaid flowchart (graph TD) of the pipeline.
// Gate nodes that can pause for user input render as parallelograms, action
// executors as subroutines, and cancel short-circuits as dotted edges. An
// overlay highlights the node a suspended thread is waiting in.
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, spec := range nodeSpecs {
		label := spec.name
		if overlay != nil && overlay.Pending != nil && overlay.CurrentNode == spec.name {
			label = fmt.Sprintf("%s <br/> awaiting %s", spec.name, overlay.Pending.Kind)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", spec.name, spec.opener, label, spec.closer))
	}

	sb.WriteString(fmt.Sprintf("    %s --> %s\n", pipeline.NodeIntentResolver, pipeline.NodeDocResolver))
	sb.WriteString(fmt.Sprintf("    %s --> %s\n", pipeline.NodeDocResolver, pipeline.NodeValidateInputs))
	for _, action := range []string{pipeline.NodeSummarize, pipeline.NodeInquire, pipeline.NodeCompare, pipeline.NodeAudit} {
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", pipeline.NodeValidateInputs, action, action))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", action, pipeline.NodeFormatResponse))
	}
	for _, spec := range nodeSpecs {
		if spec.suspends {
			sb.WriteString(fmt.Sprintf("    %s -. cancel .-> %s\n", spec.name, pipeline.NodeFormatResponse))
		}
	}

	if overlay != nil && overlay.CurrentNode != "" {
		sb.WriteString("\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current;\n", overlay.CurrentNode))
	}

	return sb.String()
}
