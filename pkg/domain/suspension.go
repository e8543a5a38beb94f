package domain

// SuspendKind identifies which kind of gate raised a suspension.
type SuspendKind string

const (
	// SuspendDocChoice asks the user to pick one (or all) of several
	// candidate documents.
	SuspendDocChoice SuspendKind = "doc_choice"

	// SuspendActionChoice asks the user to pick one action from a menu.
	SuspendActionChoice SuspendKind = "action_choice"

	// SuspendTextInput asks the user for free text: a document tag or an
	// excerpt to audit. Options is always nil.
	SuspendTextInput SuspendKind = "text_input"
)

// Option is one selectable answer in a choice suspension.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AllOptionID is the reserved option id meaning "every listed candidate".
const AllOptionID = "all"

// AllOption is appended after the candidates of every doc_choice suspension
// that offers more than zero candidates.
func AllOption() Option {
	return Option{ID: AllOptionID, Label: "All of these"}
}

// SuspensionRequest is the pause point a node hands to the executor when it
// needs user input before it can continue. It is persisted with the snapshot
// and consumed exactly once by the matching resume call.
type SuspensionRequest struct {
	Kind    SuspendKind `json:"kind"`
	Message string      `json:"message"`
	Options []Option    `json:"options,omitempty"` // nil for free-text gates
}

// CancelSentinel is the reserved resume value meaning the user dismissed the
// prompt. It is distinct from an empty string: an empty answer is malformed
// input, a cancel routes the run to the formatter with a canned message.
// The transport maps a null resume value to this sentinel.
const CancelSentinel = "__cancel__"

// Resume carries the user's answer to a pending suspension back into the
// node that raised it.
type Resume struct {
	Value string `json:"value"`
}

// Canceled reports whether the user dismissed the prompt.
func (r Resume) Canceled() bool {
	return r.Value == CancelSentinel
}

// Cancel returns the cancel-sentinel resume value.
func Cancel() Resume {
	return Resume{Value: CancelSentinel}
}
