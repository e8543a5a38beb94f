// Package richtext walks the structured editor document attached to a user
// turn. The document is a tree of typed nodes: "mention" nodes carry an
// explicit document tag ({id, label}), "text" nodes carry plain text, and any
// node may nest children under "content".
package richtext

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type node struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Attrs struct {
		Category string `json:"category"`
		ID       string `json:"id"`
		Label    string `json:"label"`
	} `json:"attrs"`
	Content []node `json:"content"`
}

// Mention is an explicit document tag found in the editor document.
type Mention struct {
	ID    string
	Label string
}

// Walk extracts every explicit document mention, in encounter order, and the
// concatenated free text of the document. Mention labels are never part of
// the free text. A repeated mention id keeps its first position but takes the
// later label. A nil or empty document yields no mentions and empty text.
func Walk(raw json.RawMessage) ([]Mention, string, error) {
	if len(raw) == 0 {
		return nil, "", nil
	}

	var root node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, "", fmt.Errorf("malformed rich-text document: %w", err)
	}

	var (
		mentions []Mention
		index    = map[string]int{}
		text     strings.Builder
	)

	var walk func(n node)
	walk = func(n node) {
		if n.Type == "mention" {
			if n.Attrs.Category == "document" && n.Attrs.ID != "" {
				label := n.Attrs.Label
				if label == "" {
					label = n.Attrs.ID
				}
				if i, seen := index[n.Attrs.ID]; seen {
					mentions[i].Label = label
				} else {
					index[n.Attrs.ID] = len(mentions)
					mentions = append(mentions, Mention{ID: n.Attrs.ID, Label: label})
				}
			}
			// Mention subtrees hold only the rendered label.
			return
		}
		if n.Type == "text" {
			text.WriteString(n.Text)
		}
		for _, child := range n.Content {
			walk(child)
		}
	}
	walk(root)

	return mentions, text.String(), nil
}

// IDs returns the mention ids in encounter order.
func IDs(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.ID
	}
	return out
}

// Labels returns the id→label map of the given mentions.
func Labels(mentions []Mention) map[string]string {
	out := make(map[string]string, len(mentions))
	for _, m := range mentions {
		out[m.ID] = m.Label
	}
	return out
}

var tagToken = regexp.MustCompile(`@\S+`)

// StripTags removes rendered @-tag tokens from plain message text. Used to
// measure how much real content a message carries besides its tags.
func StripTags(s string) string {
	return strings.TrimSpace(tagToken.ReplaceAllString(s, ""))
}
