package fuzzy_test

import (
	"testing"

	"github.com/policypal/palgraph/internal/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_ExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, fuzzy.Score("Policy A", "policy a"))
}

func TestScore_Containment(t *testing.T) {
	s := fuzzy.Score("BankNegara", "BankNegara Capital Requirements 2024")
	assert.GreaterOrEqual(t, s, 0.85)
}

func TestScore_TokenOrder(t *testing.T) {
	s := fuzzy.Score("Requirements Capital", "Capital Requirements")
	assert.GreaterOrEqual(t, s, 0.9)
}

func TestScore_Unrelated(t *testing.T) {
	s := fuzzy.Score("Holiday Schedule", "Capital Requirements Directive")
	assert.Less(t, s, 0.85)
}

func TestScore_Empty(t *testing.T) {
	assert.Zero(t, fuzzy.Score("", "anything"))
	assert.Zero(t, fuzzy.Score("anything", ""))
}

func TestBestMatch(t *testing.T) {
	titles := []string{"Employee Handbook", "Capital Requirements Directive", "AML Policy"}

	match, score, ok := fuzzy.BestMatch("capital requirements", titles)
	require.True(t, ok)
	assert.Equal(t, "Capital Requirements Directive", match)
	assert.GreaterOrEqual(t, score, 0.85)

	_, _, ok = fuzzy.BestMatch("anything", nil)
	assert.False(t, ok)
}
