package revert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPostOnly(t *testing.T) {
	got := Classify("POSTONLY_WOULD_MATCH")

	assert.True(t, got.IsMatchingFailure)
	assert.Contains(t, got.Explanation, "post-only")
	assert.Equal(t, "POSTONLY_WOULD_MATCH", got.RawReason)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.True(t, Classify("PostOnly would match").IsMatchingFailure)
	assert.True(t, Classify("fok_not_fillable").IsMatchingFailure)
}

func TestClassifyAccountFailuresAreNotMatchingFailures(t *testing.T) {
	for _, reason := range []string{"INSUFFICIENT_BALANCE", "ORDER_EXPIRED", "MARKET_PAUSED", "BAD_LEVERAGE"} {
		got := Classify(reason)
		assert.False(t, got.IsMatchingFailure, "reason %s", reason)
		assert.NotEmpty(t, got.Suggestion, "reason %s", reason)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Carries both post-only and expired markers; post-only is earlier in
	// the table.
	got := Classify("POSTONLY_EXPIRED")
	assert.True(t, got.IsMatchingFailure)
}

func TestClassifyUnknownEchoesRawReason(t *testing.T) {
	got := Classify("E_WEIRD_CODE_42")

	assert.False(t, got.IsMatchingFailure)
	assert.Contains(t, got.Explanation, "E_WEIRD_CODE_42")
	assert.Equal(t, "E_WEIRD_CODE_42", got.RawReason)
}
