// Package revert classifies exchange revert reasons into human
// explanations. Rules are tried in order, first match wins; unmatched
// reasons fall through to a generic explanation that echoes the raw string.
package revert

import (
	"strings"

	"perpsim/internal/domain"
)

// Rule maps a revert-reason substring to its explanation.
// IsMatchingFailure separates order-book-condition failures from account
// and market failures: the former suggest repricing, the latter do not.
type Rule struct {
	Pattern           string
	Explanation       string
	Suggestion        string
	IsMatchingFailure bool
}

// rules is ordered: more specific patterns first.
var rules = []Rule{
	{
		Pattern:           "postonly",
		Explanation:       "The order was flagged post-only but would have matched a resting order immediately.",
		Suggestion:        "Move the price away from the opposite side of the book, or drop the post-only flag.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "post-only",
		Explanation:       "The order was flagged post-only but would have matched a resting order immediately.",
		Suggestion:        "Move the price away from the opposite side of the book, or drop the post-only flag.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "fillorkill",
		Explanation:       "The order was fill-or-kill and the book did not hold enough liquidity to fill it completely.",
		Suggestion:        "Reduce the lot size, widen the price, or drop the fill-or-kill flag.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "fok",
		Explanation:       "The order was fill-or-kill and the book did not hold enough liquidity to fill it completely.",
		Suggestion:        "Reduce the lot size, widen the price, or drop the fill-or-kill flag.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "ioc",
		Explanation:       "The order was immediate-or-cancel and nothing on the book crossed its price.",
		Suggestion:        "Price the order closer to the opposite side, or submit it as a resting order.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "max_matches",
		Explanation:       "The order hit its match-count cap before completing.",
		Suggestion:        "Raise maxMatches or split the order.",
		IsMatchingFailure: true,
	},
	{
		Pattern:           "insufficient_balance",
		Explanation:       "The account's free collateral does not cover the required margin for this order.",
		Suggestion:        "Deposit more collateral, lower the leverage, or reduce the lot size.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "insufficient_margin",
		Explanation:       "The position's margin would fall below the maintenance requirement.",
		Suggestion:        "Add margin or reduce the position before retrying.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "expired",
		Explanation:       "The order's expiry block has already passed.",
		Suggestion:        "Rebuild the order with a later expiry block.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "paused",
		Explanation:       "The market is paused; no orders are accepted right now.",
		Suggestion:        "Wait for the market to resume trading.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "leverage",
		Explanation:       "The requested leverage is outside the market's allowed range.",
		Suggestion:        "Use a leverage value within the market's limits.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "unknown_perpetual",
		Explanation:       "No perpetual market exists under that id.",
		Suggestion:        "Check the perpetual id against the exchange's market list.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "not_registered",
		Explanation:       "The account has never deposited to the exchange.",
		Suggestion:        "Deposit collateral first to register the account.",
		IsMatchingFailure: false,
	},
	{
		Pattern:           "order_not_found",
		Explanation:       "The referenced order id is not resting on the book.",
		Suggestion:        "It may already have filled or been cancelled; re-check open orders.",
		IsMatchingFailure: false,
	},
}

// Classify maps a raw revert reason to its explanation. Matching is
// case-insensitive substring search over the ordered rule table.
func Classify(rawReason string) domain.FailureExplanation {
	needle := strings.ToLower(rawReason)
	for _, r := range rules {
		if strings.Contains(needle, r.Pattern) {
			return domain.FailureExplanation{
				RawReason:         rawReason,
				Explanation:       r.Explanation,
				Suggestion:        r.Suggestion,
				IsMatchingFailure: r.IsMatchingFailure,
			}
		}
	}
	return domain.FailureExplanation{
		RawReason:   rawReason,
		Explanation: "The exchange rejected the call with an unrecognized reason: " + rawReason,
		Suggestion:  "Inspect the raw reason against the exchange contract's source.",
	}
}
