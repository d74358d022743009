// internal/listing/pacing/pacing.go
package pacing

import "math"

// Advertiser tier values as stored on the advertiser record.
const (
	TierFree = iota
	TierPremium
	TierPremiumPlus
)

// Score bands. The ranking query sorts on premium level first, so a pacing
// score can only reorder listings within one tier.
const (
	ScoreFree            = 1000
	ScorePremium         = 2000
	ScorePremiumPlusBase = 3000
	ScoreMax             = 3999
)

// State is an advertiser's budget/consumption snapshot at scoring time.
type State struct {
	Tier           int
	BudgetedViews  int
	ViewsRemaining int
	ViewsConsumed  int
	OverrideViews  int
}

// ComputeScore converts an advertiser budget state into an integer priority
// score in [1000, 3999].
//
// Free listings score 1000 and Premium 2000, both static. Premium+ scores
// 3000-3999 based on budget size and burn-down pacing; an exhausted or
// unconfigured Premium+ budget degrades to exactly 2000 so it sorts alongside
// regular Premium, never below it.
//
// Negative or missing inputs are coerced to zero. The function never fails.
func ComputeScore(s State) int {
	switch s.Tier {
	case TierPremiumPlus:
		return computePremiumPlusScore(s)
	case TierPremium:
		return ScorePremium
	default:
		return ScoreFree
	}
}

func computePremiumPlusScore(s State) int {
	budgeted := clampNonNegative(s.BudgetedViews)
	override := clampNonNegative(s.OverrideViews)
	consumed := clampNonNegative(s.ViewsConsumed)
	remaining := s.ViewsRemaining

	// Override views are additive on top of the configured budget.
	effectiveBudget := budgeted + override

	// A freshly configured budget reports remaining=0 before the first view
	// is ever consumed. Treat that as a full budget rather than exhausted.
	if remaining == 0 && consumed == 0 && effectiveBudget > 0 {
		remaining = effectiveBudget
	}

	if remaining < 0 {
		remaining = 0
	}

	// Exhausted or unconfigured budget: degrade to the Premium floor.
	if effectiveBudget <= 0 || remaining <= 0 {
		return ScorePremium
	}

	remainingRatio := float64(remaining) / float64(effectiveBudget)

	// Base score from budget size. Log scale rewards larger budgets without
	// letting them dominate.
	budgetScore := math.Log10(float64(effectiveBudget)+1) * 150

	// Burn-down throttling: advertisers who have nearly exhausted budget are
	// progressively deprioritized to spread remaining spend over time.
	pacingMultiplier := 1.0
	switch {
	case remainingRatio < 0.10:
		pacingMultiplier = 0.3
	case remainingRatio < 0.25:
		pacingMultiplier = 0.6
	case remainingRatio < 0.5:
		pacingMultiplier = 0.85
	}

	finalScore := budgetScore * pacingMultiplier

	// Small boost for absolute remaining views, capped so it cannot dominate.
	remainingBoost := math.Min(math.Log10(float64(remaining)+1)*20, 100)
	finalScore += remainingBoost

	return ScorePremiumPlusBase + int(math.Min(finalScore, 999))
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
