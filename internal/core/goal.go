package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CheckProgress returns the amount counted against g: the whole-type monthly
// total, or the single category's total when g names one.
func CheckProgress(g Goal, txs []Transaction) decimal.Decimal {
	if g.WholeType() {
		return MonthlySummary(txs, g.Year, g.Month).Of(g.Type)
	}
	if amt, ok := CategorySummary(txs, g.Year, g.Month, g.Type)[g.Category]; ok {
		return amt
	}
	return decimal.Zero
}

// AchievementRate is progress as a percentage of the target. A non-positive
// target yields zero. The rate is never clamped.
func AchievementRate(g Goal, txs []Transaction) decimal.Decimal {
	return rate(CheckProgress(g, txs), g.Target)
}

func rate(progress, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return progress.Mul(hundred).Div(target)
}

// Standing is how a rate reads for a goal's direction. Expense goals are good
// at or under 100%, income goals once they reach 100%.
type Standing string

const (
	StandingPending    Standing = "pending"
	StandingOnTrack    Standing = "on_track"
	StandingOverspent  Standing = "overspent"
	StandingInProgress Standing = "in_progress"
	StandingMet        Standing = "met"
)

func Assess(g Goal, rate decimal.Decimal) Standing {
	if !g.Target.IsPositive() {
		return StandingPending
	}
	over := rate.GreaterThan(hundred)
	reached := rate.GreaterThanOrEqual(hundred)
	switch g.Type {
	case Expense:
		if over {
			return StandingOverspent
		}
		return StandingOnTrack
	case Income:
		if reached {
			return StandingMet
		}
		return StandingInProgress
	}
	return StandingPending
}

// GoalProgress bundles a goal with its evaluation for rendering.
type GoalProgress struct {
	Goal     Goal            `json:"goal"`
	Progress decimal.Decimal `json:"progress"`
	Rate     decimal.Decimal `json:"rate"`
	Standing Standing        `json:"standing"`
}

// Evaluate computes progress, rate and standing in one pass.
func Evaluate(g Goal, txs []Transaction) GoalProgress {
	p := CheckProgress(g, txs)
	r := rate(p, g.Target)
	return GoalProgress{Goal: g, Progress: p, Rate: r, Standing: Assess(g, r)}
}
