// Package score derives a decentralization score locally from holder data.
//
// The formula is a heuristic, not a statistically validated metric. It sums
// three independently capped components:
//
//	distribution = max(0, 50 - topHolderPct/2)
//	breadth      = min(30, totalHolders/5)
//	contracts    = max(0, 20 - percentInContracts/5)
//
// and returns round(min(100, sum)). Changing the coefficients is a design
// change, not a tuning knob.
package score

import (
	"math"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/token"
)

type Source string

const (
	SourceUpstream Source = "upstream"
	SourceComputed Source = "computed"
)

// Compute returns a score in [0,100]. A missing top holder or missing
// percentage counts as 0%.
func Compute(holders []token.Holder, totalHolders int, percentInContracts *float64) float64 {
	top := 0.0
	if len(holders) > 0 && holders[0].Percentage != nil {
		top = *holders[0].Percentage
	}
	contracts := 0.0
	if percentInContracts != nil {
		contracts = *percentInContracts
	}

	distribution := math.Max(0, 50-top/2)
	breadth := math.Min(30, float64(totalHolders)/5)
	exposure := math.Max(0, 20-contracts/5)

	return math.Round(math.Min(100, distribution+breadth+exposure))
}

// Resolve picks the score to report under the configured policy.
func Resolve(policy config.ScorePolicy, md token.Metadata) (float64, Source) {
	if policy == config.ScoreUpstream && md.DecentralizationScore != nil {
		return *md.DecentralizationScore, SourceUpstream
	}
	return Compute(md.Holders, md.TotalHolderCount, md.PercentInContracts), SourceComputed
}
