package report

import "fmt"

// Tier is the recommended stance for one channel.
type Tier string

const (
	TierConcentrate Tier = "concentrate"
	TierSmallTest   Tier = "small-test"
	TierBalance     Tier = "balance"
	TierReduce      Tier = "reduce"
)

// Rule maps allocation ratios up to and including MaxRatio (whole percent) to a tier.
type Rule struct {
	MaxRatio int
	Tier     Tier
}

// Tiers is evaluated in order after the best-channel rule; the first matching row wins.
var Tiers = []Rule{
	{MaxRatio: 10, Tier: TierSmallTest},
	{MaxRatio: 30, Tier: TierBalance},
	{MaxRatio: 100, Tier: TierReduce},
}

// Classify picks the tier for a channel. The best channel always concentrates.
func Classify(best bool, ratio int) Tier {
	if best {
		return TierConcentrate
	}
	for _, rule := range Tiers {
		if ratio <= rule.MaxRatio {
			return rule.Tier
		}
	}
	return TierReduce
}

// Action renders the recommendation for a tier.
func (t Tier) Action(capText string) string {
	switch t {
	case TierConcentrate:
		return fmt.Sprintf("Maintain concentration up to the %s per-channel cap.", capText)
	case TierSmallTest:
		return "Keep it running as a small test and watch for signs of improvement."
	case TierBalance:
		return "Operate in balance and reduce automatically if ROAS falls below the recent average."
	default:
		return "Consider a partial reduction toward stronger channels."
	}
}
