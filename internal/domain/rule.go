package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// RuleName identifies a setup predicate.
type RuleName string

const (
	RuleTrend       RuleName = "trend"
	RuleOversold    RuleName = "oversold"
	RuleInsideBar   RuleName = "inside_bar"
	RuleVolumeSpike RuleName = "volume_spike"
	RuleBreakout    RuleName = "breakout"
)

// AllRules lists every known rule in display order.
var AllRules = []RuleName{RuleBreakout, RuleTrend, RuleOversold, RuleInsideBar, RuleVolumeSpike}

// Title returns a human-readable representation.
func (r RuleName) Title() string {
	switch r {
	case RuleTrend:
		return "Trend"
	case RuleOversold:
		return "Oversold Reversal"
	case RuleInsideBar:
		return "Inside Bar"
	case RuleVolumeSpike:
		return "Volume Spike"
	case RuleBreakout:
		return "Breakout"
	default:
		return string(r)
	}
}

// Valid reports whether the rule is known.
func (r RuleName) Valid() bool {
	for _, known := range AllRules {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRuleNames normalizes a rule selection. Duplicates are dropped, order is kept.
func ParseRuleNames(names []string) ([]RuleName, error) {
	out := make([]RuleName, 0, len(names))
	seen := make(map[RuleName]struct{}, len(names))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			rule := RuleName(strings.ReplaceAll(part, "-", "_"))
			if !rule.Valid() {
				return nil, errors.Wrapf(ErrConfiguration, "unknown rule %q", part)
			}
			if _, dup := seen[rule]; dup {
				continue
			}
			seen[rule] = struct{}{}
			out = append(out, rule)
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "no rules selected")
	}
	return out, nil
}
