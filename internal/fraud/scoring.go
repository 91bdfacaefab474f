package fraud

import (
	"fmt"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

// Severity bands an anomaly score for triage.
type Severity string

const (
	SeverityHigh      Severity = "HIGH"
	SeverityMedium    Severity = "MEDIUM"
	SeverityLowMedium Severity = "LOW_MEDIUM"
	SeverityNone      Severity = "NONE"
)

// Default severity thresholds on the composite score.
const (
	DefaultHighThreshold      = 0.8
	DefaultMediumThreshold    = 0.6
	DefaultLowMediumThreshold = 0.4
)

// indicatorFlagThreshold marks a single raw indicator as noteworthy enough
// to be listed on an alert.
const indicatorFlagThreshold = 50.0

// Indicators are the declared-data anomaly indicators, each on a 0-100 scale.
type Indicators struct {
	DataInconsistency    float64 `json:"data_inconsistency"`
	PatternMatching      float64 `json:"pattern_matching"`
	DocumentAuthenticity float64 `json:"document_authenticity"`
}

// WeightPolicy overrides the default equal weighting of the indicators.
// Weights are normalized, so any positive values work.
type WeightPolicy struct {
	DataInconsistency    float64
	PatternMatching      float64
	DocumentAuthenticity float64
}

// Result is the outcome of scoring one set of indicators.
type Result struct {
	Score      float64  `json:"score"`
	Severity   Severity `json:"severity"`
	Indicators []string `json:"indicators"`
}

// Thresholds configure the severity bands.
type Thresholds struct {
	High      float64
	Medium    float64
	LowMedium float64
}

// DefaultThresholds returns the standard severity bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:      DefaultHighThreshold,
		Medium:    DefaultMediumThreshold,
		LowMedium: DefaultLowMediumThreshold,
	}
}

// Score computes the composite anomaly score in [0,1] for the given
// indicators. Pure and deterministic: identical inputs always yield the
// identical score, severity, and indicator list.
func Score(ind Indicators, policy *WeightPolicy, thresholds Thresholds) (Result, error) {
	for name, v := range map[string]float64{
		"data_inconsistency":    ind.DataInconsistency,
		"pattern_matching":      ind.PatternMatching,
		"document_authenticity": ind.DocumentAuthenticity,
	} {
		if v < 0 || v > 100 {
			return Result{}, errs.Validation("indicator %s must be between 0 and 100, got %.2f", name, v)
		}
	}

	weights := WeightPolicy{DataInconsistency: 1, PatternMatching: 1, DocumentAuthenticity: 1}
	if policy != nil {
		if policy.DataInconsistency < 0 || policy.PatternMatching < 0 || policy.DocumentAuthenticity < 0 {
			return Result{}, errs.Validation("weight policy values must not be negative")
		}
		weights = *policy
	}
	total := weights.DataInconsistency + weights.PatternMatching + weights.DocumentAuthenticity
	if total == 0 {
		return Result{}, errs.Validation("weight policy must have at least one positive weight")
	}

	score := (ind.DataInconsistency*weights.DataInconsistency +
		ind.PatternMatching*weights.PatternMatching +
		ind.DocumentAuthenticity*weights.DocumentAuthenticity) / total / 100

	return Result{
		Score:      score,
		Severity:   bandFor(score, thresholds),
		Indicators: flaggedIndicators(ind),
	}, nil
}

func bandFor(score float64, t Thresholds) Severity {
	switch {
	case score >= t.High:
		return SeverityHigh
	case score >= t.Medium:
		return SeverityMedium
	case score >= t.LowMedium:
		return SeverityLowMedium
	default:
		return SeverityNone
	}
}

// flaggedIndicators lists noteworthy indicators in a fixed order so the
// alert contents are deterministic.
func flaggedIndicators(ind Indicators) []string {
	flagged := []string{}
	if ind.DataInconsistency >= indicatorFlagThreshold {
		flagged = append(flagged, fmt.Sprintf("data_inconsistency=%.0f", ind.DataInconsistency))
	}
	if ind.PatternMatching >= indicatorFlagThreshold {
		flagged = append(flagged, fmt.Sprintf("pattern_matching=%.0f", ind.PatternMatching))
	}
	if ind.DocumentAuthenticity >= indicatorFlagThreshold {
		flagged = append(flagged, fmt.Sprintf("document_authenticity=%.0f", ind.DocumentAuthenticity))
	}
	return flagged
}
