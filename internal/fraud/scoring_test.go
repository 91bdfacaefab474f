package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PR-ODINSON/HydroLink-sub000/pkg/errs"
)

func TestScoreLowIndicators(t *testing.T) {
	result, err := Score(Indicators{
		DataInconsistency:    10,
		PatternMatching:      5,
		DocumentAuthenticity: 8,
	}, nil, DefaultThresholds())

	require.NoError(t, err)
	assert.InDelta(t, 23.0/300.0, result.Score, 1e-9)
	assert.Equal(t, SeverityNone, result.Severity)
	assert.Empty(t, result.Indicators)
}

func TestScoreHighIndicators(t *testing.T) {
	result, err := Score(Indicators{
		DataInconsistency:    95,
		PatternMatching:      85,
		DocumentAuthenticity: 87,
	}, nil, DefaultThresholds())

	require.NoError(t, err)
	assert.InDelta(t, 0.89, result.Score, 1e-9)
	assert.Equal(t, SeverityHigh, result.Severity)
	assert.Equal(t, []string{
		"data_inconsistency=95",
		"pattern_matching=85",
		"document_authenticity=87",
	}, result.Indicators)
}

func TestScoreSeverityBands(t *testing.T) {
	cases := []struct {
		name     string
		value    float64
		severity Severity
	}{
		{"exactly high", 80, SeverityHigh},
		{"just below high", 79, SeverityMedium},
		{"exactly medium", 60, SeverityMedium},
		{"just below medium", 59, SeverityLowMedium},
		{"exactly low-medium", 40, SeverityLowMedium},
		{"just below low-medium", 39, SeverityNone},
		{"zero", 0, SeverityNone},
		{"maximum", 100, SeverityHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Score(Indicators{
				DataInconsistency:    tc.value,
				PatternMatching:      tc.value,
				DocumentAuthenticity: tc.value,
			}, nil, DefaultThresholds())
			require.NoError(t, err)
			assert.Equal(t, tc.severity, result.Severity)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	ind := Indicators{DataInconsistency: 73, PatternMatching: 51, DocumentAuthenticity: 66}

	first, err := Score(ind, nil, DefaultThresholds())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Score(ind, nil, DefaultThresholds())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScoreRejectsOutOfRangeIndicators(t *testing.T) {
	_, err := Score(Indicators{DataInconsistency: 101}, nil, DefaultThresholds())
	assert.True(t, errs.IsValidation(err))

	_, err = Score(Indicators{PatternMatching: -1}, nil, DefaultThresholds())
	assert.True(t, errs.IsValidation(err))
}

func TestScoreWeightPolicy(t *testing.T) {
	// All weight on a single indicator.
	result, err := Score(Indicators{
		DataInconsistency:    90,
		PatternMatching:      0,
		DocumentAuthenticity: 0,
	}, &WeightPolicy{DataInconsistency: 1}, DefaultThresholds())

	require.NoError(t, err)
	assert.InDelta(t, 0.9, result.Score, 1e-9)
	assert.Equal(t, SeverityHigh, result.Severity)

	_, err = Score(Indicators{}, &WeightPolicy{}, DefaultThresholds())
	assert.True(t, errs.IsValidation(err))
}

func TestScoreNeverExceedsOne(t *testing.T) {
	result, err := Score(Indicators{
		DataInconsistency:    100,
		PatternMatching:      100,
		DocumentAuthenticity: 100,
	}, &WeightPolicy{DataInconsistency: 5, PatternMatching: 1, DocumentAuthenticity: 3}, DefaultThresholds())

	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
}
