package leadscore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/crm-enrich/internal/model"
)

var scoredAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScoreNilProfile(t *testing.T) {
	got := Score(nil, model.SignalHigh, scoredAt)
	assert.Equal(t, 0, got.Score)
	assert.Empty(t, got.Signals)
	assert.Equal(t, scoredAt, got.ScoredAt)
}

func TestScoreEmptyProfile(t *testing.T) {
	got := Score(&model.ExtractedProfile{}, model.SignalLow, scoredAt)
	assert.Equal(t, 0, got.Score)
	assert.Empty(t, got.Signals)
}

func TestScoreHiringTrendsRequireTwo(t *testing.T) {
	one := Score(&model.ExtractedProfile{HiringTrends: []string{"warehouse"}}, model.SignalLow, scoredAt)
	assert.Equal(t, 0, one.Score)

	two := Score(&model.ExtractedProfile{HiringTrends: []string{"warehouse", "drivers"}}, model.SignalLow, scoredAt)
	assert.Equal(t, 30, two.Score)
	assert.Contains(t, two.Signals, "multiple active hiring trends")
}

func TestScoreDecisionSignals(t *testing.T) {
	got := Score(&model.ExtractedProfile{
		OrgSignals: []string{"decision_maker_identified", "hr_team_identified", "something_else"},
	}, model.SignalLow, scoredAt)
	assert.Equal(t, 40, got.Score)
	assert.Len(t, got.Signals, 2)
}

func TestScoreRedFlags(t *testing.T) {
	got := Score(&model.ExtractedProfile{RedFlags: []string{"high_turnover"}}, model.SignalLow, scoredAt)
	assert.Equal(t, 15, got.Score)
}

func TestScoreStaffingTags(t *testing.T) {
	got := Score(&model.ExtractedProfile{Tags: []string{"temporary labour"}}, model.SignalLow, scoredAt)
	assert.Equal(t, 25, got.Score)
}

func TestScoreVerifiedBonus(t *testing.T) {
	got := Score(&model.ExtractedProfile{}, model.SignalVerified, scoredAt)
	assert.Equal(t, 10, got.Score)
}

func TestScoreClampedAtHundred(t *testing.T) {
	got := Score(&model.ExtractedProfile{
		HiringTrends: []string{"warehouse", "drivers"},
		OrgSignals:   []string{"decision_maker_identified", "hr_team_identified", "multiple_locations"},
		RedFlags:     []string{"layoffs"},
		Tags:         []string{"staffing"},
	}, model.SignalVerified, scoredAt)
	assert.Equal(t, 100, got.Score)
	assert.Len(t, got.Signals, 7)
}
