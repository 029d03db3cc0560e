// Package leadscore computes the deterministic additive lead score over a
// merged extraction profile. Fully recomputed every run; no memory of prior
// scores.
package leadscore

import (
	"regexp"
	"time"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Point values per qualifying signal.
const (
	pointsHiringTrends  = 30
	pointsDecisionMaker = 20
	pointsRedFlags      = 15
	pointsStaffingTags  = 25
	pointsVerified      = 10
)

// staffingRelevance matches tag text indicating staffing-industry relevance.
var staffingRelevance = regexp.MustCompile(`(?i)staffing|recruit|hiring|talent|workforce|temp\b|labou?r`)

// orgDecisionSignals are org-structure flags that indicate a reachable buyer.
var orgDecisionSignals = map[string]bool{
	"decision_maker_identified": true,
	"hr_team_identified":        true,
	"multiple_locations":        true,
}

// Score evaluates the profile and signal strength into a clamped [0,100]
// score with human-readable signal labels.
func Score(p *model.ExtractedProfile, strength model.SignalStrength, now time.Time) model.LeadScore {
	score := model.LeadScore{Signals: []string{}, ScoredAt: now.UTC()}
	if p == nil {
		return score
	}

	add := func(points int, label string) {
		score.Score += points
		score.Signals = append(score.Signals, label)
	}

	if len(p.HiringTrends) >= 2 {
		add(pointsHiringTrends, "multiple active hiring trends")
	}
	for _, sig := range p.OrgSignals {
		if orgDecisionSignals[sig] {
			add(pointsDecisionMaker, "organizational signal: "+sig)
		}
	}
	if len(p.RedFlags) > 0 {
		add(pointsRedFlags, "workforce risk flags present")
	}
	if hasStaffingTag(p.Tags) {
		add(pointsStaffingTags, "staffing-relevant keywords")
	}
	if strength == model.SignalVerified {
		add(pointsVerified, "firmographics verified")
	}

	if score.Score > 100 {
		score.Score = 100
	}
	if score.Score < 0 {
		score.Score = 0
	}
	return score
}

func hasStaffingTag(tags []string) bool {
	for _, t := range tags {
		if staffingRelevance.MatchString(t) {
			return true
		}
	}
	return false
}
