package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/crm-enrich/internal/merge"
	"github.com/sells-group/crm-enrich/internal/model"
)

// Source IDs used for provenance attribution.
const (
	sourceEnrichment     = "enrichment"
	sourceFirmographics  = "firmographics"
	firmoProviderName    = "firmograph"
	defaultSourceLabelID = "crm-enrich"
)

// profileCandidates maps an extracted profile onto catalog field paths. Empty
// values become absent candidates so extraction never blanks a field it
// simply failed to find.
func profileCandidates(p *model.ExtractedProfile) []merge.Candidate {
	cands := []merge.Candidate{
		textCandidate("name", p.CompanyName),
		textCandidate("description", p.Summary),
		textCandidate("industry", p.Industry),
		textCandidate("employee_estimate", p.EmployeeEstimate),
		textCandidate("address", p.Address),
		listCandidate("hiring_trends", p.HiringTrends),
		listCandidate("org_signals", p.OrgSignals),
		listCandidate("red_flags", p.RedFlags),
		listCandidate("tags", p.Tags),
		listCandidate("technologies", p.Technologies),
	}
	if len(p.RelatedOrgs) > 0 {
		cands = append(cands, merge.Candidate{Path: "related_orgs", Value: p.RelatedOrgs})
	}
	return cands
}

// firmoCandidates projects useful fields out of a raw vendor record. Unknown
// keys stay in the raw archive; only the mapped subset competes in the merge.
func firmoCandidates(record map[string]any) []merge.Candidate {
	if record == nil {
		return nil
	}
	var cands []merge.Candidate

	for path, key := range map[model.FieldPath]string{
		"name":              "name",
		"legal_name":        "legal_name",
		"domain":            "domain",
		"industry":          "industry",
		"phone":             "phone",
		"employee_estimate": "employee_count",
		"revenue_range":     "revenue_range",
	} {
		if s := stringField(record, key); s != "" {
			cands = append(cands, merge.Candidate{Path: path, Value: s})
		}
	}
	if links, ok := record["social_links"].(map[string]any); ok && len(links) > 0 {
		cands = append(cands, merge.Candidate{Path: "social_links", Value: links})
	}
	return cands
}

// metadataCandidates produces the always-written sync metadata for a run.
func metadataCandidates(now time.Time, strength model.SignalStrength) []merge.Candidate {
	return []merge.Candidate{
		{Path: "synced_at", Value: now.UTC().Format(time.RFC3339)},
		{Path: "signal_strength", Value: string(strength)},
		{Path: "source_label", Value: defaultSourceLabelID},
	}
}

func textCandidate(path model.FieldPath, s string) merge.Candidate {
	c := merge.Candidate{Path: path}
	if strings.TrimSpace(s) != "" {
		c.Value = s
	}
	return c
}

func listCandidate(path model.FieldPath, items []string) merge.Candidate {
	c := merge.Candidate{Path: path}
	if len(items) > 0 {
		c.Value = items
	}
	return c
}

// stringField coerces a vendor record field that may arrive as a string or a
// number into its display string.
func stringField(record map[string]any, key string) string {
	switch v := record[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	}
	return ""
}
