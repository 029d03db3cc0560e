package model

// RelatedOrg is the small stable projection stored for sub-entity lists.
type RelatedOrg struct {
	Name         string `json:"name"`
	Domain       string `json:"domain,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// ExtractedProfile is the schema-shaped output of the structured extractor.
// Every field the model omits is defaulted, so a profile is always
// schema-valid after Normalize.
type ExtractedProfile struct {
	CompanyName      string       `json:"company_name"`
	Summary          string       `json:"summary"`
	Industry         string       `json:"industry"`
	EmployeeEstimate string       `json:"employee_estimate"`
	Address          string       `json:"address"`
	HiringTrends     []string     `json:"hiring_trends"`
	OrgSignals       []string     `json:"org_signals"`
	RedFlags         []string     `json:"red_flags"`
	Tags             []string     `json:"tags"`
	Technologies     []string     `json:"technologies"`
	RelatedOrgs      []RelatedOrg `json:"related_orgs"`
}

// Normalize defaults all nil array fields to empty slices.
func (p *ExtractedProfile) Normalize() {
	if p.HiringTrends == nil {
		p.HiringTrends = []string{}
	}
	if p.OrgSignals == nil {
		p.OrgSignals = []string{}
	}
	if p.RedFlags == nil {
		p.RedFlags = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	if p.RelatedOrgs == nil {
		p.RelatedOrgs = []RelatedOrg{}
	}
}
