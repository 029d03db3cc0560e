package merge

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/crm-enrich/internal/model"
)

const (
	// maxTags caps free-form tag/keyword lists after a deduplicated merge.
	maxTags = 200
	// maxRelatedOrgs caps sub-entity lists.
	maxRelatedOrgs = 25
)

var tagFolder = cases.Fold()

// mergeTags unions existing and incoming tag lists: case-folded, trimmed,
// set-deduplicated, order of first appearance preserved, capped at maxTags.
func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))

	add := func(raw string) {
		tag := tagFolder.String(strings.TrimSpace(raw))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		if len(out) >= maxTags {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, t := range existing {
		add(t)
	}
	for _, t := range incoming {
		add(t)
	}
	return out
}

// projectOrgs converts an incoming related-org list to the stable stored
// shape, dropping nameless entries and capping at maxRelatedOrgs.
func projectOrgs(orgs []model.RelatedOrg) []model.RelatedOrg {
	out := make([]model.RelatedOrg, 0, len(orgs))
	for _, o := range orgs {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			continue
		}
		out = append(out, model.RelatedOrg{
			Name:         name,
			Domain:       strings.TrimSpace(strings.ToLower(o.Domain)),
			Relationship: strings.TrimSpace(o.Relationship),
		})
		if len(out) >= maxRelatedOrgs {
			break
		}
	}
	return out
}

// toStringSlice coerces a stored list value, which may have gone through a
// JSON round trip as []any, back to []string.
func toStringSlice(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toRelatedOrgs coerces an incoming related-org value to its typed form.
func toRelatedOrgs(v any) []model.RelatedOrg {
	switch t := v.(type) {
	case nil:
		return nil
	case []model.RelatedOrg:
		return t
	case []any:
		out := make([]model.RelatedOrg, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			org := model.RelatedOrg{}
			if s, ok := m["name"].(string); ok {
				org.Name = s
			}
			if s, ok := m["domain"].(string); ok {
				org.Domain = s
			}
			if s, ok := m["relationship"].(string); ok {
				org.Relationship = s
			}
			out = append(out, org)
		}
		return out
	}
	return nil
}
