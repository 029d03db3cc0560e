package merge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/crm-enrich/internal/model"
)

func TestMergeTagsDedupesCaseFolded(t *testing.T) {
	got := mergeTags([]string{"Forklift", "OSHA"}, []string{"forklift", " osha ", "WMS"})
	assert.Equal(t, []string{"forklift", "osha", "wms"}, got)
}

func TestMergeTagsDropsBlanks(t *testing.T) {
	got := mergeTags(nil, []string{"", "  ", "real"})
	assert.Equal(t, []string{"real"}, got)
}

func TestMergeTagsCapped(t *testing.T) {
	incoming := make([]string, maxTags+50)
	for i := range incoming {
		incoming[i] = fmt.Sprintf("tag-%d", i)
	}
	got := mergeTags(nil, incoming)
	assert.Len(t, got, maxTags)
}

func TestMergeTagsExistingWinsOrder(t *testing.T) {
	got := mergeTags([]string{"first"}, []string{"second", "first"})
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestProjectOrgsCapped(t *testing.T) {
	incoming := make([]model.RelatedOrg, maxRelatedOrgs+10)
	for i := range incoming {
		incoming[i] = model.RelatedOrg{Name: fmt.Sprintf("org-%d", i)}
	}
	got := projectOrgs(incoming)
	assert.Len(t, got, maxRelatedOrgs)
}

func TestToRelatedOrgsFromJSONRoundTrip(t *testing.T) {
	got := toRelatedOrgs([]any{
		map[string]any{"name": "Acme", "domain": "acme.com", "relationship": "parent"},
		"not a map",
	})
	assert.Equal(t, []model.RelatedOrg{{Name: "Acme", Domain: "acme.com", Relationship: "parent"}}, got)
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"blank string", "   ", true},
		{"string", "x", false},
		{"empty slice", []string{}, true},
		{"slice", []string{"a"}, false},
		{"empty any slice", []any{}, true},
		{"empty map", map[string]any{}, true},
		{"map of blanks", map[string]any{"a": "", "b": nil}, true},
		{"map with value", map[string]any{"a": "x"}, false},
		{"zero int", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isEmpty(tc.value))
		})
	}
}
