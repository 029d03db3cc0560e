// Package merge implements the provenance-gated merge resolver: the only
// code path allowed to mutate a CanonicalRecord's fields.
package merge

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Candidate is one (fieldPath, newValue) pair produced by extraction or a
// secondary augmentation source. A nil Value with Null unset means the
// source produced nothing for this path and the candidate is a no-op; Null
// set stores an explicit "no value".
type Candidate struct {
	Path  model.FieldPath
	Value any
	Null  bool
}

// Result reports what a merge pass did, per field path.
type Result struct {
	Applied []model.FieldPath
	Dropped []model.FieldPath
}

// Resolver applies candidates onto canonical records under the ownership
// rule: a write is allowed iff the field's owning source matches the
// incoming source, or the existing value is empty.
type Resolver struct {
	catalog *model.Catalog
	now     func() time.Time
}

// NewResolver creates a resolver over the given field catalog.
func NewResolver(catalog *model.Catalog) *Resolver {
	return &Resolver{catalog: catalog, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Apply merges candidates from sourceID into rec field by field. Gated drops
// are silent: they land in Result.Dropped but never produce an error.
func (r *Resolver) Apply(rec *model.CanonicalRecord, sourceID string, candidates []Candidate) Result {
	if rec.Fields == nil {
		rec.Fields = make(map[model.FieldPath]any)
	}
	if rec.Provenance == nil {
		rec.Provenance = make(model.ProvenanceMap)
	}

	var result Result
	for _, cand := range candidates {
		def := r.catalog.ByPath(cand.Path)
		if def == nil {
			zap.L().Debug("merge: uncataloged field path dropped",
				zap.String("path", string(cand.Path)),
				zap.String("source", sourceID),
			)
			result.Dropped = append(result.Dropped, cand.Path)
			continue
		}

		if cand.Value == nil && !cand.Null {
			continue // absent: no-op, no provenance change
		}

		if def.Metadata {
			// Sync metadata describes the run itself, not business data.
			rec.Fields[cand.Path] = r.shape(def, rec, cand)
			result.Applied = append(result.Applied, cand.Path)
			continue
		}

		existing := rec.Fields[cand.Path]
		owner, owned := rec.Provenance[cand.Path]
		if owned && owner != sourceID && !isEmpty(existing) {
			result.Dropped = append(result.Dropped, cand.Path)
			continue
		}
		if !owned && !isEmpty(existing) {
			// Unattributed non-empty value, e.g. manually entered. Keep it.
			result.Dropped = append(result.Dropped, cand.Path)
			continue
		}

		if cand.Null {
			rec.Fields[cand.Path] = nil
			delete(rec.Provenance, cand.Path)
			result.Applied = append(result.Applied, cand.Path)
			continue
		}

		value := r.shape(def, rec, cand)
		if isEmpty(value) {
			// Writing empty over empty changes nothing and must not claim
			// ownership: provenance entries exist only for non-empty values.
			continue
		}

		rec.Fields[cand.Path] = value
		rec.Provenance[cand.Path] = sourceID
		result.Applied = append(result.Applied, cand.Path)
	}

	rec.UpdatedAt = r.now().UTC()
	return result
}

// shape applies kind-specific merge semantics once the gate has allowed a write.
func (r *Resolver) shape(def *model.FieldDef, rec *model.CanonicalRecord, cand Candidate) any {
	switch def.Kind {
	case model.KindTags:
		return mergeTags(toStringSlice(rec.Fields[cand.Path]), toStringSlice(cand.Value))
	case model.KindEntities:
		return projectOrgs(toRelatedOrgs(cand.Value))
	case model.KindObject:
		if m, ok := cand.Value.(map[string]any); ok {
			return pruneAbsent(m)
		}
		return cand.Value
	case model.KindText:
		if s, ok := cand.Value.(string); ok && def.MaxLen > 0 {
			return truncateRunes(s, def.MaxLen)
		}
		return cand.Value
	default:
		return cand.Value
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
