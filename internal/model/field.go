package model

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldPath identifies a single field on a CanonicalRecord. Only paths
// enumerated in the catalog are ever read or written by the merge resolver.
type FieldPath string

// FieldKind describes the value shape stored at a field path.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindTags     FieldKind = "tags"     // case-folded, deduplicated string list
	KindEntities FieldKind = "entities" // bounded list of related-org projections
	KindObject   FieldKind = "object"   // nested map, pruned before persist
)

// FieldDef declares one catalog entry.
type FieldDef struct {
	Path     FieldPath `yaml:"path"`
	Kind     FieldKind `yaml:"kind"`
	Metadata bool      `yaml:"metadata"` // bypasses the provenance gate
	SFField  string    `yaml:"sf_field"` // Salesforce field for the optional CRM push
	MaxLen   int       `yaml:"max_len"`  // max rune length for text values, 0 = unlimited
}

// Catalog is the enumerable set of known field paths. The merge resolver only
// operates over catalog entries, so an unknown path is rejected up front
// instead of being string-keyed into the record.
type Catalog struct {
	Fields []FieldDef

	byPath   map[FieldPath]*FieldDef
	metadata []*FieldDef
}

// NewCatalog builds an indexed catalog from field definitions.
func NewCatalog(fields []FieldDef) *Catalog {
	c := &Catalog{
		Fields: fields,
		byPath: make(map[FieldPath]*FieldDef, len(fields)),
	}
	for i := range c.Fields {
		f := &c.Fields[i]
		c.byPath[f.Path] = f
		if f.Metadata {
			c.metadata = append(c.metadata, f)
		}
	}
	return c
}

// ByPath returns the definition for path, or nil if the path is not cataloged.
func (c *Catalog) ByPath(p FieldPath) *FieldDef {
	return c.byPath[p]
}

// Metadata returns the always-overwritten sync-metadata fields.
func (c *Catalog) Metadata() []*FieldDef {
	return c.metadata
}

//go:embed catalog.yaml
var catalogYAML []byte

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
	defaultCatalogErr  error
)

// LoadCatalog parses a catalog from YAML bytes.
func LoadCatalog(data []byte) (*Catalog, error) {
	var wrapper struct {
		Fields []FieldDef `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "model: parse field catalog")
	}
	if len(wrapper.Fields) == 0 {
		return nil, eris.New("model: field catalog is empty")
	}
	return NewCatalog(wrapper.Fields), nil
}

// DefaultCatalog returns the catalog parsed from the embedded catalog.yaml.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = LoadCatalog(catalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}
