package document

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

// Type is the closed set of document kinds the pipeline can normalize.
type Type string

const (
	TypeDeathRegistrationWorksheet Type = "Death Registration Worksheet"
	TypeCertificateOfDeath         Type = "Certificate of Death"
)

// Types lists every supported document type.
var Types = []Type{TypeDeathRegistrationWorksheet, TypeCertificateOfDeath}

func (t Type) valid() bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

//go:embed catalog.yaml
var catalogYAML []byte

// Definition is a document type and its ordered standard fields.
type Definition struct {
	Type        Type     `yaml:"type"`
	Description string   `yaml:"description"`
	Fields      []string `yaml:"fields"`
}

type catalogFile struct {
	Documents []Definition `yaml:"documents"`
}

// Catalog resolves classifier labels to definitions.
type Catalog struct {
	defs    []Definition
	byLabel map[string]Definition
}

// ParseCatalog decodes and validates a catalog. Every known type must be
// defined exactly once with a non-empty list of unique fields.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{byLabel: make(map[string]Definition, len(f.Documents))}
	for _, d := range f.Documents {
		if !d.Type.valid() {
			return nil, fmt.Errorf("catalog: unknown document type %q", d.Type)
		}
		label := strings.ToLower(string(d.Type))
		if _, dup := c.byLabel[label]; dup {
			return nil, fmt.Errorf("catalog: %q defined twice", d.Type)
		}
		if len(d.Fields) == 0 {
			return nil, fmt.Errorf("catalog: %q has no fields", d.Type)
		}
		seen := make(map[string]struct{}, len(d.Fields))
		for _, field := range d.Fields {
			if strings.TrimSpace(field) == "" {
				return nil, fmt.Errorf("catalog: %q has a blank field", d.Type)
			}
			if _, dup := seen[field]; dup {
				return nil, fmt.Errorf("catalog: %q repeats field %q", d.Type, field)
			}
			seen[field] = struct{}{}
		}
		c.defs = append(c.defs, d)
		c.byLabel[label] = d
	}
	for _, t := range Types {
		if _, ok := c.byLabel[strings.ToLower(string(t))]; !ok {
			return nil, fmt.Errorf("catalog: missing definition for %q", t)
		}
	}
	return c, nil
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

// Labels returns the type names in catalog order.
func (c *Catalog) Labels() []string {
	out := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, string(d.Type))
	}
	return out
}

// Definition returns the definition for t.
func (c *Catalog) Definition(t Type) (Definition, bool) {
	d, ok := c.byLabel[strings.ToLower(string(t))]
	return d, ok
}

// Lookup resolves a classifier reply by exact match after NormalizeLabel.
func (c *Catalog) Lookup(reply string) (Definition, error) {
	label := NormalizeLabel(reply)
	if d, ok := c.byLabel[label]; ok && label != "" {
		return d, nil
	}
	return Definition{}, common.UnknownDocumentTypeError(label)
}

// NormalizeLabel trims whitespace, surrounding quotes and a trailing period,
// then lower-cases.
func NormalizeLabel(reply string) string {
	s := strings.TrimSpace(reply)
	for {
		t := strings.TrimSpace(strings.Trim(s, "\"'`"))
		t = strings.TrimSuffix(t, ".")
		if t == s {
			break
		}
		s = t
	}
	return strings.ToLower(s)
}
