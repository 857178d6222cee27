package document

import "strings"

// NotFound is the value of a standard field the formatter could not fill.
const NotFound = "Not Found"

// Field is one normalized key/value pair.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Document is one classified upload. Normalized is empty until formatted and
// then holds exactly Definition.Fields, in order.
type Document struct {
	Source     string
	Definition Definition
	Pages      []Page
	Normalized []Field
}

// Text is the OCR text the classifier and formatter read.
func (d *Document) Text() string {
	return PagesText(d.Pages)
}

// Normalize fills Normalized from values in standard field order. Keys are
// matched exactly first, then case-insensitively; missing or blank values
// become NotFound and unknown keys are dropped.
func (d *Document) Normalize(values map[string]string) {
	folded := make(map[string]string, len(values))
	for k, v := range values {
		folded[strings.ToLower(strings.TrimSpace(k))] = v
	}
	d.Normalized = make([]Field, 0, len(d.Definition.Fields))
	for _, name := range d.Definition.Fields {
		v, ok := values[name]
		if !ok {
			v = folded[strings.ToLower(name)]
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "null") {
			v = NotFound
		}
		d.Normalized = append(d.Normalized, Field{Name: name, Value: v})
	}
}

// Count returns how many standard fields have a value other than NotFound.
func (d *Document) Count() (filled, total int) {
	for _, f := range d.Normalized {
		if f.Value != NotFound {
			filled++
		}
	}
	return filled, len(d.Normalized)
}
