package document

import "strings"

// Segment is one recognized run of text and its confidence in [0,1].
type Segment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Page is the ordered OCR output for one rendered page.
type Page struct {
	Segments []Segment `json:"segments"`
}

// Text joins the segment texts with ", ".
func (p Page) Text() string {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, ", ")
}

// AverageConfidence is the mean segment confidence, 0 for an empty page.
func (p Page) AverageConfidence() float64 {
	if len(p.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.Segments {
		sum += s.Confidence
	}
	return sum / float64(len(p.Segments))
}

// Empty reports whether the page has no non-blank text.
func (p Page) Empty() bool {
	for _, s := range p.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// PagesText concatenates page texts in order, one page per paragraph.
func PagesText(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text())
	}
	return strings.Join(parts, "\n\n")
}
