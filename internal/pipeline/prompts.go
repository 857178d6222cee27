package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/funeral-audit/internal/document"
)

func buildClassificationPrompt(labels []string, text string) string {
	parts := []string{
		"You are a document classifier.",
		"The input is OCR-recognized text from one scanned document.",
		"Identify the document type.",
		"",
		"Rules:",
		"1. Respond with the exact document type string from the options below.",
		"2. Do not explain your reasoning or output extra text.",
		"3. If no option applies, return an empty string.",
		"",
		"Options:",
	}
	for _, l := range labels {
		parts = append(parts, "- "+l)
	}
	parts = append(parts, "", "Document text:", text)
	return strings.Join(parts, "\n")
}

func buildFormattingPrompt(def document.Definition, text string) string {
	var b strings.Builder
	b.WriteString("You normalize OCR text from a funeral service document of type \"")
	b.WriteString(string(def.Type))
	b.WriteString("\" into a flat JSON object.\n")
	b.WriteString("Use exactly these keys, spelled as given, one per standard field:\n")
	b.WriteString(mustJSON(def.Fields))
	b.WriteString("\nValues are the text written in that field, as strings. ")
	b.WriteString("If a field is missing or illegible use null. Do not add other keys. ")
	b.WriteString("Return only the JSON object with no code fences, triple quotes or commentary.\n\n")
	b.WriteString("Document text:\n")
	b.WriteString(text)
	return b.String()
}

func buildGeneralAuditPrompt(doc *document.Document) string {
	_, total := doc.Count()
	var b strings.Builder
	b.WriteString("You are a meticulous document auditor. The input is the normalized content of a funeral service ")
	b.WriteString("document where client data accuracy is critical. Verify that every field is present, correctly ")
	b.WriteString("filled and consistent with the other fields (dates in order, ages matching dates, valid formats).\n")
	b.WriteString("List every invalid or missing field under \"issues\" with a short explanation. ")
	b.WriteString("Compute \"accuracy\" as the number of valid fields divided by ")
	b.WriteString(strconv.Itoa(total))
	b.WriteString(" (the number of standard fields), times 100, rounded to a whole percent.\n")
	b.WriteString(`Output JSON only, in the form {"issues": ["Date of Birth is missing"], "accuracy": "98%"}. `)
	b.WriteString("No code fences, triple quotes or extra text.\n\n")
	b.WriteString("Document type: ")
	b.WriteString(string(doc.Definition.Type))
	b.WriteString("\nFields:\n")
	b.WriteString(mustJSON(fieldsObject(doc.Normalized)))
	return b.String()
}

func buildComparisonPrompt(first, second *document.Document) string {
	var b strings.Builder
	b.WriteString("You are an analytical system. You receive two funeral service documents as key-value pairs. ")
	b.WriteString("The documents may label the same fact differently, for example \"1A: DECEDENT'S LEGAL FIRST NAME\" ")
	b.WriteString("and \"DECEDENT'S FIRST NAME\". Pair up the fields that describe the same fact and compare only those ")
	b.WriteString("intersecting fields.\n")
	b.WriteString("Two values match when they mean the same thing: ignore case and surrounding whitespace, treat ")
	b.WriteString("differently formatted numbers and dates as equal when they denote the same value, accept a value ")
	b.WriteString("contained in the other (a middle initial against a full middle name), treat \"Not Found\", empty ")
	b.WriteString("and null as equivalent, and accept common abbreviations (St. and Street, CA and California).\n")
	b.WriteString("Add one issue per mismatched pair, naming the fact, for example \"Social Security Number fields don't match\". ")
	b.WriteString("Compute \"accuracy\" as matched pairs divided by intersecting pairs, times 100, rounded to a whole percent; ")
	b.WriteString("with no mismatches it is \"100%\".\n")
	b.WriteString(`Output JSON only, in the form {"issues": [], "accuracy": "100%"}. `)
	b.WriteString("No code fences, triple quotes or extra text.\n\n")
	b.WriteString("Document 1 (")
	b.WriteString(string(first.Definition.Type))
	b.WriteString("):\n")
	b.WriteString(mustJSON(fieldsObject(first.Normalized)))
	b.WriteString("\n\nDocument 2 (")
	b.WriteString(string(second.Definition.Type))
	b.WriteString("):\n")
	b.WriteString(mustJSON(fieldsObject(second.Normalized)))
	return b.String()
}

// fieldsObject renders normalized fields as a JSON object that keeps the
// standard order.
func fieldsObject(fields []document.Field) json.RawMessage {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		k, _ := json.Marshal(f.Name)
		v, _ := json.Marshal(f.Value)
		b.Write(k)
		b.WriteString(": ")
		b.Write(v)
	}
	b.WriteByte('}')
	return json.RawMessage(b.String())
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
