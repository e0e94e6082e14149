package ingest

// buildRecordSchema returns the JSON-Schema for one case record.
// The list variant needs the date to synthesize the output name, so it is required there.
func buildRecordSchema(requireDate bool) map[string]any {
	required := []string{"case_number"}
	if requireDate {
		required = append(required, "date")
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"case_number":   map[string]any{"type": "string", "minLength": 1},
			"full_pdf_link": map[string]any{"type": "string"},
			"date": map[string]any{
				"type":     "object",
				"required": []string{"year", "month", "day"},
				"properties": map[string]any{
					"year":  map[string]any{"type": "integer"},
					"month": map[string]any{"type": "integer", "minimum": 1, "maximum": 12},
					"day":   map[string]any{"type": "integer", "minimum": 1, "maximum": 31},
				},
			},
		},
		"required": required,
	}
}
