package entity

import (
	"fmt"
)

// Variant identifies which input layout a record was loaded from.
type Variant string

const (
	VariantMapping Variant = "mapping" // {"<name>": {...}}
	VariantList    Variant = "list"    // [{...}], name synthesized from number and date
)

// DecisionDate is the date a judgment was handed down.
type DecisionDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// CaseRecord is one document to turn into one output text file.
type CaseRecord struct {
	Name       string        `json:"name"`
	CaseNumber string        `json:"case_number"`
	Date       *DecisionDate `json:"date,omitempty"`
	SourceURL  string        `json:"full_pdf_link,omitempty"`
	Variant    Variant       `json:"variant"`

	// Err is set when the record failed schema validation at load time.
	// The record still flows through the batch so the failure is reported per case.
	Err error `json:"-"`
}

// SynthesizeName builds the list-variant output name "{case_number}_{year}_{month}_{day}".
func SynthesizeName(caseNumber string, d DecisionDate) string {
	return fmt.Sprintf("%s_%d_%d_%d", caseNumber, d.Year, d.Month, d.Day)
}
