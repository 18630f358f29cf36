package model

// Warning records one element skipped in tolerant mode.
type Warning struct {
	Section string
	Excerpt string
	Reason  string
}

// ConversionReport is returned to the front end after a conversion attempt.
// It is never persisted. Warnings keep the order in which elements were
// skipped; in strict mode the list is always empty.
type ConversionReport struct {
	OutputPath string
	Success    bool
	Warnings   []Warning
}
