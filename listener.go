package sheetform

import "github.com/javajack/sheetform/form"

// FieldListener is notified around field writes while a template is filled.
// Implement it to audit or veto individual writes.
type FieldListener interface {
	// BeforeField is called before text is written into a field that has a value.
	// Return false to leave the field untouched; it is then reported as skipped.
	BeforeField(template string, field form.Field, text string) bool

	// AfterField is called for every field of the template once it has been
	// filled, skipped or has failed.
	AfterField(template string, outcome FieldOutcome)
}
