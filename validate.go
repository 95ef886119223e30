package sheetform

import (
	"context"
	"errors"
	"fmt"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Template cannot be filled at all
	SeverityWarning                 // Some labels will never reach the document
)

// ValidationIssue represents a single problem found while checking a mapping table against its template.
type ValidationIssue struct {
	Severity Severity
	Template string
	Field    string // empty for template-level issues
	Message  string
}

// String formats the issue as "[ERROR] f1040: message" or "[WARN] f1040 (field): message".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	if v.Field != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", sev, v.Template, v.Field, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", sev, v.Template, v.Message)
}

// Validate checks every mapping table in the registry against its template.
// A template that cannot be fetched or parsed is an error issue; a mapped field
// the template does not define is a warning. A non-nil error means no check
// could run at all.
func (f *Filler) Validate(ctx context.Context) ([]ValidationIssue, error) {
	if f.opts.store == nil {
		return nil, fmt.Errorf("no template store configured: use WithTemplateStore or WithTemplateDir")
	}
	var issues []ValidationIssue
	for _, name := range f.opts.registry.Templates() {
		table, _ := f.opts.registry.Lookup(name)
		fields, err := f.Fields(ctx, name)
		if err != nil {
			var te *TemplateError
			if errors.As(err, &te) {
				issues = append(issues, ValidationIssue{
					Severity: SeverityError,
					Template: name,
					Message:  fmt.Sprintf("%s: %v", te.Kind, te.Err),
				})
				continue
			}
			return nil, err
		}
		issues = append(issues, validateTable(table, fields)...)
	}
	return issues, nil
}

// validateTable reports mapped fields that are missing from the template's field set.
func validateTable(table *MappingTable, fields []FieldInfo) []ValidationIssue {
	defined := make(map[string]struct{}, len(fields))
	for _, fi := range fields {
		defined[fi.Name] = struct{}{}
	}
	var issues []ValidationIssue
	for _, field := range table.Fields() {
		if _, ok := defined[field]; ok {
			continue
		}
		issues = append(issues, ValidationIssue{
			Severity: SeverityWarning,
			Template: table.Template(),
			Field:    field,
			Message:  fmt.Sprintf("mapped from %q but the template has no such field", table.LabelsFor(field)),
		})
	}
	return issues
}
