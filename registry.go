package sheetform

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

//go:embed mappings.yaml
var defaultMappings []byte

// Mapping is the target of one spreadsheet label.
type Mapping struct {
	Field     string // exact field identifier in the template
	Transform string // optional expression, evaluated with value and label bound

	program *vm.Program
}

// MappingTable translates the labels written in one sheet into the field
// identifiers of one template. Labels are case-sensitive.
type MappingTable struct {
	template string
	entries  map[string]Mapping
}

// NewMappingTable builds a table for template. Each label must be non-empty,
// each mapping must name a field, and transforms must compile. A label given
// twice keeps its later mapping.
func NewMappingTable(template string, labels []string, mappings []Mapping) (*MappingTable, error) {
	if len(labels) != len(mappings) {
		return nil, fmt.Errorf("mapping table %q: %d labels for %d mappings", template, len(labels), len(mappings))
	}
	t := &MappingTable{template: template, entries: make(map[string]Mapping, len(labels))}
	for i, label := range labels {
		m := mappings[i]
		if label == "" {
			return nil, fmt.Errorf("mapping table %q: entry %d has an empty label", template, i+1)
		}
		if m.Field == "" {
			return nil, fmt.Errorf("mapping table %q: label %q has no field", template, label)
		}
		program, err := compileTransform(m.Transform)
		if err != nil {
			return nil, fmt.Errorf("mapping table %q: label %q: %w", template, label, err)
		}
		m.program = program
		t.entries[label] = m
	}
	return t, nil
}

// MustMappingTable builds a table of plain label → field pairs and panics on error.
func MustMappingTable(template string, pairs map[string]string) *MappingTable {
	labels := make([]string, 0, len(pairs))
	for label := range pairs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	mappings := make([]Mapping, len(labels))
	for i, label := range labels {
		mappings[i] = Mapping{Field: pairs[label]}
	}
	t, err := NewMappingTable(template, labels, mappings)
	if err != nil {
		panic(err)
	}
	return t
}

// Template returns the template this table targets.
func (t *MappingTable) Template() string { return t.template }

// Len returns the number of labels in the table.
func (t *MappingTable) Len() int { return len(t.entries) }

// Lookup returns the mapping for label.
func (t *MappingTable) Lookup(label string) (Mapping, bool) {
	m, ok := t.entries[label]
	return m, ok
}

// Labels returns every label, sorted.
func (t *MappingTable) Labels() []string {
	labels := make([]string, 0, len(t.entries))
	for label := range t.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Fields returns the distinct field identifiers the table targets, sorted.
func (t *MappingTable) Fields() []string {
	seen := make(map[string]struct{}, len(t.entries))
	var fields []string
	for _, m := range t.entries {
		if _, ok := seen[m.Field]; ok {
			continue
		}
		seen[m.Field] = struct{}{}
		fields = append(fields, m.Field)
	}
	sort.Strings(fields)
	return fields
}

// LabelsFor returns the labels mapped onto field, sorted.
func (t *MappingTable) LabelsFor(field string) []string {
	var labels []string
	for label, m := range t.entries {
		if m.Field == field {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Registry is the read-only, process-wide set of mapping tables keyed by template name.
// Its set of templates is fixed at construction.
type Registry struct {
	tables map[string]*MappingTable
}

// NewRegistry builds a registry from tables. A later table for the same template replaces an earlier one.
func NewRegistry(tables ...*MappingTable) *Registry {
	r := &Registry{tables: make(map[string]*MappingTable, len(tables))}
	for _, t := range tables {
		if t == nil {
			continue
		}
		r.tables[t.template] = t
	}
	return r
}

// Lookup returns the table for template. A missing table is a valid state,
// callers resolve nothing for that template.
func (r *Registry) Lookup(template string) (*MappingTable, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tables[template]
	return t, ok
}

// Templates returns the names of all templates with a table, sorted.
func (r *Registry) Templates() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// registryFile is the on-disk layout of a mapping file:
//
//	templates:
//	  f1040:
//	    - label: First name
//	      field: topmostSubform[0].Page1[0].f1_04[0]
//	    - label: Wages
//	      field: topmostSubform[0].Page1[0].f1_32[0]
//	      transform: 'value * 1'
type registryFile struct {
	Templates map[string][]registryEntry `yaml:"templates"`
}

type registryEntry struct {
	Label     string `yaml:"label"`
	Field     string `yaml:"field"`
	Transform string `yaml:"transform,omitempty"`
}

// LoadRegistry reads a YAML mapping file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file %q: %w", path, err)
	}
	r, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("mapping file %q: %w", path, err)
	}
	return r, nil
}

// ParseRegistry decodes a YAML mapping document.
func ParseRegistry(data []byte) (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	names := make([]string, 0, len(rf.Templates))
	for name := range rf.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]*MappingTable, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("parse mappings: empty template name")
		}
		entries := rf.Templates[name]
		labels := make([]string, len(entries))
		mappings := make([]Mapping, len(entries))
		for i, e := range entries {
			labels[i] = e.Label
			mappings[i] = Mapping{Field: e.Field, Transform: e.Transform}
		}
		t, err := NewMappingTable(name, labels, mappings)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return NewRegistry(tables...), nil
}

// DefaultRegistry returns the registry compiled into the binary.
func DefaultRegistry() *Registry {
	r, err := ParseRegistry(defaultMappings)
	if err != nil {
		panic(fmt.Sprintf("embedded mappings: %v", err))
	}
	return r
}
