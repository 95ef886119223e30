package sheetform

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compileTransform compiles a mapping transform expression. The expression sees
// value (the raw sheet value) and label (the row label it came from).
// An empty expression compiles to nil, meaning "pass the value through".
func compileTransform(expression string) (*vm.Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile transform %q: %w", expression, err)
	}
	return program, nil
}

// apply evaluates the mapping's transform against one sheet value.
func (m Mapping) apply(label string, value any) (any, error) {
	if m.program == nil {
		return value, nil
	}
	result, err := expr.Run(m.program, map[string]any{
		"value": value,
		"label": label,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate transform %q: %w", m.Transform, err)
	}
	return result, nil
}
