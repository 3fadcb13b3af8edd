// Package prompt holds fixed instruction templates with {{variable}}
// placeholders.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a parsed instruction template. Values are substituted in a
// single pass, so placeholders inside a value are left as typed.
type Template struct {
	name string
	text string
	vars []string
}

// MustNew parses text and panics if it has no placeholders. Templates are
// package-level constants, so a bad one is a programming error.
func MustNew(name, text string) Template {
	vars := ExtractVariables(text)
	if len(vars) == 0 {
		panic(fmt.Sprintf("prompt %s: template has no variables", name))
	}
	return Template{name: name, text: text, vars: vars}
}

func (t Template) Name() string { return t.name }

// Variables lists the placeholders in first-appearance order.
func (t Template) Variables() []string { return t.vars }

// Render fills every placeholder. A missing value is an error; extra values
// are ignored.
func (t Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("render prompt %s: missing variables: %s", t.name, strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(t.text, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// ExtractVariables returns the distinct variable names found in text.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}
