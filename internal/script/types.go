// Package script tokenizes and formats Clausewitz-style game script: nested
// `key = { ... }` objects, quoted strings, comparison operators and the inline
// color shorthand (`color = rgb { 1 2 3 }`).
package script

import (
	"fmt"
	"strings"
)

const (
	openObject  = '{'
	closeObject = '}'
	quote       = '"'
	commentID   = '#'

	// EqualsOperator is the default operator assigned to containers.
	EqualsOperator = "="

	indentWidth = 4
)

// Element is a single node of a parsed script.
//
// A simple element carries a Value (or only a Key for bare list values); a
// container carries ordered Children. Children order follows the source.
type Element struct {
	Key      string     `json:"key"`
	Operator string     `json:"operator,omitempty"`
	Value    string     `json:"value,omitempty"`
	Children []*Element `json:"children,omitempty"`
	IsSimple bool       `json:"is_simple"`
}

// Child returns the first direct child with the given key (case-insensitive).
func (e *Element) Child(key string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// ScriptError describes a structural problem found in script text. Line and
// Column are 1-based; both are zero when the check cannot locate the problem.
type ScriptError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *ScriptError) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
}

// ParseResponse holds the parsed elements or the validation error that
// prevented parsing.
type ParseResponse struct {
	Values []*Element
	Error  *ScriptError
}

// HasError reports whether the response carries a structural error.
func (r *ParseResponse) HasError() bool {
	return r.Error != nil
}

// Options configures the characters and keywords the tokenizer recognizes.
type Options struct {
	// Operators is the operator character set. Adjacent operator characters
	// form one operator (">=", "!=").
	Operators []rune
	// InlineOperators are value keywords that introduce a nested block
	// without an operator of their own, e.g. `color = rgb { 1 2 3 }`.
	InlineOperators []string
}

// DefaultOptions returns the operator set used by Paradox games.
func DefaultOptions() Options {
	return Options{
		Operators:       []rune{'=', '>', '<', '!'},
		InlineOperators: []string{"rgb", "hsv", "hsv360"},
	}
}
