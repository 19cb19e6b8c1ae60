package script

import (
	"slices"
	"unicode"
)

// GrammarValidator performs a full grammar check of one script file and
// reports the first error with its location.
type GrammarValidator interface {
	Validate(file, code string) *ScriptError
}

// StrictValidator is the built-in grammar check. It rejects unterminated
// quotes, unbalanced braces and operators without a value.
type StrictValidator struct {
	operators []rune
}

// NewStrictValidator creates a validator using the default operator set.
func NewStrictValidator() *StrictValidator {
	return &StrictValidator{operators: DefaultOptions().Operators}
}

type position struct {
	line, column int
}

// Validate implements GrammarValidator.
func (v *StrictValidator) Validate(_ string, code string) *ScriptError {
	var (
		opens          []position
		line, col      = 1, 0
		inQuote        bool
		inComment      bool
		quoteStart     position
		pendingOp      bool
		pendingOpStart position
	)

	runes := []rune(code)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		col++
		if r == '\n' {
			line++
			col = 0
			inComment = false
			continue
		}
		if inComment {
			continue
		}
		if inQuote {
			if r == quote {
				inQuote = false
			}
			continue
		}

		switch {
		case r == commentID:
			inComment = true
		case r == quote:
			inQuote = true
			quoteStart = position{line, col}
			pendingOp = false
		case r == openObject:
			opens = append(opens, position{line, col})
			pendingOp = false
		case r == closeObject:
			if pendingOp {
				return errorAt(pendingOpStart, "Operator is missing a value")
			}
			if len(opens) == 0 {
				return errorAt(position{line, col}, "Unexpected closing curly bracket")
			}
			opens = opens[:len(opens)-1]
		case slices.Contains(v.operators, r):
			if !pendingOp {
				pendingOp = true
				pendingOpStart = position{line, col}
			}
		case unicode.IsSpace(r):
		default:
			pendingOp = false
		}
	}

	switch {
	case inQuote:
		return errorAt(quoteStart, "Unterminated quoted string")
	case pendingOp:
		return errorAt(pendingOpStart, "Operator is missing a value")
	case len(opens) > 0:
		return errorAt(opens[len(opens)-1], "Curly bracket is never closed")
	}
	return nil
}

func errorAt(p position, msg string) *ScriptError {
	return &ScriptError{Line: p.line, Column: p.column, Message: msg}
}
