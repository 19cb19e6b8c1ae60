package script

import (
	"strings"
)

// CodeParser parses and formats script code. It holds no per-call state and
// is safe for concurrent use.
type CodeParser struct {
	opts      Options
	validator GrammarValidator
}

// NewCodeParser creates a parser with the default operator set and the
// built-in strict grammar validator.
func NewCodeParser() *CodeParser {
	return NewCodeParserWithOptions(DefaultOptions(), NewStrictValidator())
}

// NewCodeParserWithOptions creates a parser with a custom operator set and
// grammar validator. A nil validator disables full validation.
func NewCodeParserWithOptions(opts Options, validator GrammarValidator) *CodeParser {
	return &CodeParser{opts: opts, validator: validator}
}

// ParseScript validates lines and, if they are structurally sound, parses
// them into elements. simpleCheck selects the brace-count check instead of
// the full grammar check.
func (p *CodeParser) ParseScript(lines []string, file string, simpleCheck bool) *ParseResponse {
	if err := p.PerformValidityCheck(lines, file, simpleCheck); err != nil {
		return &ParseResponse{Error: err}
	}
	return &ParseResponse{Values: p.parseElements(lines)}
}

// ParseScriptWithoutValidation parses lines that are already known to be
// well formed, such as generated output being re-read.
func (p *CodeParser) ParseScriptWithoutValidation(lines []string) *ParseResponse {
	return &ParseResponse{Values: p.parseElements(lines)}
}

// PerformValidityCheck returns nil when the text passes the requested check.
func (p *CodeParser) PerformValidityCheck(lines []string, file string, simpleCheck bool) *ScriptError {
	if simpleCheck {
		return PerformBasicValidityCheck(lines)
	}
	if p.validator == nil {
		return nil
	}
	return p.validator.Validate(file, strings.Join(lines, "\n"))
}

// FormatCode renders an element at the given indent level.
func (p *CodeParser) FormatCode(el *Element, indentLevel int) string {
	return FormatCode(el, indentLevel)
}

func (p *CodeParser) parseElements(lines []string) []*Element {
	code := strings.Join(StripComments(lines), "\n")
	return newTokenizer(code, &p.opts).parse()
}

// PerformBasicValidityCheck compares the number of open and close braces.
func PerformBasicValidityCheck(lines []string) *ScriptError {
	text := strings.Join(lines, "\n")
	if strings.Count(text, string(openObject)) != strings.Count(text, string(closeObject)) {
		return &ScriptError{
			Message: "Number of open and close curly brackets does not match. This indicates a syntax error somewhere in the file.",
		}
	}
	return nil
}

// FormatCode renders an element as indented script text, four spaces per
// level. Formatting formatted output again yields the same text.
func FormatCode(el *Element, indentLevel int) string {
	if el == nil {
		return ""
	}
	var sb strings.Builder
	writeElement(&sb, el, indentLevel)
	return sb.String()
}

// FormatElements renders a sequence of top-level elements, one per line.
func FormatElements(elements []*Element, indentLevel int) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		parts = append(parts, FormatCode(el, indentLevel))
	}
	return strings.Join(parts, "\n")
}

func writeElement(sb *strings.Builder, el *Element, depth int) {
	pad := strings.Repeat(" ", depth*indentWidth)
	sb.WriteString(pad)
	sb.WriteString(el.Key)
	if el.IsSimple {
		if strings.TrimSpace(el.Value) != "" {
			sb.WriteByte(' ')
			sb.WriteString(el.Operator)
			sb.WriteByte(' ')
			sb.WriteString(el.Value)
		}
		return
	}
	if el.Operator != "" {
		sb.WriteByte(' ')
		sb.WriteString(el.Operator)
	}
	sb.WriteString(" {\n")
	for _, child := range el.Children {
		writeElement(sb, child, depth+1)
		sb.WriteByte('\n')
	}
	sb.WriteString(pad)
	sb.WriteByte(closeObject)
}
