package script

import (
	"slices"
	"strings"
	"unicode"
)

// tokenizer walks comment-free script text and builds Elements. It never
// fails as a whole: a malformed row produces no element and the walk resumes
// after it.
type tokenizer struct {
	code []rune
	pos  int
	opts *Options
}

func newTokenizer(code string, opts *Options) *tokenizer {
	return &tokenizer{code: []rune(code), opts: opts}
}

func (t *tokenizer) eof() bool {
	return t.pos >= len(t.code)
}

func (t *tokenizer) peek() rune {
	if t.eof() {
		return 0
	}
	return t.code[t.pos]
}

func (t *tokenizer) skipWhitespace() {
	for !t.eof() && unicode.IsSpace(t.code[t.pos]) {
		t.pos++
	}
}

func (t *tokenizer) isOperator(r rune) bool {
	return slices.Contains(t.opts.Operators, r)
}

func (t *tokenizer) isInlineOperator(s string) bool {
	for _, op := range t.opts.InlineOperators {
		if strings.EqualFold(op, s) {
			return true
		}
	}
	return false
}

// parse returns all top-level elements.
func (t *tokenizer) parse() []*Element {
	var result []*Element
	for {
		t.skipWhitespace()
		if t.eof() {
			return result
		}
		start := t.pos
		if el := t.element(); el != nil {
			result = append(result, el)
		}
		// Stray terminators never start an element.
		if t.pos == start {
			t.pos++
		}
	}
}

// elements collects children until the close brace of the current block.
// closed is false when the text ended first.
func (t *tokenizer) elements() (children []*Element, closed bool) {
	for {
		t.skipWhitespace()
		if t.eof() {
			return children, false
		}
		if t.peek() == closeObject {
			t.pos++
			return children, true
		}
		start := t.pos
		if el := t.element(); el != nil {
			children = append(children, el)
		}
		if t.pos == start {
			t.pos++
		}
	}
}

// skipBlock consumes an anonymous block whose open brace was just read.
func (t *tokenizer) skipBlock() {
	t.elements()
}

// element reads one element starting at the current position.
func (t *tokenizer) element() *Element {
	t.skipWhitespace()
	key, ok := t.token(true)
	if !ok {
		return nil
	}
	t.skipWhitespace()

	if t.eof() || !t.isOperator(t.peek()) {
		switch {
		case key == "" && t.peek() == openObject:
			t.pos++
			t.skipBlock()
			return nil
		case key == "":
			return nil
		case t.peek() == openObject:
			t.pos++
			children, closed := t.elements()
			if !closed {
				return nil
			}
			return &Element{Key: key, Children: children}
		}
		return &Element{Key: key, IsSimple: true}
	}

	op := t.operator()
	t.skipWhitespace()
	if t.eof() {
		return nil
	}
	switch t.peek() {
	case openObject:
		t.pos++
		children, closed := t.elements()
		if !closed || key == "" {
			return nil
		}
		return &Element{Key: key, Operator: op, Children: children}
	case closeObject:
		// Dangling operator; leave the brace to the enclosing block.
		return nil
	}

	value, ok := t.token(false)
	if !ok || value == "" || key == "" {
		return nil
	}
	if t.isInlineOperator(value) {
		mark := t.pos
		t.skipWhitespace()
		if t.peek() == openObject {
			t.pos++
			children, closed := t.elements()
			if !closed {
				return nil
			}
			return &Element{
				Key:      key,
				Operator: op,
				Children: []*Element{{Key: value, Children: children}},
			}
		}
		t.pos = mark
	}
	return &Element{Key: key, Operator: op, Value: value, IsSimple: true}
}

// operator consumes adjacent operator characters (">=", "!=").
func (t *tokenizer) operator() string {
	start := t.pos
	for !t.eof() && t.isOperator(t.code[t.pos]) {
		t.pos++
	}
	return string(t.code[start:t.pos])
}

// token reads a bare or quoted token. Quoted tokens keep their quotes and any
// inner whitespace. ok is false for an unterminated quote, in which case the
// rest of the text is consumed.
func (t *tokenizer) token(breakOnOperator bool) (string, bool) {
	if t.peek() == quote {
		start := t.pos
		t.pos++
		for !t.eof() {
			r := t.code[t.pos]
			t.pos++
			if r == quote {
				return string(t.code[start:t.pos]), true
			}
		}
		return "", false
	}
	start := t.pos
	for !t.eof() {
		r := t.code[t.pos]
		if unicode.IsSpace(r) || r == openObject || r == closeObject || r == quote {
			break
		}
		if breakOnOperator && t.isOperator(r) {
			break
		}
		t.pos++
	}
	return string(t.code[start:t.pos]), true
}

// StripComments drops blank and comment lines and cuts trailing comments
// that sit outside quotes.
func StripComments(lines []string) []string {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed[0] == commentID {
			continue
		}
		if idx := commentIndex(line); idx >= 0 {
			line = strings.TrimRightFunc(line[:idx], unicode.IsSpace)
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		result = append(result, line)
	}
	return result
}

// commentIndex returns the byte index of the first comment marker outside a
// quoted string, or -1.
func commentIndex(line string) int {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case quote:
			inQuote = !inQuote
		case commentID:
			if !inQuote {
				return i
			}
		}
	}
	return -1
}
