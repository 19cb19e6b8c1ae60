package script

import (
	"strings"
	"testing"
)

func TestStrictValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		wantMsg string
		line    int
		column  int
	}{
		{name: "valid", code: "a = { b = 1 c >= 2 }\nd = \"x # y\""},
		{name: "valid comment after operator", code: "a = # note\nb"},
		{name: "unterminated quote", code: `a = "x`, wantMsg: "Unterminated quoted string", line: 1, column: 5},
		{name: "stray close", code: "}", wantMsg: "Unexpected closing curly bracket", line: 1, column: 1},
		{name: "operator at end", code: "a = ", wantMsg: "Operator is missing a value", line: 1, column: 3},
		{name: "operator before close", code: "a = { b = }", wantMsg: "Operator is missing a value", line: 1, column: 9},
		{name: "unclosed block", code: "a = {\n  b = 1", wantMsg: "Curly bracket is never closed", line: 1, column: 5},
		{name: "error on later line", code: "a = 1\nb = 2\n}", wantMsg: "Unexpected closing curly bracket", line: 3, column: 1},
	}

	v := NewStrictValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate("common/test.txt", tt.code)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %q, got nil", tt.wantMsg)
			}
			if err.Message != tt.wantMsg || err.Line != tt.line || err.Column != tt.column {
				t.Fatalf("got %q at %d:%d, want %q at %d:%d", err.Message, err.Line, err.Column, tt.wantMsg, tt.line, tt.column)
			}
		})
	}
}

func TestPerformBasicValidityCheck(t *testing.T) {
	t.Parallel()

	if err := PerformBasicValidityCheck([]string{"a = {", "}"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := PerformBasicValidityCheck([]string{"a = {", "b = {", "}"})
	if err == nil {
		t.Fatal("expected brace count error")
	}
	if !strings.HasPrefix(err.Message, "Number of open and close curly brackets does not match") {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestParseScript_NilValidatorSkipsFullCheck(t *testing.T) {
	t.Parallel()

	p := NewCodeParserWithOptions(DefaultOptions(), nil)
	resp := p.ParseScript([]string{"a = 1", "}"}, "common/x.txt", false)
	if resp.HasError() {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if len(resp.Values) != 1 {
		t.Fatalf("expected 1 element, got %d", len(resp.Values))
	}
}
