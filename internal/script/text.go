package script

import (
	"strings"
)

var cleanerReplacer = strings.NewReplacer(
	" =", "=",
	"= ", "=",
	" {", "{",
	"{ ", "{",
	" }", "}",
	"} ", "}",
)

// CleanWhitespace collapses runs of whitespace and removes the spaces around
// operators and braces, so `a  =  {` becomes `a={`.
func CleanWhitespace(line string) string {
	if line == "" {
		return ""
	}
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(line, "\t", " ")), " ")
	// The replacer is not re-applied to its own output, so loop until stable.
	for {
		next := cleanerReplacer.Replace(cleaned)
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

// PrettifyLine normalises spacing to one space around operators and braces.
func PrettifyLine(line string) string {
	cleaned := CleanWhitespace(line)
	r := strings.NewReplacer("=", " = ", "{", " { ", "}", " } ")
	return strings.Join(strings.Fields(r.Replace(cleaned)), " ")
}

// GetKey returns the text in front of the first separator, trimmed.
func GetKey(line, separator string) string {
	cleaned := CleanWhitespace(line)
	idx := strings.Index(cleaned, separator)
	if idx < 0 {
		return strings.TrimSpace(cleaned)
	}
	return strings.TrimSpace(cleaned[:idx])
}

// GetValue returns the unquoted value following key (which includes its
// separator, e.g. `name=`). Bare values end at whitespace or a brace.
func GetValue(line, key string) string {
	cleaned := CleanWhitespace(line)
	idx := strings.Index(strings.ToLower(cleaned), strings.ToLower(key))
	if idx < 0 {
		return ""
	}
	rest := cleaned[idx+len(key):]
	if strings.HasPrefix(rest, `"`) {
		if end := strings.IndexByte(rest[1:], quote); end >= 0 {
			return rest[1 : end+1]
		}
		return strings.Trim(rest, `"`)
	}
	end := strings.IndexAny(rest, " {}")
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.Trim(rest, `"`)
}

// Unquote strips one pair of surrounding double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == quote && s[len(s)-1] == quote {
		return s[1 : len(s)-1]
	}
	return s
}

// SplitLines splits text on any newline convention.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
