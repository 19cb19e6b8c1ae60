package parser

import (
	"strconv"
	"strings"

	"modpatch/internal/script"
)

// ModObject is the content of a mod descriptor file.
type ModObject struct {
	Name             string   `json:"name"`
	FileName         string   `json:"file_name,omitempty"`
	Picture          string   `json:"picture,omitempty"`
	Version          string   `json:"version,omitempty"`
	SupportedVersion string   `json:"supported_version,omitempty"`
	RemoteID         int      `json:"remote_id,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Dependencies     []string `json:"dependencies,omitempty"`
}

// ParseDescriptor reads a descriptor.mod file. Unknown keys are ignored.
func ParseDescriptor(lines []string) *ModObject {
	obj := &ModObject{}
	var array *[]string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cleaned := script.CleanWhitespace(line)
		if !strings.Contains(cleaned, script.EqualsOperator) {
			if array == nil {
				continue
			}
			if strings.Contains(cleaned, "}") {
				array = nil
				continue
			}
			*array = append(*array, strings.ReplaceAll(cleaned, `"`, ""))
			continue
		}

		key := script.GetKey(cleaned, script.EqualsOperator)
		value := script.GetValue(cleaned, key+script.EqualsOperator)
		switch key {
		case "path", "archive":
			obj.FileName = value
		case "picture":
			obj.Picture = value
		case "name":
			obj.Name = value
		case "version":
			obj.Version = value
		case "supported_version":
			obj.SupportedVersion = value
		case "remote_file_id":
			if n, err := strconv.Atoi(value); err == nil {
				obj.RemoteID = n
			}
		case "tags":
			obj.Tags = []string{}
			array = openArray(cleaned, &obj.Tags)
		case "dependencies":
			obj.Dependencies = []string{}
			array = openArray(cleaned, &obj.Dependencies)
		}
	}
	return obj
}

// openArray collects items written on the key's own line and returns target
// if the list continues on the following lines.
func openArray(cleaned string, target *[]string) *[]string {
	open := strings.Index(cleaned, "{")
	if open < 0 {
		return target
	}
	rest := cleaned[open+1:]
	end := strings.Index(rest, "}")
	if end >= 0 {
		rest = rest[:end]
	}
	*target = append(*target, splitQuoted(rest)...)
	if end >= 0 {
		return nil
	}
	return target
}

// splitQuoted splits a list of optionally quoted items.
func splitQuoted(s string) []string {
	var (
		items   []string
		current strings.Builder
		inQuote bool
	)
	flush := func() {
		if current.Len() > 0 {
			items = append(items, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return items
}
