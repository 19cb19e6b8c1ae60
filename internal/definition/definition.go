// Package definition holds the Definition model: one addressable unit of mod
// content that can be compared, merged and written to a patch.
package definition

import (
	"path"
	"slices"
	"strings"
)

// ValueType classifies the shape of a definition's content.
type ValueType int

const (
	Variable ValueType = iota
	Object
	Namespace
	Binary
	WholeTextFile
	OverwrittenObjectSingleFile
)

func (v ValueType) String() string {
	switch v {
	case Variable:
		return "variable"
	case Object:
		return "object"
	case Namespace:
		return "namespace"
	case Binary:
		return "binary"
	case WholeTextFile:
		return "whole_text_file"
	case OverwrittenObjectSingleFile:
		return "overwritten_object_single_file"
	}
	return "unknown"
}

// Definition is a single extracted unit. Code holds the canonical script text
// and may be empty when it has been moved out to a history file.
type Definition struct {
	ID                   string    `json:"id"`
	Type                 string    `json:"type"`
	Code                 string    `json:"code,omitempty"`
	ContentSHA           string    `json:"content_sha,omitempty"`
	ValueType            ValueType `json:"value_type"`
	File                 string    `json:"file"`
	DiskFile             string    `json:"disk_file,omitempty"`
	ModName              string    `json:"mod_name,omitempty"`
	ModPath              string    `json:"mod_path,omitempty"`
	Parent               string    `json:"parent_directory,omitempty"`
	AdditionalFileNames  []string  `json:"additional_file_names,omitempty"`
	GeneratedFileNames   []string  `json:"generated_file_names,omitempty"`
	OverwrittenFileNames []string  `json:"overwritten_file_names,omitempty"`
	Dependencies         []string  `json:"dependencies,omitempty"`
	Order                int       `json:"order"`
	FileNameSuffix       string    `json:"file_name_suffix,omitempty"`
	Tags                 []string  `json:"tags,omitempty"`
}

// TypeAndID is the composite identity used for collections and history.
func (d *Definition) TypeAndID() string {
	return d.Type + "-" + d.ID
}

// FileCI returns the file path lower-cased for case-insensitive matching.
func (d *Definition) FileCI() string {
	return strings.ToLower(d.File)
}

// ParentDirectory returns the explicit parent directory or the directory of
// File.
func (d *Definition) ParentDirectory() string {
	if d.Parent != "" {
		return d.Parent
	}
	dir := path.Dir(StandardizePath(d.File))
	if dir == "." {
		return ""
	}
	return dir
}

// IsBinary reports whether the definition references a binary asset.
func (d *Definition) IsBinary() bool {
	return d.ValueType == Binary
}

// StandardizePaths rewrites every path field to use forward slashes.
func (d *Definition) StandardizePaths() {
	d.File = StandardizePath(d.File)
	d.DiskFile = StandardizePath(d.DiskFile)
	d.ModPath = StandardizePath(d.ModPath)
	d.Parent = StandardizePath(d.Parent)
	for _, names := range [][]string{d.AdditionalFileNames, d.GeneratedFileNames, d.OverwrittenFileNames} {
		for i := range names {
			names[i] = StandardizePath(names[i])
		}
	}
}

// Clone returns a deep copy. Code is copied only when includeCode is set.
func (d *Definition) Clone(includeCode bool) *Definition {
	c := *d
	if !includeCode {
		c.Code = ""
	}
	c.AdditionalFileNames = slices.Clone(d.AdditionalFileNames)
	c.GeneratedFileNames = slices.Clone(d.GeneratedFileNames)
	c.OverwrittenFileNames = slices.Clone(d.OverwrittenFileNames)
	c.Dependencies = slices.Clone(d.Dependencies)
	c.Tags = slices.Clone(d.Tags)
	return &c
}

// StandardizePath converts backslashes to forward slashes.
func StandardizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FormatType builds a definition type from the directory of file and a
// sub-key, e.g. FormatType("gui/main.gui", "gui") is "gui/gui".
func FormatType(file, suffix string) string {
	dir := path.Dir(StandardizePath(file))
	if dir == "." {
		dir = ""
	}
	dir = strings.ToLower(dir)
	if suffix == "" {
		return dir
	}
	if dir == "" {
		return suffix
	}
	return dir + "/" + suffix
}

var invalidFileNameChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFileName replaces characters that are not valid in a file name.
func SanitizeFileName(name string) string {
	name = invalidFileNameChars.Replace(name)
	return strings.Map(func(r rune) rune {
		if r < 32 {
			return '_'
		}
		return r
	}, name)
}
