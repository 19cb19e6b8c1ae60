package parser

import (
	"path"
	"slices"
	"strings"

	"modpatch/internal/definition"
)

// CanParseArgs describes a file for parser selection.
type CanParseArgs struct {
	// File is the path of the file relative to the mod root.
	File string
	// GameType is the game the mod belongs to, e.g. "stellaris".
	GameType string
	// IsBinary is set by the reader when the file could not be read as text.
	IsBinary bool
}

// Args holds one file's content and provenance.
type Args struct {
	Lines        []string
	File         string
	ModName      string
	ModPath      string
	ContentSHA   string
	Dependencies []string
	GameType     string
	IsBinary     bool
}

// CanParseArgs returns the selection view of the arguments.
func (a Args) CanParseArgs() CanParseArgs {
	return CanParseArgs{File: a.File, GameType: a.GameType, IsBinary: a.IsBinary}
}

// Parser is the interface for all definition extractors.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string
	// CanParse reports whether the parser handles the file. It must not read
	// the file content.
	CanParse(args CanParseArgs) bool
	// Parse extracts definitions from a file.
	Parse(args Args) ([]*definition.Definition, error)
}

// newDefinition starts a definition carrying the file's provenance.
func newDefinition(args Args, valueType definition.ValueType) *definition.Definition {
	return &definition.Definition{
		File:         args.File,
		ModName:      args.ModName,
		ModPath:      args.ModPath,
		ContentSHA:   args.ContentSHA,
		Dependencies: slices.Clone(args.Dependencies),
		ValueType:    valueType,
	}
}

// ext returns the lower-cased extension of file.
func ext(file string) string {
	return strings.ToLower(path.Ext(definition.StandardizePath(file)))
}

// extType returns the extension without its dot, used as the type sub-key.
func extType(file string) string {
	return strings.TrimPrefix(ext(file), ".")
}

// hasPathPrefix compares a standardized, case-insensitive path prefix.
func hasPathPrefix(file, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(definition.StandardizePath(file)), strings.ToLower(prefix))
}
