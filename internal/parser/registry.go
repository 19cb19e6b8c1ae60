package parser

import (
	"errors"
	"fmt"
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/script"
	"modpatch/internal/textutil"

	"github.com/rs/zerolog/log"
)

const snippetLen = 80

// WholeFileRules tells whether a file is merged as a whole rather than split
// into definitions.
type WholeFileRules interface {
	IsWholeFile(game, file string) bool
}

// Registry dispatches files to parsers in a fixed order. The first parser
// whose CanParse returns true consumes the file.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a Registry with the default parsers. rules may be nil,
// in which case no file is treated as a whole file.
func NewRegistry(code *script.CodeParser, rules WholeFileRules) *Registry {
	return NewRegistryWith(
		NewBinaryParser(),
		NewLocalizationParser(),
		NewDefinesParser(code),
		NewGuiParser(code),
		NewGraphicsParser(code),
		NewWholeTextParser(rules),
		NewGenericParser(code),
	)
}

// NewRegistryWith creates a Registry evaluating parsers in the given order.
func NewRegistryWith(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Find returns the parser that handles args, or nil.
func (r *Registry) Find(args CanParseArgs) Parser {
	for _, p := range r.parsers {
		if p.CanParse(args) {
			return p
		}
	}
	return nil
}

// Parse extracts definitions from one file. A file no parser accepts, or
// one that fails to parse, yields no definitions; the failure is logged.
func (r *Registry) Parse(args Args) []*definition.Definition {
	p := r.Find(args.CanParseArgs())
	if p == nil {
		log.Debug().Str("file", args.File).Msg("No parser for file")
		return nil
	}

	defs, err := p.Parse(args)
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", args.File).
			Str("mod", args.ModName).
			Str("parser", p.Name()).
			Str("near", errorSnippet(args.Lines, err)).
			Msg("Parse failed")
		return nil
	}

	for i, d := range defs {
		d.Order = i + 1
	}
	return defs
}

// errorSnippet returns the start of the line a script error points at.
func errorSnippet(lines []string, err error) string {
	var serr *script.ScriptError
	if !errors.As(err, &serr) || serr.Line < 1 || serr.Line > len(lines) {
		return ""
	}
	return textutil.Truncate(strings.TrimSpace(lines[serr.Line-1]), snippetLen)
}

// parseScript runs the full validity check and returns the top-level
// elements of a script file.
func parseScript(code *script.CodeParser, args Args) ([]*script.Element, error) {
	resp := code.ParseScript(args.Lines, args.File, false)
	if resp.HasError() {
		return nil, fmt.Errorf("parse %s: %w", args.File, resp.Error)
	}
	return resp.Values, nil
}
