package parser

import (
	"path"
	"strings"

	"modpatch/internal/definition"
)

// WholeTextParser keeps files the game only reads as a unit in one piece.
type WholeTextParser struct {
	rules WholeFileRules
}

func NewWholeTextParser(rules WholeFileRules) *WholeTextParser {
	return &WholeTextParser{rules: rules}
}

func (p *WholeTextParser) Name() string { return "whole_text" }

func (p *WholeTextParser) CanParse(args CanParseArgs) bool {
	return p.rules != nil && p.rules.IsWholeFile(args.GameType, args.File)
}

func (p *WholeTextParser) Parse(args Args) ([]*definition.Definition, error) {
	d := newDefinition(args, definition.WholeTextFile)
	d.ID = strings.ToLower(path.Base(definition.StandardizePath(args.File)))
	d.Type = definition.FormatType(args.File, extType(args.File))
	d.Code = strings.Join(args.Lines, "\n")
	return []*definition.Definition{d}, nil
}
