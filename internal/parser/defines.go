package parser

import (
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/script"
)

const (
	stellarisGame = "stellaris"
	definesPath   = "common/defines"
)

// DefinesParser splits Stellaris defines blocks such as
// `NGameplay = { ... }` into one Variable definition per define, so mods
// overriding a single value only conflict on that value.
type DefinesParser struct {
	code *script.CodeParser
}

func NewDefinesParser(code *script.CodeParser) *DefinesParser {
	return &DefinesParser{code: code}
}

func (p *DefinesParser) Name() string { return "defines" }

func (p *DefinesParser) CanParse(args CanParseArgs) bool {
	return strings.EqualFold(args.GameType, stellarisGame) && hasPathPrefix(args.File, definesPath)
}

func (p *DefinesParser) Parse(args Args) ([]*definition.Definition, error) {
	elements, err := parseScript(p.code, args)
	if err != nil {
		return nil, err
	}

	var result []*definition.Definition
	for _, group := range elements {
		if group.IsSimple {
			continue
		}
		typ := definition.FormatType(args.File, group.Key+"-txt")
		for _, define := range group.Children {
			wrapped := &script.Element{
				Key:      group.Key,
				Operator: group.Operator,
				Children: []*script.Element{define},
			}
			d := newDefinition(args, definition.Variable)
			d.ID = define.Key
			d.Type = typ
			d.Code = script.FormatCode(wrapped, 0)
			result = append(result, d)
		}
	}
	return result, nil
}
