package parser

import (
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/script"
)

const namespaceKey = "namespace"

// GenericParser is the fallback for .txt script files. Each top-level
// object is one definition; top-level assignments are variables, except
// namespace declarations.
type GenericParser struct {
	code *script.CodeParser
}

func NewGenericParser(code *script.CodeParser) *GenericParser {
	return &GenericParser{code: code}
}

func (p *GenericParser) Name() string { return "generic" }

func (p *GenericParser) CanParse(args CanParseArgs) bool {
	return ext(args.File) == ".txt"
}

func (p *GenericParser) Parse(args Args) ([]*definition.Definition, error) {
	elements, err := parseScript(p.code, args)
	if err != nil {
		return nil, err
	}

	typ := definition.FormatType(args.File, "txt")
	result := make([]*definition.Definition, 0, len(elements))
	for _, el := range elements {
		var d *definition.Definition
		switch {
		case !el.IsSimple:
			d = newDefinition(args, definition.Object)
			d.ID = el.Key
		case strings.EqualFold(el.Key, namespaceKey):
			d = newDefinition(args, definition.Namespace)
			d.ID = script.Unquote(el.Value)
		case el.Value == "":
			// Bare tokens at the top level carry no addressable content.
			continue
		default:
			d = newDefinition(args, definition.Variable)
			d.ID = el.Key
		}
		d.Type = typ
		d.Code = script.FormatCode(el, 0)
		result = append(result, d)
	}
	return result, nil
}
