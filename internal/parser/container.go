package parser

import (
	"slices"
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/script"
)

const (
	guiTypesKey         = "guiTypes"
	nameKey             = "name"
	bitmapFontOverride  = "bitmapfont_override"
	bitmapFontLanguages = "languages"
)

// containerChildren turns every child object of the selected top-level
// containers into one Object definition. The definition code keeps the
// container so it can be merged back as a standalone file.
func containerChildren(args Args, elements []*script.Element, accept func(key string) bool) []*definition.Definition {
	var result []*definition.Definition
	typ := definition.FormatType(args.File, extType(args.File))
	for _, parent := range elements {
		if parent.IsSimple || !accept(parent.Key) {
			continue
		}
		for _, child := range parent.Children {
			if child.IsSimple {
				continue
			}
			wrapped := &script.Element{
				Key:      parent.Key,
				Operator: parent.Operator,
				Children: []*script.Element{child},
			}
			d := newDefinition(args, definition.Object)
			d.ID = childID(child)
			d.Type = typ
			d.Code = script.FormatCode(wrapped, 0)
			result = append(result, d)
		}
	}
	return result
}

// childID names a child object by its name property, falling back to its
// key. Font overrides are additionally keyed by their sorted languages.
func childID(child *script.Element) string {
	id := child.Key
	if name := child.Child(nameKey); name != nil && name.IsSimple && name.Value != "" {
		id = script.Unquote(name.Value)
	}
	if !strings.EqualFold(child.Key, bitmapFontOverride) {
		return id
	}
	langs := child.Child(bitmapFontLanguages)
	if langs == nil || len(langs.Children) == 0 {
		return id
	}
	names := make([]string, 0, len(langs.Children))
	for _, l := range langs.Children {
		names = append(names, script.Unquote(l.Key))
	}
	slices.Sort(names)
	return strings.Join(names, "-") + "-" + id
}

// GuiParser handles .gui files. Only children of guiTypes blocks are
// extracted.
type GuiParser struct {
	code *script.CodeParser
}

func NewGuiParser(code *script.CodeParser) *GuiParser { return &GuiParser{code: code} }

func (p *GuiParser) Name() string { return "gui" }

func (p *GuiParser) CanParse(args CanParseArgs) bool {
	return ext(args.File) == ".gui"
}

func (p *GuiParser) Parse(args Args) ([]*definition.Definition, error) {
	elements, err := parseScript(p.code, args)
	if err != nil {
		return nil, err
	}
	return containerChildren(args, elements, func(key string) bool {
		return strings.EqualFold(key, guiTypesKey)
	}), nil
}

// GraphicsParser handles .gfx files, where any top-level block groups
// graphics objects.
type GraphicsParser struct {
	code *script.CodeParser
}

func NewGraphicsParser(code *script.CodeParser) *GraphicsParser {
	return &GraphicsParser{code: code}
}

func (p *GraphicsParser) Name() string { return "graphics" }

func (p *GraphicsParser) CanParse(args CanParseArgs) bool {
	return ext(args.File) == ".gfx"
}

func (p *GraphicsParser) Parse(args Args) ([]*definition.Definition, error) {
	elements, err := parseScript(p.code, args)
	if err != nil {
		return nil, err
	}
	return containerChildren(args, elements, func(string) bool { return true }), nil
}
