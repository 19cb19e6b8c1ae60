package parser

import (
	"path"
	"strings"

	"modpatch/internal/definition"
)

var binaryExtensions = map[string]bool{
	".dds":    true,
	".png":    true,
	".tga":    true,
	".jpg":    true,
	".jpeg":   true,
	".bmp":    true,
	".ogg":    true,
	".wav":    true,
	".ttf":    true,
	".otf":    true,
	".fnt":    true,
	".cur":    true,
	".ani":    true,
	".mesh":   true,
	".anim":   true,
	".shader": true,
	".fxh":    true,
}

// IsBinaryFile reports whether file is handled as an opaque binary asset.
func IsBinaryFile(file string) bool {
	return binaryExtensions[ext(file)]
}

// BinaryParser emits one Binary definition per asset file.
type BinaryParser struct{}

func NewBinaryParser() *BinaryParser { return &BinaryParser{} }

func (p *BinaryParser) Name() string { return "binary" }

func (p *BinaryParser) CanParse(args CanParseArgs) bool {
	return args.IsBinary || IsBinaryFile(args.File)
}

func (p *BinaryParser) Parse(args Args) ([]*definition.Definition, error) {
	d := newDefinition(args, definition.Binary)
	d.ID = strings.ToLower(path.Base(definition.StandardizePath(args.File)))
	d.Type = definition.FormatType(args.File, extType(args.File))
	return []*definition.Definition{d}, nil
}
