package parser

import (
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/script"
)

// Locales are the language headers recognised in localisation files.
var Locales = []string{
	"l_english",
	"l_braz_por",
	"l_french",
	"l_german",
	"l_polish",
	"l_russian",
	"l_spanish",
	"l_simp_chinese",
	"l_japanese",
	"l_korean",
	"l_default",
}

const localizationSeparator = ":"

// LocalizationParser handles .yml localisation files. Each keyed line under
// a language header becomes one definition.
type LocalizationParser struct{}

func NewLocalizationParser() *LocalizationParser { return &LocalizationParser{} }

func (p *LocalizationParser) Name() string { return "localization" }

func (p *LocalizationParser) CanParse(args CanParseArgs) bool {
	return ext(args.File) == ".yml"
}

func (p *LocalizationParser) Parse(args Args) ([]*definition.Definition, error) {
	var (
		result []*definition.Definition
		lang   string
	)
	for _, line := range args.Lines {
		line = strings.TrimPrefix(line, "\ufeff")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if l := languageID(line); l != "" {
			lang = l
			continue
		}
		if lang == "" {
			continue
		}

		d := newDefinition(args, definition.Variable)
		d.Code = lang + localizationSeparator + "\n" + line
		d.Type = definition.FormatType(args.File, lang+"-yml")
		d.ID = script.GetKey(line, localizationSeparator)
		result = append(result, d)
	}
	return result, nil
}

// languageID returns the language of a header line such as `l_english:`.
// Headers start in the first column; indented lines are entries.
func languageID(line string) string {
	lower := strings.ToLower(line)
	for _, l := range Locales {
		if strings.HasPrefix(lower, l+localizationSeparator) {
			return l
		}
	}
	return ""
}
