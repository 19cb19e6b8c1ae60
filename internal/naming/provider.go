// Package naming computes patch file names under the FIOS and LIOS
// conventions. FIOS names sort before every other file in their directory
// and LIOS names after, so the game loads the merged definition with the
// intended priority.
package naming

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"modpatch/internal/definition"

	"golang.org/x/text/encoding"
)

const (
	FIOSPrefix = "!!!_"
	LIOSPrefix = "zzz_"

	LocalizationDirectory = "localisation"
	ReplaceDirectory      = "replace"

	maxCollisionAttempts = 10
)

// ErrInvalidType is returned for definitions that are never written to
// their own file.
var ErrInvalidType = errors.New("invalid definition type")

// Provider applies one game's naming rules.
type Provider struct {
	rules GameRules
}

func NewProvider(rules GameRules) *Provider {
	return &Provider{rules: rules}
}

func (p *Provider) Game() string { return p.rules.Game }

// CanProcess reports whether the provider handles game.
func (p *Provider) CanProcess(game string) bool {
	return strings.EqualFold(p.rules.Game, game)
}

// IsFullyImplemented reports whether the game's rules are complete enough
// to export with.
func (p *Provider) IsFullyImplemented() bool {
	return p.rules.FullyImplemented
}

// DefinitionUsesFIOSRules reports whether d lives in a FIOS directory.
func (p *Provider) DefinitionUsesFIOSRules(d *definition.Definition) bool {
	parent := strings.ToLower(d.ParentDirectory())
	for _, fp := range p.rules.FIOSPaths {
		if strings.HasSuffix(parent, strings.ToLower(definition.StandardizePath(fp))) {
			return true
		}
	}
	return false
}

// GetFileName returns the stable display name of d.
func (p *Provider) GetFileName(d *definition.Definition) (string, error) {
	name, _, err := p.generate(d, false)
	return name, err
}

// GetDiskFileName returns the name d is written under, which includes the
// definition order.
func (p *Provider) GetDiskFileName(d *definition.Definition) (string, error) {
	name, _, err := p.generate(d, true)
	return name, err
}

// GenerateFileName is GetFileName or GetDiskFileName that also reports
// whether collision resolution succeeded.
func (p *Provider) GenerateFileName(d *definition.Definition, disk bool) (name string, resolved bool, err error) {
	return p.generate(d, disk)
}

// GetEncoding returns UTF-8 with a byte order mark for localisation and
// plain UTF-8 for everything else.
func (p *Provider) GetEncoding(d *definition.Definition) (encoding.Encoding, error) {
	if err := validType(d); err != nil {
		return nil, err
	}
	return encodingFor(isLocalization(d.ParentDirectory())), nil
}

// IsValidEncoding reports whether an existing file at file has the
// encoding its location requires.
func (p *Provider) IsValidEncoding(file string, info EncodingInfo) bool {
	if isLocalization(definition.StandardizePath(file)) {
		return hasValidUTF8BOM(info)
	}
	return true
}

func (p *Provider) generate(d *definition.Definition, disk bool) (string, bool, error) {
	if err := validType(d); err != nil {
		return "", false, err
	}
	if d.ValueType == definition.WholeTextFile {
		return definition.StandardizePath(d.File), true, nil
	}

	file := definition.StandardizePath(d.File)
	fileName := d.ID + path.Ext(file)
	parent := d.ParentDirectory()

	switch {
	case p.DefinitionUsesFIOSRules(d):
		return EnsureRuleEnforced(d.GeneratedFileNames, prefixedName(d, parent, FIOSPrefix, fileName, disk), true)
	case isLocalization(parent):
		return EnsureRuleEnforced(d.GeneratedFileNames, localizationName(d, parent, fileName), false)
	default:
		return EnsureRuleEnforced(d.GeneratedFileNames, prefixedName(d, parent, LIOSPrefix, fileName, disk), false)
	}
}

func prefixedName(d *definition.Definition, parent, prefix, fileName string, disk bool) string {
	name := prefix + definition.SanitizeFileName(fileName)
	if disk && d.ValueType != definition.OverwrittenObjectSingleFile {
		name = fmt.Sprintf("%s%08d%s", prefix, d.Order, definition.SanitizeFileName(fileName))
	}
	return path.Join(parent, name)
}

func localizationName(d *definition.Definition, parent, fileName string) string {
	if d.FileNameSuffix != "" {
		extension := path.Ext(fileName)
		fileName = strings.TrimSuffix(fileName, extension) + "_" + d.FileNameSuffix + extension
	}
	name := LIOSPrefix + definition.SanitizeFileName(fileName)
	if containsSegment(parent, ReplaceDirectory) {
		return path.Join(parent, name)
	}
	return path.Join(parent, ReplaceDirectory, name)
}

// EnsureRuleEnforced makes proposal sort before (FIOS) or after (LIOS)
// every previously generated name by repeatedly prefixing its base name with
// the first character of the most extreme name. It gives up after a fixed
// number of attempts and returns proposal with resolved set to false.
func EnsureRuleEnforced(generated []string, proposal string, isFIOS bool) (name string, resolved bool) {
	names := append([]string{proposal}, generated...)
	sortNames(names, isFIOS)
	prefix, _ := utf8.DecodeRuneInString(path.Base(names[0]))

	candidate := proposal
	for attempt := 0; slices.Contains(generated, names[0]); attempt++ {
		if attempt >= maxCollisionAttempts {
			return proposal, false
		}
		candidate = path.Join(path.Dir(candidate), string(prefix)+path.Base(candidate))
		names = append(names, candidate)
		sortNames(names, isFIOS)
	}
	return names[0], true
}

func sortNames(names []string, ascending bool) {
	slices.Sort(names)
	if !ascending {
		slices.Reverse(names)
	}
}

func validType(d *definition.Definition) error {
	if d.ValueType == definition.Variable || d.ValueType == definition.Namespace {
		return fmt.Errorf("%w: %s is a %s", ErrInvalidType, d.TypeAndID(), d.ValueType)
	}
	return nil
}

func isLocalization(dir string) bool {
	return strings.HasPrefix(strings.ToLower(dir), LocalizationDirectory)
}

func containsSegment(dir, segment string) bool {
	for _, s := range strings.Split(strings.ToLower(dir), "/") {
		if s == segment {
			return true
		}
	}
	return false
}
