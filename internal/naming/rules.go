package naming

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"

	"modpatch/internal/definition"

	"github.com/pelletier/go-toml/v2"
)

//go:embed rules.toml
var defaultRules []byte

// GameRules is the rule table for one game.
type GameRules struct {
	Game             string   `toml:"game"`
	FullyImplemented bool     `toml:"fully_implemented"`
	FIOSPaths        []string `toml:"fios_paths"`
	WholeFilePaths   []string `toml:"whole_file_paths"`
}

// RuleSet holds the rules of every known game.
type RuleSet struct {
	Games []GameRules `toml:"games"`
}

// ParseRules decodes a TOML rule table.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := toml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode naming rules: %w", err)
	}
	for i, g := range rs.Games {
		if g.Game == "" {
			return nil, fmt.Errorf("decode naming rules: entry %d has no game", i)
		}
	}
	return &rs, nil
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleSet {
	rs, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return rs
}

// LoadRules reads a rule table from file, or returns the built-in table when
// file is empty.
func LoadRules(file string) (*RuleSet, error) {
	if file == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read naming rules: %w", err)
	}
	return ParseRules(data)
}

func (rs *RuleSet) game(name string) (GameRules, bool) {
	for _, g := range rs.Games {
		if strings.EqualFold(g.Game, name) {
			return g, true
		}
	}
	return GameRules{}, false
}

// IsWholeFile reports whether file lives under one of the game's whole file
// directories.
func (rs *RuleSet) IsWholeFile(game, file string) bool {
	g, ok := rs.game(game)
	if !ok {
		return false
	}
	dir := strings.ToLower(path.Dir(definition.StandardizePath(file)))
	for _, p := range g.WholeFilePaths {
		p = strings.ToLower(strings.TrimSuffix(p, "/"))
		if dir == p || strings.HasPrefix(dir, p+"/") {
			return true
		}
	}
	return false
}

// Providers returns one naming provider per game.
func (rs *RuleSet) Providers() []*Provider {
	providers := make([]*Provider, 0, len(rs.Games))
	for _, g := range rs.Games {
		providers = append(providers, NewProvider(g))
	}
	return providers
}

// ProviderFor returns the first fully implemented provider that can process
// game.
func ProviderFor(providers []*Provider, game string) (*Provider, bool) {
	for _, p := range providers {
		if p.CanProcess(game) && p.IsFullyImplemented() {
			return p, true
		}
	}
	return nil, false
}
