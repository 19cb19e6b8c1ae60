// Package patchstate persists the merge state of a patch: its conflicts,
// resolutions and the code history of every resolved definition.
package patchstate

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"modpatch/internal/definition"
)

// Mode is the patch generation strategy.
type Mode int

const (
	ModeDefault Mode = iota
	ModeAdvanced
	ModeReadOnly
	ModeDefaultWithoutLocalization
	ModeAdvancedWithoutLocalization
	ModeReadOnlyWithoutLocalization
)

// IsValid reports whether m is a defined mode.
func (m Mode) IsValid() bool {
	return m >= ModeDefault && m <= ModeReadOnlyWithoutLocalization
}

// IsReadOnly reports whether the mode records state without writing patch
// content.
func (m Mode) IsReadOnly() bool {
	return m == ModeReadOnly || m == ModeReadOnlyWithoutLocalization
}

// IncludesLocalization reports whether localisation is merged.
func (m Mode) IncludesLocalization() bool {
	switch m {
	case ModeDefaultWithoutLocalization, ModeAdvancedWithoutLocalization, ModeReadOnlyWithoutLocalization:
		return false
	}
	return true
}

// ParseMode accepts a mode number or name.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if m := Mode(n); m.IsValid() {
			return m, nil
		}
		return 0, fmt.Errorf("undefined patch mode %d", n)
	}
	for m := ModeDefault; m <= ModeReadOnlyWithoutLocalization; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown patch mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeAdvanced:
		return "advanced"
	case ModeReadOnly:
		return "read_only"
	case ModeDefaultWithoutLocalization:
		return "default_without_localization"
	case ModeAdvancedWithoutLocalization:
		return "advanced_without_localization"
	case ModeReadOnlyWithoutLocalization:
		return "read_only_without_localization"
	}
	return "unknown"
}

// PatchState is the persisted aggregate for one patch directory.
type PatchState struct {
	Conflicts            []*definition.Definition `json:"conflicts"`
	ResolvedConflicts    []*definition.Definition `json:"resolved_conflicts"`
	IgnoredConflicts     []*definition.Definition `json:"ignored_conflicts"`
	OverwrittenConflicts []*definition.Definition `json:"overwritten_conflicts"`
	CustomConflicts      []*definition.Definition `json:"custom_conflicts"`
	ConflictHistory      []*definition.Definition `json:"conflict_history"`
	IgnoreConflictPaths  string                   `json:"ignore_conflict_paths"`
	LoadOrder            []string                 `json:"load_order"`
	Mode                 Mode                     `json:"mode"`
	HasGameDefinitions   bool                     `json:"has_game_definitions"`
}

// NewPatchState returns an empty state with every collection allocated.
func NewPatchState() *PatchState {
	s := &PatchState{}
	s.normalize()
	return s
}

// Clone returns a deep copy of the state.
func (s *PatchState) Clone(includeCode bool) *PatchState {
	return &PatchState{
		Conflicts:            cloneDefinitions(s.Conflicts, includeCode),
		ResolvedConflicts:    cloneDefinitions(s.ResolvedConflicts, includeCode),
		IgnoredConflicts:     cloneDefinitions(s.IgnoredConflicts, includeCode),
		OverwrittenConflicts: cloneDefinitions(s.OverwrittenConflicts, includeCode),
		CustomConflicts:      cloneDefinitions(s.CustomConflicts, includeCode),
		ConflictHistory:      cloneDefinitions(s.ConflictHistory, includeCode),
		IgnoreConflictPaths:  s.IgnoreConflictPaths,
		LoadOrder:            slices.Clone(s.LoadOrder),
		Mode:                 s.Mode,
		HasGameDefinitions:   s.HasGameDefinitions,
	}
}

func (s *PatchState) collections() [][]*definition.Definition {
	return [][]*definition.Definition{
		s.Conflicts, s.ResolvedConflicts, s.IgnoredConflicts,
		s.OverwrittenConflicts, s.CustomConflicts, s.ConflictHistory,
	}
}

// normalize allocates missing collections after decoding.
func (s *PatchState) normalize() {
	for _, c := range []*[]*definition.Definition{
		&s.Conflicts, &s.ResolvedConflicts, &s.IgnoredConflicts,
		&s.OverwrittenConflicts, &s.CustomConflicts, &s.ConflictHistory,
	} {
		if *c == nil {
			*c = []*definition.Definition{}
		}
	}
	if s.LoadOrder == nil {
		s.LoadOrder = []string{}
	}
}

// standardize normalizes the path separators of every definition.
func (s *PatchState) standardize() {
	for _, c := range s.collections() {
		for _, d := range c {
			d.StandardizePaths()
			d.Type = definition.StandardizePath(d.Type)
		}
	}
}

func cloneDefinitions(defs []*definition.Definition, includeCode bool) []*definition.Definition {
	out := make([]*definition.Definition, 0, len(defs))
	for _, d := range defs {
		if d != nil {
			out = append(out, d.Clone(includeCode))
		}
	}
	return out
}

// RenamePair maps an old mod name to a new one when a patch is copied.
type RenamePair struct {
	Old string
	New string
}

// Parameters identify a patch and carry the content of a save or export.
type Parameters struct {
	RootPath  string
	PatchPath string
	// ModPath is the source directory for copy and rename, relative to
	// RootPath.
	ModPath string
	Game    string

	Definitions          []*definition.Definition
	OverwrittenConflicts []*definition.Definition
	CustomConflicts      []*definition.Definition
	ResolvedConflicts    []*definition.Definition
	Conflicts            []*definition.Definition
	IgnoredConflicts     []*definition.Definition

	IgnoreConflictPaths string
	Mode                Mode
	LoadOrder           []string
	HasGameDefinitions  bool
	RenamePairs         []RenamePair
}

// PatchRoot returns the patch directory.
func (p Parameters) PatchRoot() string {
	return filepath.Join(p.RootPath, p.PatchPath)
}

// ModRoot returns the source directory of a copy or rename.
func (p Parameters) ModRoot() string {
	return filepath.Join(p.RootPath, p.ModPath)
}
