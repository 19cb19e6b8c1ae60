package filewalker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"modpatch/internal/cache"
	"modpatch/internal/definition"
	"modpatch/internal/parser"
	"modpatch/internal/script"
	"modpatch/internal/textutil"
	"modpatch/internal/worker"
)

// DescriptorFile is the mod descriptor in the mod root.
const DescriptorFile = "descriptor.mod"

// TextExtensions lists the script and localisation files handed to the
// parsers. Binary assets are recognised by parser.IsBinaryFile.
var TextExtensions = map[string]bool{
	".txt":   true,
	".gui":   true,
	".gfx":   true,
	".yml":   true,
	".asset": true,
	".lua":   true,
	".csv":   true,
}

// Mod is a mod directory on disk.
type Mod struct {
	Name       string
	Path       string
	Descriptor *parser.ModObject
}

// OpenMod reads the descriptor of the mod in dir. A mod without descriptor
// is named after its directory.
func OpenMod(dir string) (*Mod, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve mod path: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat mod: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mod is not a directory: %s", dir)
	}

	mod := &Mod{Name: filepath.Base(dir), Path: dir, Descriptor: &parser.ModObject{}}
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	switch {
	case err == nil:
		mod.Descriptor = parser.ParseDescriptor(script.SplitLines(string(data)))
		if mod.Descriptor.Name != "" {
			mod.Name = mod.Descriptor.Name
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return mod, nil
}

// FileEntry is a discovered mod file.
type FileEntry struct {
	// Path is the absolute path on disk.
	Path string
	// File is the slash separated path relative to the mod root.
	File     string
	IsBinary bool
}

// Walker traverses mods and turns their files into definitions.
type Walker struct {
	registry *parser.Registry
	cache    *cache.DefinitionCache
	game     string
	workers  int
}

// NewWalker creates a Walker for game.
func NewWalker(registry *parser.Registry, game string, workers int) *Walker {
	return &Walker{registry: registry, game: game, workers: workers}
}

// WithCache makes the walker reuse parse results of unchanged files.
func (w *Walker) WithCache(c *cache.DefinitionCache) *Walker {
	w.cache = c
	return w
}

// Walk discovers the content files of mod. Files in the mod root and
// hidden directories are skipped.
func (w *Walker) Walk(mod *Mod) ([]FileEntry, error) {
	var entries []FileEntry
	err := filepath.WalkDir(mod.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if d.IsDir() {
			if path != mod.Path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(mod.Path, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.Contains(rel, "/") {
			return nil
		}

		binary := parser.IsBinaryFile(rel)
		if !binary && !TextExtensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		entries = append(entries, FileEntry{Path: path, File: rel, IsBinary: binary})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk mod: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("mod", mod.Name).Msg("Discovered files")
	return entries, nil
}

// Args reads entry into parser input.
func (w *Walker) Args(mod *Mod, entry FileEntry) (parser.Args, error) {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return parser.Args{}, fmt.Errorf("read %s: %w", entry.File, err)
	}
	args := parser.Args{
		File:         entry.File,
		ModName:      mod.Name,
		ModPath:      mod.Path,
		Dependencies: mod.Descriptor.Dependencies,
		GameType:     w.game,
		IsBinary:     entry.IsBinary,
	}
	if entry.IsBinary {
		args.ContentSHA = textutil.Hash(string(data))
		return args, nil
	}
	args.Lines = script.SplitLines(string(data))
	args.ContentSHA = textutil.HashLines(args.Lines)
	return args, nil
}

// ParseMod parses every file of mod in parallel. Files that fail to read
// or parse contribute no definitions.
func (w *Walker) ParseMod(ctx context.Context, mod *Mod) ([]*definition.Definition, error) {
	entries, err := w.Walk(mod)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(w.workers, func(ctx context.Context, entry FileEntry) ([]*definition.Definition, error) {
		args, err := w.Args(mod, entry)
		if err != nil {
			return nil, err
		}
		return w.parse(ctx, args), nil
	})
	pool.Label = func(e FileEntry) string { return e.File }

	var defs []*definition.Definition
	for _, r := range pool.Execute(ctx, entries) {
		if r.Err != nil || r.Skipped {
			continue
		}
		defs = append(defs, r.Output...)
	}
	if err := ctx.Err(); err != nil {
		return defs, err
	}

	log.Info().Str("mod", mod.Name).Int("files", len(entries)).Int("definitions", len(defs)).Msg("Parsed mod")
	return defs, nil
}

func (w *Walker) parse(ctx context.Context, args parser.Args) []*definition.Definition {
	if w.cache == nil {
		return w.registry.Parse(args)
	}
	if defs, ok := w.cache.Get(ctx, args); ok {
		return defs
	}
	defs := w.registry.Parse(args)
	if err := w.cache.Set(ctx, args, defs); err != nil {
		log.Warn().Err(err).Str("file", args.File).Msg("Failed to cache definitions")
	}
	return defs
}

// ModReader opens mod files from disk. Relative mod paths are resolved
// against Root.
type ModReader struct {
	Root string
}

// GetStream opens file inside the mod at modPath.
func (r ModReader) GetStream(modPath, file string) (io.ReadCloser, error) {
	dir := modPath
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Root, dir)
	}
	return os.Open(filepath.Join(dir, filepath.FromSlash(definition.StandardizePath(file))))
}
