package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"modpatch/internal/definition"
	"modpatch/internal/parser"
	"modpatch/internal/textutil"
)

// Backend persists parsed file results, e.g. the PostgreSQL catalog.
type Backend interface {
	LoadFile(ctx context.Context, key string) ([]*definition.Definition, bool, error)
	StoreFile(ctx context.Context, key string, defs []*definition.Definition) error
}

// DefinitionCache provides in-memory + backend caching of parsed files, so
// unchanged files are not parsed again.
type DefinitionCache struct {
	backend Backend
	mu      sync.RWMutex
	memory  map[string][]*definition.Definition
}

// NewDefinitionCache creates a cache. backend may be nil for a memory-only
// cache.
func NewDefinitionCache(backend Backend) *DefinitionCache {
	return &DefinitionCache{
		backend: backend,
		memory:  make(map[string][]*definition.Definition),
	}
}

// Key identifies a file's parse result by game, path and content.
func Key(args parser.Args) string {
	return textutil.Hash(args.GameType + "\x00" + definition.StandardizePath(args.File) + "\x00" + args.ContentSHA)
}

// Get returns the cached definitions of the file described by args, with
// the provenance of args. Backend failures count as a miss.
func (c *DefinitionCache) Get(ctx context.Context, args parser.Args) ([]*definition.Definition, bool) {
	if args.ContentSHA == "" {
		return nil, false
	}
	key := Key(args)

	c.mu.RLock()
	defs, ok := c.memory[key]
	c.mu.RUnlock()

	if !ok && c.backend != nil {
		loaded, found, err := c.backend.LoadFile(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("file", args.File).Msg("Definition cache lookup failed")
			return nil, false
		}
		if found {
			c.mu.Lock()
			c.memory[key] = loaded
			c.mu.Unlock()
			defs, ok = loaded, true
		}
	}
	if !ok {
		return nil, false
	}
	return withProvenance(defs, args), true
}

// Set stores the definitions parsed from the file described by args.
func (c *DefinitionCache) Set(ctx context.Context, args parser.Args, defs []*definition.Definition) error {
	if args.ContentSHA == "" {
		return nil
	}
	key := Key(args)
	stored := make([]*definition.Definition, len(defs))
	for i, d := range defs {
		stored[i] = d.Clone(true)
	}

	c.mu.Lock()
	c.memory[key] = stored
	c.mu.Unlock()

	if c.backend != nil {
		return c.backend.StoreFile(ctx, key, stored)
	}
	return nil
}

// Len returns the number of files held in memory.
func (c *DefinitionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

func withProvenance(defs []*definition.Definition, args parser.Args) []*definition.Definition {
	out := make([]*definition.Definition, len(defs))
	for i, d := range defs {
		c := d.Clone(true)
		c.ModName = args.ModName
		c.ModPath = args.ModPath
		c.Dependencies = slices.Clone(args.Dependencies)
		out[i] = c
	}
	return out
}
