// Package exporter writes resolved definitions into a patch mod and manages
// the patch directory as a whole.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"modpatch/internal/definition"
	"modpatch/internal/naming"
	"modpatch/internal/patchstate"
	"modpatch/internal/retry"
)

var (
	ErrNoGame        = errors.New("game is required")
	ErrNoDefinitions = errors.New("no definitions to export")
)

// Reader opens files of a mod. GetStream returns an error wrapping
// fs.ErrNotExist when the file is not part of the mod.
type Reader interface {
	GetStream(modPath, file string) (io.ReadCloser, error)
}

// Options configures an Exporter.
type Options struct {
	Retry retry.Policy
	// Concurrency bounds the per-definition tasks. Zero or less means no
	// limit.
	Concurrency int
}

// Exporter writes patch content and delegates state queries to a
// patchstate.Store.
type Exporter struct {
	store     *patchstate.Store
	providers []*naming.Provider
	reader    Reader
	retry     retry.Policy
	limit     int
}

func New(store *patchstate.Store, providers []*naming.Provider, reader Reader, opts Options) *Exporter {
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Default()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = -1
	}
	return &Exporter{
		store:     store,
		providers: providers,
		reader:    reader,
		retry:     opts.Retry,
		limit:     limit,
	}
}

// ExportDefinition writes the definitions, overwritten conflicts and custom
// conflicts of params into the patch directory. It returns false when no
// fully implemented naming rules exist for the game.
func (e *Exporter) ExportDefinition(ctx context.Context, params patchstate.Parameters) (bool, error) {
	if params.Game == "" {
		return false, ErrNoGame
	}
	if len(params.Definitions) == 0 && len(params.OverwrittenConflicts) == 0 && len(params.CustomConflicts) == 0 {
		return false, ErrNoDefinitions
	}
	provider, ok := naming.ProviderFor(e.providers, params.Game)
	if !ok || !provider.IsFullyImplemented() {
		log.Warn().Str("game", params.Game).Msg("No fully implemented naming rules, skipping export")
		return false, nil
	}

	root := params.PatchRoot()
	if len(params.Definitions) > 0 {
		binaries, content := splitBinaries(params.Definitions)
		if err := e.CopyBinaries(ctx, binaries, root, false); err != nil {
			return false, err
		}
		if err := e.WriteMergedContent(ctx, content, root, provider, false, GenerateFileName); err != nil {
			return false, err
		}
	}
	if len(params.OverwrittenConflicts) > 0 {
		binaries, content := splitBinaries(params.OverwrittenConflicts)
		if err := e.CopyBinaries(ctx, binaries, root, false); err != nil {
			return false, err
		}
		if err := e.WriteMergedContent(ctx, content, root, provider, false, UseExistingFileNameAndWriteEmptyFiles); err != nil {
			return false, err
		}
	}
	if len(params.CustomConflicts) > 0 {
		_, content := splitBinaries(params.CustomConflicts)
		if err := e.WriteMergedContent(ctx, content, root, provider, true, UseExistingFileName); err != nil {
			return false, err
		}
	}

	log.Info().
		Str("patch", root).
		Int("definitions", len(params.Definitions)).
		Int("overwritten", len(params.OverwrittenConflicts)).
		Int("custom", len(params.CustomConflicts)).
		Msg("Patch exported")
	return true, nil
}

func splitBinaries(defs []*definition.Definition) (binaries, content []*definition.Definition) {
	for _, d := range defs {
		if d == nil {
			continue
		}
		if d.IsBinary() {
			binaries = append(binaries, d)
		} else {
			content = append(content, d)
		}
	}
	return binaries, content
}

func (e *Exporter) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	return g, ctx
}

// SaveState forwards to the store.
func (e *Exporter) SaveState(ctx context.Context, params patchstate.Parameters) error {
	if err := e.store.SaveState(ctx, params); err != nil {
		return fmt.Errorf("save patch state: %w", err)
	}
	return nil
}

func (e *Exporter) GetPatchState(ctx context.Context, params patchstate.Parameters, loadExternalCode bool) (*patchstate.PatchState, error) {
	return e.store.GetPatchState(ctx, params, loadExternalCode)
}

func (e *Exporter) GetPatchStateMode(params patchstate.Parameters) (patchstate.Mode, bool, error) {
	return e.store.GetPatchStateMode(params)
}

func (e *Exporter) LoadDefinitionContents(ctx context.Context, params patchstate.Parameters, path string) (string, error) {
	return e.store.LoadDefinitionContents(ctx, params, path)
}

func (e *Exporter) ResetCache() {
	e.store.ResetCache()
}
