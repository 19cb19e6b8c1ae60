package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"modpatch/internal/cache"
	"modpatch/internal/config"
	"modpatch/internal/definition"
	"modpatch/internal/exporter"
	"modpatch/internal/filewalker"
	"modpatch/internal/naming"
	"modpatch/internal/parser"
	"modpatch/internal/patchstate"
	"modpatch/internal/script"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	walker   *filewalker.Walker
	store    *patchstate.Store
	exporter *exporter.Exporter
}

func newApp(cfg *config.Config) (*app, error) {
	rules, err := naming.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	registry := parser.NewRegistry(script.NewCodeParser(), rules)
	store := patchstate.NewStore(patchstate.Options{
		Retry: cfg.RetryPolicy(),
		OnWriteState: func(idle bool) {
			log.Debug().Bool("idle", idle).Msg("Patch state writer")
		},
	})

	return &app{
		cfg:    cfg,
		walker: filewalker.NewWalker(registry, cfg.Game, cfg.WorkerCount),
		store:  store,
		exporter: exporter.New(store, rules.Providers(), filewalker.ModReader{Root: cfg.Root}, exporter.Options{
			Retry:       cfg.RetryPolicy(),
			Concurrency: cfg.WorkerCount,
		}),
	}, nil
}

// withCache makes parsing reuse results stored in backend.
func (a *app) withCache(backend cache.Backend) {
	a.walker.WithCache(cache.NewDefinitionCache(backend))
}

// params identifies patch under the configured root and game.
func (a *app) params(patch string) patchstate.Parameters {
	return patchstate.Parameters{
		RootPath:  a.cfg.Root,
		PatchPath: patch,
		Game:      a.cfg.Game,
	}
}

// parseMods parses the mods in dirs, which are given in load order.
func (a *app) parseMods(ctx context.Context, dirs []string) ([]*filewalker.Mod, []*definition.Definition, error) {
	var (
		mods []*filewalker.Mod
		defs []*definition.Definition
	)
	for _, dir := range dirs {
		mod, err := filewalker.OpenMod(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open mod %s: %w", dir, err)
		}
		parsed, err := a.walker.ParseMod(ctx, mod)
		if err != nil {
			return nil, nil, fmt.Errorf("parse mod %s: %w", mod.Name, err)
		}
		mods = append(mods, mod)
		defs = append(defs, parsed...)
	}
	return mods, defs, nil
}

func modNames(mods []*filewalker.Mod) []string {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.Name)
	}
	return names
}
