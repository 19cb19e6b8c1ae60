package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modpatch/internal/catalog"
	"modpatch/internal/config"
	"modpatch/internal/definition"
	"modpatch/internal/graph"
	"modpatch/internal/textutil"
)

const codePreviewLen = 60

func indexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "index <mod-dir>...",
		Short: "Parse mods into the definition catalog and the mod graph",
		Long: `Parses the mods, stores their definitions in PostgreSQL and records
mods, dependencies and provided definitions in Neo4j. Parse results are
cached in PostgreSQL by file content, so unchanged files are not parsed again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cfg, args)
		},
	}
}

// runIndex handles the `index` command.
func runIndex(cfg *config.Config, dirs []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	pgPool, neo4jDriver, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()
	defer neo4jDriver.Close(ctx)

	cat := catalog.New(pgPool)
	if err := cat.EnsureSchema(ctx); err != nil {
		return err
	}
	graphBuilder := graph.NewGraphBuilder(neo4jDriver)
	if err := graphBuilder.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	a.withCache(cat)

	mods, defs, err := a.parseMods(ctx, dirs)
	if err != nil {
		return err
	}

	stored := 0
	for _, mod := range mods {
		var own []*definition.Definition
		for _, d := range defs {
			if d.ModName == mod.Name {
				own = append(own, d)
			}
		}

		n, err := cat.Upsert(ctx, cfg.Game, own)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", mod.Name, err)
		}
		stored += n

		node := graph.ModNode{Name: mod.Name, Path: mod.Path, Dependencies: mod.Descriptor.Dependencies}
		if err := graphBuilder.AddMod(ctx, node); err != nil {
			return err
		}
		if err := graphBuilder.AddDefinitions(ctx, mod.Name, own); err != nil {
			return err
		}
	}

	log.Info().
		Int("mods", len(mods)).
		Int("definitions", len(defs)).
		Int("stored", stored).
		Msg("Index complete")

	return nil
}

func catalogCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the definition catalog",
	}

	conflicts := &cobra.Command{
		Use:   "conflicts",
		Short: "List definitions provided by more than one mod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, _ := cmd.Flags().GetString("export")
			exportPath, _ := cmd.Flags().GetString("output")
			return runCatalogConflicts(cfg, cmd.OutOrStdout(), exportFormat, exportPath)
		},
	}
	conflicts.Flags().String("export", "tsv", "Export format: tsv or json")
	conflicts.Flags().String("output", "", "Output path (without extension), stdout when empty")

	show := &cobra.Command{
		Use:   "show <type> <id>",
		Short: "List the stored versions of a definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogShow(cfg, cmd.OutOrStdout(), args[0], args[1])
		},
	}

	cmd.AddCommand(conflicts, show)
	return cmd
}

// runCatalogShow handles the `catalog show` command.
func runCatalogShow(cfg *config.Config, out io.Writer, typ, id string) error {
	ctx, cancel := setupContext()
	defer cancel()

	pgPool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	defs, err := catalog.New(pgPool).Definitions(ctx, cfg.Game, typ, id)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return fmt.Errorf("no definition %s-%s in the catalog", typ, id)
	}
	return writeCatalogDefinitions(out, defs)
}

func writeCatalogDefinitions(out io.Writer, defs []*definition.Definition) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MOD\tFILE\tKIND\tCODE")
	for _, d := range defs {
		code := textutil.Truncate(textutil.FirstLine(d.Code), codePreviewLen)
		if d.IsBinary() {
			code = d.ContentSHA
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ModName, d.File, d.ValueType, code)
	}
	return tw.Flush()
}

// runCatalogConflicts handles the `catalog conflicts` command.
func runCatalogConflicts(cfg *config.Config, out io.Writer, exportFormat, exportPath string) error {
	ctx, cancel := setupContext()
	defer cancel()

	pgPool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	cat := catalog.New(pgPool)

	if exportPath != "" {
		switch exportFormat {
		case "json":
			return cat.ExportJSON(ctx, cfg.Game, exportPath+".json")
		default:
			return cat.ExportTSV(ctx, cfg.Game, exportPath+".tsv")
		}
	}

	conflicts, err := cat.Conflicts(ctx, cfg.Game)
	if err != nil {
		return err
	}
	switch exportFormat {
	case "json":
		return catalog.WriteJSON(out, conflicts)
	default:
		return catalog.WriteTSV(out, conflicts)
	}
}

func graphCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the mod graph",
	}

	conflicts := &cobra.Command{
		Use:   "conflicts",
		Short: "List definitions that mods provide with different content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphConflicts(cfg, cmd.OutOrStdout())
		},
	}

	dependents := &cobra.Command{
		Use:   "dependents <mod>",
		Short: "List mods that depend on a mod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphDependents(cfg, cmd.OutOrStdout(), args[0])
		},
	}

	cmd.AddCommand(conflicts, dependents)
	return cmd
}

// runGraphConflicts handles the `graph conflicts` command.
func runGraphConflicts(cfg *config.Config, out io.Writer) error {
	ctx, cancel := setupContext()
	defer cancel()

	neo4jDriver, err := initNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer neo4jDriver.Close(ctx)

	results, err := graph.NewGraphQuerier(neo4jDriver).FindConflicts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFINITION\tMODS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Key, strings.Join(r.Mods, ", "))
	}
	return tw.Flush()
}

// runGraphDependents handles the `graph dependents` command.
func runGraphDependents(cfg *config.Config, out io.Writer, mod string) error {
	ctx, cancel := setupContext()
	defer cancel()

	neo4jDriver, err := initNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer neo4jDriver.Close(ctx)

	mods, err := graph.NewGraphQuerier(neo4jDriver).DependentMods(ctx, mod)
	if err != nil {
		return err
	}
	for _, m := range mods {
		fmt.Fprintln(out, m)
	}
	return nil
}
