package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modpatch/internal/config"
	"modpatch/internal/definition"
	"modpatch/internal/exporter"
	"modpatch/internal/patchstate"
)

func mergeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <mod-dir>...",
		Short: "Resolve conflicts between mods by load order and write a patch mod",
		Long: `Parses the mods in the given load order. For every definition provided
more than once the last mod wins. Winning definitions are written to the
patch mod under names that keep their precedence, and the patch state is
saved next to them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, _ := cmd.Flags().GetString("patch")
			mode, _ := cmd.Flags().GetString("mode")
			return runMerge(cfg, args, patch, mode)
		},
	}

	cmd.Flags().String("patch", "modpatch_patch", "Patch mod directory under the root")
	cmd.Flags().String("mode", patchstate.ModeDefault.String(), "Patch mode name or number")

	return cmd
}

// runMerge handles the `merge` command.
func runMerge(cfg *config.Config, dirs []string, patch, modeName string) error {
	ctx, cancel := setupContext()
	defer cancel()

	mode, err := patchstate.ParseMode(modeName)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	mods, defs, err := a.parseMods(ctx, dirs)
	if err != nil {
		return err
	}
	if !mode.IncludesLocalization() {
		defs = exporter.WithoutLocalization(defs)
	}

	conflicts := exporter.Conflicts(defs)
	resolved := exporter.Winners(conflicts)

	params := a.params(patch)
	params.Mode = mode
	params.LoadOrder = modNames(mods)
	params.Conflicts = conflicts
	params.ResolvedConflicts = resolved

	if !mode.IsReadOnly() {
		export := make([]*definition.Definition, 0, len(resolved))
		for _, d := range resolved {
			export = append(export, d.Clone(true))
		}
		params.Definitions = exporter.CombineVariables(export)
		if len(params.Definitions) > 0 {
			ok, err := a.exporter.ExportDefinition(ctx, params)
			if err != nil {
				return fmt.Errorf("export patch: %w", err)
			}
			if !ok {
				log.Warn().Str("game", cfg.Game).Msg("Patch content was not written")
			}
		}
	}

	params.Definitions = resolved
	if err := a.exporter.SaveState(ctx, params); err != nil {
		return fmt.Errorf("save patch state: %w", err)
	}
	a.store.Wait()

	log.Info().
		Int("mods", len(mods)).
		Int("definitions", len(defs)).
		Int("conflicts", len(conflicts)).
		Int("resolved", len(resolved)).
		Str("mode", mode.String()).
		Str("patch", params.PatchRoot()).
		Msg("Merge complete")

	return nil
}

func stateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and change the saved patch state",
	}

	show := &cobra.Command{
		Use:   "show <patch>",
		Short: "Print a summary of the patch state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return runStateShow(cfg, cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	show.Flags().Bool("json", false, "Print the full state as JSON, including history code")

	mode := &cobra.Command{
		Use:   "mode <patch> [mode]",
		Short: "Print or change the patch mode",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runStateMode(cfg, cmd.OutOrStdout(), args[0])
			}
			return runSetStateMode(cfg, args[0], args[1])
		},
	}

	cmd.AddCommand(show, mode)
	return cmd
}

// runStateShow handles the `state show` command.
func runStateShow(cfg *config.Config, out io.Writer, patch string, asJSON bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	state, err := a.exporter.GetPatchState(ctx, a.params(patch), asJSON)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("no patch state in %s", a.params(patch).PatchRoot())
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\n", state.Mode)
	fmt.Fprintf(tw, "load order\t%s\n", strings.Join(state.LoadOrder, ", "))
	fmt.Fprintf(tw, "game definitions\t%t\n", state.HasGameDefinitions)
	fmt.Fprintf(tw, "conflicts\t%d\n", len(state.Conflicts))
	fmt.Fprintf(tw, "resolved\t%d\n", len(state.ResolvedConflicts))
	fmt.Fprintf(tw, "ignored\t%d\n", len(state.IgnoredConflicts))
	fmt.Fprintf(tw, "overwritten\t%d\n", len(state.OverwrittenConflicts))
	fmt.Fprintf(tw, "custom\t%d\n", len(state.CustomConflicts))
	fmt.Fprintf(tw, "history\t%d\n", len(state.ConflictHistory))
	return tw.Flush()
}

// runStateMode handles `state mode <patch>`.
func runStateMode(cfg *config.Config, out io.Writer, patch string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	mode, ok, err := a.exporter.GetPatchStateMode(a.params(patch))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no patch mode in %s", a.params(patch).PatchRoot())
	}
	fmt.Fprintf(out, "%s (%d)\n", mode, int(mode))
	return nil
}

// runSetStateMode handles `state mode <patch> <mode>`. The rest of the
// state is saved unchanged.
func runSetStateMode(cfg *config.Config, patch, modeName string) error {
	ctx, cancel := setupContext()
	defer cancel()

	mode, err := patchstate.ParseMode(modeName)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	params := a.params(patch)
	state, err := a.exporter.GetPatchState(ctx, params, true)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("no patch state in %s", params.PatchRoot())
	}

	params.Mode = mode
	params.LoadOrder = state.LoadOrder
	params.HasGameDefinitions = state.HasGameDefinitions
	params.IgnoreConflictPaths = state.IgnoreConflictPaths
	params.Conflicts = state.Conflicts
	params.ResolvedConflicts = state.ResolvedConflicts
	params.IgnoredConflicts = state.IgnoredConflicts
	params.OverwrittenConflicts = state.OverwrittenConflicts
	params.CustomConflicts = state.CustomConflicts
	if err := a.exporter.SaveState(ctx, params); err != nil {
		return fmt.Errorf("save patch state: %w", err)
	}
	a.store.Wait()

	log.Info().Str("patch", patch).Str("mode", mode.String()).Msg("Patch mode changed")
	return nil
}

func patchCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Manage patch mod directories",
	}

	files := &cobra.Command{
		Use:   "files <patch>",
		Short: "List the content files of a patch mod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatchFiles(cfg, cmd.OutOrStdout(), args[0])
		},
	}

	history := &cobra.Command{
		Use:   "history <patch> <file>",
		Short: "Print the resolved code recorded for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatchHistory(cfg, cmd.OutOrStdout(), args[0], args[1])
		},
	}

	copyCmd := &cobra.Command{
		Use:   "copy <from> <to>",
		Short: "Copy a patch mod, renaming mods referenced by its state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringSlice("rename")
			return runPatchCopy(cfg, args[0], args[1], pairs, false)
		},
	}
	copyCmd.Flags().StringSlice("rename", nil, "Mod rename as old=new, repeatable")

	rename := &cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Move a patch mod, renaming mods referenced by its state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringSlice("rename")
			return runPatchCopy(cfg, args[0], args[1], pairs, true)
		},
	}
	rename.Flags().StringSlice("rename", nil, "Mod rename as old=new, repeatable")

	cmd.AddCommand(files, history, copyCmd, rename)
	return cmd
}

// runPatchFiles handles the `patch files` command.
func runPatchFiles(cfg *config.Config, out io.Writer, patch string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	files, err := a.exporter.GetPatchFiles(a.params(patch))
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}

// runPatchHistory handles the `patch history` command.
func runPatchHistory(cfg *config.Config, out io.Writer, patch, file string) error {
	ctx, cancel := setupContext()
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	code, err := a.exporter.LoadDefinitionContents(ctx, a.params(patch), file)
	if err != nil {
		return err
	}
	if code == "" {
		return fmt.Errorf("no recorded code for %s", file)
	}
	_, err = fmt.Fprintln(out, code)
	return err
}

// runPatchCopy handles `patch copy` and `patch rename`.
func runPatchCopy(cfg *config.Config, from, to string, pairs []string, move bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	renames, err := parseRenamePairs(pairs)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	params := a.params(to)
	params.ModPath = from
	params.RenamePairs = renames

	var ok bool
	if move {
		ok, err = a.exporter.RenamePatchMod(ctx, params)
	} else {
		ok, err = a.exporter.CopyPatchMod(ctx, params)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("patch mod %s not found", params.ModRoot())
	}

	log.Info().Str("from", from).Str("to", to).Bool("moved", move).Msg("Patch mod copied")
	return nil
}

func parseRenamePairs(pairs []string) ([]patchstate.RenamePair, error) {
	out := make([]patchstate.RenamePair, 0, len(pairs))
	for _, p := range pairs {
		oldName, newName, ok := strings.Cut(p, "=")
		if !ok || oldName == "" || newName == "" {
			return nil, fmt.Errorf("invalid rename %q, expected old=new", p)
		}
		out = append(out, patchstate.RenamePair{Old: oldName, New: newName})
	}
	return out, nil
}
