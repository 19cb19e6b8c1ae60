package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"modpatch/internal/config"
	"modpatch/internal/definition"
	"modpatch/internal/script"
)

func parseCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <mod-dir>...",
		Short: "Parse mods and list the definitions they provide",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			summary, _ := cmd.Flags().GetBool("summary")
			return runParse(cfg, cmd.OutOrStdout(), args, asJSON, summary)
		},
	}

	cmd.Flags().Bool("json", false, "Print definitions as JSON")
	cmd.Flags().Bool("summary", false, "Print definition counts per type only")

	return cmd
}

// runParse handles the `parse` command.
func runParse(cfg *config.Config, out io.Writer, dirs []string, asJSON, summary bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	_, defs, err := a.parseMods(ctx, dirs)
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	case summary:
		return writeSummary(out, defs)
	default:
		return writeDefinitions(out, defs)
	}
}

func writeDefinitions(out io.Writer, defs []*definition.Definition) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tKIND\tMOD\tFILE")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Type, d.ID, d.ValueType, d.ModName, d.File)
	}
	return tw.Flush()
}

func writeSummary(out io.Writer, defs []*definition.Definition) error {
	counts := make(map[string]int)
	for _, d := range defs {
		counts[d.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tDEFINITIONS")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, counts[t])
	}
	fmt.Fprintf(tw, "total\t%d\n", len(defs))
	return tw.Flush()
}

func validateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check script files for structural errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			simple, _ := cmd.Flags().GetBool("simple")
			return runValidate(cmd.OutOrStdout(), args, simple)
		},
	}

	cmd.Flags().Bool("simple", false, "Only check that braces balance")

	return cmd
}

var errInvalidScript = errors.New("invalid script")

// runValidate handles the `validate` command.
func runValidate(out io.Writer, files []string, simple bool) error {
	code := script.NewCodeParser()

	invalid := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		if serr := code.PerformValidityCheck(script.SplitLines(string(data)), filepath.ToSlash(file), simple); serr != nil {
			invalid++
			fmt.Fprintf(out, "%s: %s\n", file, serr)
			continue
		}
		log.Debug().Str("file", file).Msg("Script is valid")
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d files", errInvalidScript, invalid, len(files))
	}
	return nil
}

func formatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format <file>",
		Short: "Reformat a script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, _ := cmd.Flags().GetBool("write")
			return runFormat(cmd.OutOrStdout(), args[0], write)
		},
	}

	cmd.Flags().BoolP("write", "w", false, "Write the result back to the file")

	return cmd
}

// runFormat handles the `format` command. Comments are not preserved.
func runFormat(out io.Writer, file string, write bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	resp := script.NewCodeParser().ParseScript(script.SplitLines(string(data)), filepath.ToSlash(file), false)
	if resp.HasError() {
		return fmt.Errorf("%w: %s: %s", errInvalidScript, file, resp.Error)
	}
	formatted := script.FormatElements(resp.Values, 0) + "\n"

	if !write {
		_, err := io.WriteString(out, formatted)
		return err
	}
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, []byte(formatted), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	log.Info().Str("file", file).Msg("Formatted")
	return nil
}
