package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ExportTSV writes the conflicts of game to a TSV file.
func (c *Catalog) ExportTSV(ctx context.Context, game, outputPath string) error {
	return c.export(ctx, game, outputPath, WriteTSV)
}

// ExportJSON writes the conflicts of game to a JSON file.
func (c *Catalog) ExportJSON(ctx context.Context, game, outputPath string) error {
	return c.export(ctx, game, outputPath, WriteJSON)
}

func (c *Catalog) export(ctx context.Context, game, outputPath string, write func(io.Writer, []Conflict) error) error {
	conflicts, err := c.Conflicts(ctx, game)
	if err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := write(f, conflicts); err != nil {
		return err
	}

	log.Info().Str("path", outputPath).Int("conflicts", len(conflicts)).Msg("Exported conflicts")
	return nil
}

// WriteTSV writes conflicts as tab separated values with a header row.
func WriteTSV(w io.Writer, conflicts []Conflict) error {
	if _, err := fmt.Fprintln(w, "type\tid\tmods\tfiles"); err != nil {
		return err
	}
	for _, cf := range conflicts {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			escapeTSV(cf.Type),
			escapeTSV(cf.ID),
			escapeTSV(strings.Join(cf.Mods, ",")),
			escapeTSV(strings.Join(cf.Files, ",")),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes conflicts as an indented JSON array.
func WriteJSON(w io.Writer, conflicts []Conflict) error {
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(conflicts); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// escapeTSV replaces tabs and newlines in a string for TSV safety.
func escapeTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
