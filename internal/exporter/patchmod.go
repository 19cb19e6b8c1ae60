package exporter

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"modpatch/internal/patchstate"
)

// GetPatchFiles lists the content files of the patch as slash separated
// paths relative to the patch root. Files in the root itself and the
// conflict history are excluded.
func (e *Exporter) GetPatchFiles(params patchstate.Parameters) ([]string, error) {
	root := params.PatchRoot()
	if !isDir(root) {
		return nil, nil
	}
	historyDir := strings.ToLower(patchstate.HistoryDirName)
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.Contains(rel, "/") && !strings.Contains(strings.ToLower(rel), historyDir) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list patch files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// CopyPatchMod copies the patch at params.ModPath to params.PatchPath and
// rewrites the mod names of params.RenamePairs inside the copied state. It
// returns false when the source patch does not exist.
func (e *Exporter) CopyPatchMod(ctx context.Context, params patchstate.Parameters) (bool, error) {
	src := params.ModRoot()
	dst := params.PatchRoot()
	if !isDir(src) {
		return false, nil
	}

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return e.retry.Do(ctx, func(context.Context) error { return copyFile(p, target) })
	})
	if err != nil {
		return false, fmt.Errorf("copy patch: %w", err)
	}

	text, err := patchstate.ReadContent(dst)
	if err != nil {
		return false, fmt.Errorf("read copied state: %w", err)
	}
	if text != nil {
		content := string(text)
		for _, pair := range params.RenamePairs {
			content = strings.ReplaceAll(content, `"`+pair.Old+`"`, `"`+pair.New+`"`)
		}
		err := e.retry.Do(ctx, func(context.Context) error {
			return patchstate.WriteContent(filepath.Join(dst, patchstate.StateFileName), []byte(content))
		})
		if err != nil {
			return false, fmt.Errorf("write copied state: %w", err)
		}
		if err := patchstate.DeleteLegacyFiles(dst); err != nil {
			return false, err
		}
	}

	log.Info().Str("from", src).Str("to", dst).Int("renames", len(params.RenamePairs)).Msg("Patch copied")
	return true, nil
}

// RenamePatchMod copies the patch like CopyPatchMod and then removes the
// source directory.
func (e *Exporter) RenamePatchMod(ctx context.Context, params patchstate.Parameters) (bool, error) {
	ok, err := e.CopyPatchMod(ctx, params)
	if err != nil || !ok {
		return ok, err
	}
	src := params.ModRoot()
	if err := e.retry.Do(ctx, func(context.Context) error { return os.RemoveAll(src) }); err != nil {
		return false, fmt.Errorf("remove old patch: %w", err)
	}
	e.store.ResetCache()
	return true, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
