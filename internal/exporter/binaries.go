package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"modpatch/internal/definition"
)

// ImageExtensions are tried in order when an image is missing under its
// recorded extension.
var ImageExtensions = []string{".dds", ".png", ".tga", ".jpg"}

// IsImageFile reports whether file has an image extension.
func IsImageFile(file string) bool {
	ext := strings.ToLower(path.Ext(definition.StandardizePath(file)))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CopyBinaries copies the source file of every definition from its mod into
// root. With checkIfExists, files already present are left alone.
func (e *Exporter) CopyBinaries(ctx context.Context, defs []*definition.Definition, root string, checkIfExists bool) error {
	g, gctx := e.group(ctx)
	for _, d := range defs {
		outPath := filepath.Join(root, filepath.FromSlash(definition.StandardizePath(d.File)))
		if checkIfExists && exists(outPath) {
			continue
		}
		g.Go(func() error {
			return e.retry.Do(gctx, func(context.Context) error {
				return e.copyBinary(d, outPath)
			})
		})
	}
	return g.Wait()
}

func (e *Exporter) copyBinary(d *definition.Definition, outPath string) error {
	src, err := e.openStream(d)
	if err != nil {
		return fmt.Errorf("open %s from %s: %w", d.File, d.ModName, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", d.File, err)
	}
	return out.Close()
}

func (e *Exporter) openStream(d *definition.Definition) (io.ReadCloser, error) {
	file := definition.StandardizePath(d.File)
	stream, err := e.reader.GetStream(d.ModPath, file)
	if err == nil || !errors.Is(err, fs.ErrNotExist) || !IsImageFile(file) {
		return stream, err
	}
	base := strings.TrimSuffix(file, path.Ext(file))
	for _, ext := range ImageExtensions {
		alt, altErr := e.reader.GetStream(d.ModPath, base+ext)
		if altErr == nil {
			return alt, nil
		}
		if !errors.Is(altErr, fs.ErrNotExist) {
			return nil, altErr
		}
	}
	return nil, err
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
