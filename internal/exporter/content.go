package exporter

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"modpatch/internal/definition"
	"modpatch/internal/naming"
)

// FileNameMode selects how WriteMergedContent names output files.
type FileNameMode int

const (
	// GenerateFileName applies the naming rules.
	GenerateFileName FileNameMode = iota
	// UseExistingFileName keeps File and DiskFile.
	UseExistingFileName
	// UseExistingFileNameAndWriteEmptyFiles also blanks every overwritten
	// file name of the definition.
	UseExistingFileNameAndWriteEmptyFiles
)

// WriteMergedContent writes the code of every object definition into root.
// Variables and namespaces are skipped. The File and DiskFile fields of each
// written definition are updated to the names used.
func (e *Exporter) WriteMergedContent(ctx context.Context, defs []*definition.Definition, root string, provider *naming.Provider, checkIfExists bool, mode FileNameMode) error {
	type job struct {
		d                  *definition.Definition
		fileName, diskFile string
	}
	var jobs []job
	for _, d := range defs {
		if d.ValueType == definition.Variable || d.ValueType == definition.Namespace {
			continue
		}
		fileName, diskFile, err := fileNames(d, provider, mode)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{d: d, fileName: fileName, diskFile: diskFile})
	}

	g, gctx := e.group(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			return e.writeDefinition(gctx, j.d, root, provider, j.fileName, j.diskFile, checkIfExists, mode)
		})
	}
	return g.Wait()
}

func fileNames(d *definition.Definition, provider *naming.Provider, mode FileNameMode) (fileName, diskFile string, err error) {
	if mode != GenerateFileName {
		fileName = definition.StandardizePath(d.File)
		diskFile = definition.StandardizePath(d.DiskFile)
		if diskFile == "" {
			diskFile = fileName
		}
		return fileName, diskFile, nil
	}

	fileName, resolved, err := provider.GenerateFileName(d, false)
	if err != nil {
		return "", "", err
	}
	diskFile, diskResolved, err := provider.GenerateFileName(d, true)
	if err != nil {
		return "", "", err
	}
	if !resolved || !diskResolved {
		log.Warn().Str("definition", d.TypeAndID()).Str("file", diskFile).Msg("File name collision not resolved")
	}
	return fileName, diskFile, nil
}

func (e *Exporter) writeDefinition(ctx context.Context, d *definition.Definition, root string, provider *naming.Provider, fileName, diskFile string, checkIfExists bool, mode FileNameMode) error {
	outPath := filepath.Join(root, filepath.FromSlash(diskFile))
	if diskFile != fileName {
		// Older patches were written under the display name.
		if err := removeIfExists(filepath.Join(root, filepath.FromSlash(fileName))); err != nil {
			return err
		}
	}
	if checkIfExists && exists(outPath) {
		valid, err := hasValidEncoding(outPath, diskFile, provider)
		if err != nil {
			return err
		}
		if valid {
			return e.writeEmptyFiles(ctx, d, root, fileName, diskFile, mode)
		}
		log.Debug().Str("file", diskFile).Msg("Rewriting file with invalid encoding")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	d.DiskFile = diskFile
	d.File = fileName

	enc, err := provider.GetEncoding(d)
	if err != nil {
		return err
	}
	code := d.Code
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	err = e.retry.Do(ctx, func(context.Context) error {
		return writeEncoded(outPath, code, enc)
	})
	if err != nil {
		return err
	}
	return e.writeEmptyFiles(ctx, d, root, fileName, diskFile, mode)
}

// hasValidEncoding reports whether the file at outPath is encoded the way
// its location requires.
func hasValidEncoding(outPath, diskFile string, provider *naming.Provider) (bool, error) {
	data, err := os.ReadFile(outPath)
	if err != nil {
		return false, err
	}
	return provider.IsValidEncoding(diskFile, naming.DetectEncoding(data)), nil
}

func (e *Exporter) writeEmptyFiles(ctx context.Context, d *definition.Definition, root, fileName, diskFile string, mode FileNameMode) error {
	if mode != UseExistingFileNameAndWriteEmptyFiles {
		return nil
	}
	for _, name := range d.OverwrittenFileNames {
		name = definition.StandardizePath(name)
		if name == fileName || name == diskFile {
			continue
		}
		p := filepath.Join(root, filepath.FromSlash(name))
		err := e.retry.Do(ctx, func(context.Context) error {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
			return os.WriteFile(p, nil, 0o644)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// writeEncoded writes text to file through enc.
func writeEncoded(file, text string, enc encoding.Encoding) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	w := transform.NewWriter(f, enc.NewEncoder())
	if _, err := io.WriteString(w, text); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeIfExists(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
