package patchstate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const (
	StateFileName   = "state.irony"
	StateBackupName = StateFileName + ".bak"
	StateTempName   = StateFileName + ".tmp"
	ModeFileName    = "mode.txt"
	HistoryDirName  = "state_conflict_history"

	legacyStateName = "state.json"
	historyExt      = ".txt"
)

// LegacyFiles are the plain JSON state files written by older versions.
var LegacyFiles = []string{legacyStateName, legacyStateName + ".bak", legacyStateName + ".tmp"}

// Compress gzips text.
func Compress(text []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(text); err != nil {
		return nil, fmt.Errorf("compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress state: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Empty input yields empty output.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress state: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress state: %w", err)
	}
	return out, nil
}

// WriteContent writes text compressed to file.
func WriteContent(file string, text []byte) error {
	data, err := Compress(text)
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(file), err)
	}
	return nil
}

// ReadContent returns the state text of the patch in dir, preferring a
// legacy JSON file over the compressed state. A missing state yields nil.
func ReadContent(dir string) ([]byte, error) {
	for _, src := range stateSources(dir)[:2] {
		text, err := src.read()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return text, err
	}
	return nil, nil
}

type stateSource struct {
	path       string
	compressed bool
}

func (s stateSource) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if !s.compressed {
		return data, nil
	}
	return Decompress(data)
}

// stateSources lists the state files in read priority order. The backup is
// last: it is only consulted when a write was interrupted during promotion.
func stateSources(dir string) []stateSource {
	return []stateSource{
		{path: filepath.Join(dir, legacyStateName)},
		{path: filepath.Join(dir, StateFileName), compressed: true},
		{path: filepath.Join(dir, StateBackupName), compressed: true},
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func removeIfExists(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// DeleteLegacyFiles removes the plain JSON state files from dir.
func DeleteLegacyFiles(dir string) error {
	for _, name := range LegacyFiles {
		if err := removeIfExists(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("delete legacy state %s: %w", name, err)
		}
	}
	return nil
}
