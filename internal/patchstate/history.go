package patchstate

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"modpatch/internal/definition"
)

// HistoryIndex records which history entries keep their code in a separate
// file instead of inside the state. It is not safe for concurrent use; the
// Store guards it.
type HistoryIndex struct {
	keys map[string]struct{}
}

// NewHistoryIndex creates an index holding keys.
func NewHistoryIndex(keys ...string) *HistoryIndex {
	idx := &HistoryIndex{keys: make(map[string]struct{}, len(keys))}
	idx.Add(keys...)
	return idx
}

func (h *HistoryIndex) Add(keys ...string) {
	for _, k := range keys {
		h.keys[k] = struct{}{}
	}
}

func (h *HistoryIndex) Has(key string) bool {
	_, ok := h.keys[key]
	return ok
}

func (h *HistoryIndex) Len() int {
	return len(h.keys)
}

// Keys returns the keys in sorted order.
func (h *HistoryIndex) Keys() []string {
	keys := make([]string, 0, len(h.keys))
	for k := range h.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (h *HistoryIndex) Clone() *HistoryIndex {
	return NewHistoryIndex(h.Keys()...)
}

// HistoryPath returns the file holding the code of a history entry.
func HistoryPath(dir string, d *definition.Definition) string {
	return filepath.Join(dir, HistoryDirName, filepath.FromSlash(d.Type), definition.SanitizeFileName(d.ID)+historyExt)
}

// HistoryLoader reads history code from a patch directory on demand.
type HistoryLoader struct {
	dir string
}

func NewHistoryLoader(dir string) *HistoryLoader {
	return &HistoryLoader{dir: dir}
}

// Load returns the stored code of d. ok is false when no file exists.
func (l *HistoryLoader) Load(d *definition.Definition) (code string, ok bool, err error) {
	data, err := os.ReadFile(HistoryPath(l.dir, d))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return text, true, nil
}

// Store writes the code of d to its history file.
func (l *HistoryLoader) Store(d *definition.Definition) error {
	p := HistoryPath(l.dir, d)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(d.Code), 0o644)
}
