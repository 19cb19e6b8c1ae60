package patchstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"modpatch/internal/definition"
	"modpatch/internal/retry"
)

const hydrateConcurrency = 16

// Options configures a Store.
type Options struct {
	Retry retry.Policy
	// OnWriteState is called with false when a background write starts and
	// with true once no write is pending.
	OnWriteState func(idle bool)
}

// envelope is the serialized form of a state. ExternalCode is nil in
// states written before history externalization.
type envelope struct {
	PatchState
	ExternalCode []string `json:"external_code"`
}

type cachedState struct {
	lastCachedPath string
	state          *PatchState
	external       *HistoryIndex
}

// Store reads and writes patch states. A single Store should own a patch
// directory; it caches the last state it saw and persists changes in the
// background.
type Store struct {
	opts Options

	// lock serializes disk access. saveMu serializes the read-modify-write
	// of SaveState without waiting for a running background write.
	lock   *semaphore.Weighted
	saveMu sync.Mutex

	mu          sync.Mutex
	cached      *cachedState
	cancelWrite context.CancelFunc
	pending     int

	// notifyMu keeps idle notifications in the order of the counter
	// updates they report.
	notifyMu sync.Mutex

	wg sync.WaitGroup

	// afterStage runs after the temp file is complete and before promotion.
	afterStage func(dir string) error
}

// NewStore creates a Store.
func NewStore(opts Options) *Store {
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Default()
	}
	return &Store{
		opts: opts,
		lock: semaphore.NewWeighted(1),
	}
}

// ResetCache drops the cached state.
func (s *Store) ResetCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Wait blocks until every background write has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// GetPatchState returns a copy of the state of the patch. It returns nil
// when the patch has no state. With loadExternalCode the code of history
// entries stored in separate files is loaded and the result is cached.
func (s *Store) GetPatchState(ctx context.Context, params Parameters, loadExternalCode bool) (*PatchState, error) {
	if state := s.fromCache(params); state != nil {
		return state, nil
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)
	return s.getPatchStateLocked(ctx, params, loadExternalCode)
}

// fromCache returns a copy of the cached state when it belongs to the
// patch. A cache for another patch is dropped.
func (s *Store) fromCache(params Parameters) *PatchState {
	statePath := filepath.Join(params.PatchRoot(), StateFileName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return nil
	}
	if s.cached.lastCachedPath != statePath {
		s.cached = nil
		return nil
	}
	return s.cached.state.Clone(true)
}

func (s *Store) getPatchStateLocked(ctx context.Context, params Parameters, loadExternalCode bool) (*PatchState, error) {
	if state := s.fromCache(params); state != nil {
		return state, nil
	}
	dir := params.PatchRoot()
	state, external, err := s.load(ctx, dir, loadExternalCode)
	if err != nil || state == nil {
		return nil, err
	}
	if loadExternalCode {
		s.mu.Lock()
		s.cached = &cachedState{
			lastCachedPath: filepath.Join(dir, StateFileName),
			state:          state.Clone(true),
			external:       external,
		}
		s.mu.Unlock()
	}
	return state, nil
}

// load reads the state of dir from disk. Sources that fail to decode are
// skipped in favour of the next one.
func (s *Store) load(ctx context.Context, dir string, loadExternalCode bool) (*PatchState, *HistoryIndex, error) {
	var env *envelope
	for _, src := range stateSources(dir) {
		text, err := src.read()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("file", src.path).Msg("Unreadable patch state, trying next source")
			}
			continue
		}
		if strings.TrimSpace(string(text)) == "" {
			continue
		}
		var e envelope
		if err := json.Unmarshal(text, &e); err != nil {
			log.Warn().Err(err).Str("file", src.path).Msg("Corrupt patch state, trying next source")
			continue
		}
		env = &e
		break
	}
	if env == nil {
		return nil, nil, nil
	}

	state := &env.PatchState
	state.normalize()
	state.standardize()

	legacy := env.ExternalCode == nil
	external := NewHistoryIndex(env.ExternalCode...)
	log.Debug().
		Str("dir", dir).
		Int("history", len(state.ConflictHistory)).
		Int("external", external.Len()).
		Msg("Patch state loaded")
	if !loadExternalCode {
		return state, external, nil
	}

	loader := NewHistoryLoader(dir)
	found := make([]bool, len(state.ConflictHistory))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, d := range state.ConflictHistory {
		if !legacy && !external.Has(d.TypeAndID()) {
			continue
		}
		g.Go(func() error {
			code, ok, err := loader.Load(d)
			if err != nil {
				return fmt.Errorf("load history %s: %w", d.TypeAndID(), err)
			}
			if ok {
				d.Code = code
				found[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for i, ok := range found {
		if ok {
			external.Add(state.ConflictHistory[i].TypeAndID())
		}
	}
	return state, external, nil
}

// SaveState merges params into the state of the patch, updates the cache
// and schedules a background write. A write still pending for an older
// state is cancelled.
func (s *Store) SaveState(ctx context.Context, params Parameters) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	state, err := s.GetPatchState(ctx, params, true)
	if err != nil {
		return err
	}
	if state == nil {
		state = NewPatchState()
	}

	state.IgnoreConflictPaths = params.IgnoreConflictPaths
	state.ResolvedConflicts = cloneDefinitions(params.ResolvedConflicts, false)
	state.Conflicts = cloneDefinitions(params.Conflicts, false)
	state.IgnoredConflicts = cloneDefinitions(params.IgnoredConflicts, false)
	state.OverwrittenConflicts = cloneDefinitions(params.OverwrittenConflicts, false)
	state.CustomConflicts = cloneDefinitions(params.CustomConflicts, false)
	state.Mode = params.Mode
	state.LoadOrder = append([]string{}, params.LoadOrder...)
	state.HasGameDefinitions = params.HasGameDefinitions

	history, modified := mergeHistory(state.ConflictHistory, params.ResolvedConflicts, params.Definitions)
	state.ConflictHistory = cloneDefinitions(history, true)
	state.normalize()
	state.standardize()

	dir := params.PatchRoot()
	s.mu.Lock()
	external := NewHistoryIndex()
	if s.cached != nil && s.cached.external != nil {
		external = s.cached.external
	}
	s.cached = &cachedState{
		lastCachedPath: filepath.Join(dir, StateFileName),
		state:          state,
		external:       external,
	}
	snapshot := state.Clone(true)
	s.mu.Unlock()

	s.startWrite(dir, snapshot, cloneDefinitions(modified, true))
	return nil
}

// mergeHistory applies resolutions and new definitions to the history.
// It returns the new history and the entries whose code changed.
func mergeHistory(existing, resolved, defs []*definition.Definition) ([]*definition.Definition, []*definition.Definition) {
	var order []string
	groups := make(map[string][]*definition.Definition)
	for _, d := range existing {
		key := d.TypeAndID()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], d)
	}
	set := func(key string, d *definition.Definition) {
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = []*definition.Definition{d}
	}

	var modified []*definition.Definition
	touched := make(map[string]struct{})
	mark := func(key string, d *definition.Definition) {
		set(key, d)
		if _, ok := touched[key]; !ok {
			modified = append(modified, d)
		} else {
			for i, m := range modified {
				if m.TypeAndID() == key {
					modified[i] = d
				}
			}
		}
		touched[key] = struct{}{}
	}

	for _, r := range resolved {
		if r == nil || r.Code == "" {
			continue
		}
		key := r.TypeAndID()
		hits := groups[key]
		var same *definition.Definition
		for _, h := range hits {
			if h.Code == r.Code {
				same = h
				break
			}
		}
		switch {
		case same == nil:
			mark(key, r)
		case len(hits) > 1:
			mark(key, same)
		}
	}
	for _, d := range defs {
		if d == nil || d.Code == "" {
			continue
		}
		key := d.TypeAndID()
		if _, ok := touched[key]; ok {
			continue
		}
		mark(key, d)
	}

	history := make([]*definition.Definition, 0, len(order))
	for _, key := range order {
		history = append(history, groups[key]...)
	}
	return history, modified
}

func (s *Store) startWrite(dir string, state *PatchState, modified []*definition.Definition) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.cancelWrite != nil {
		s.cancelWrite()
	}
	s.cancelWrite = cancel
	s.pending++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		err := s.write(ctx, dir, state, modified)
		switch {
		case err == nil:
			log.Debug().Str("dir", dir).Int("history", len(modified)).Msg("Patch state written")
		case errors.Is(err, context.Canceled):
			log.Debug().Str("dir", dir).Msg("Patch state write superseded")
		default:
			log.Error().Err(err).Str("dir", dir).Msg("Failed to write patch state")
		}
		s.finishWrite()
	}()
}

func (s *Store) finishWrite() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	s.pending--
	idle := s.pending <= 0
	s.mu.Unlock()
	s.notify(idle)
}

func (s *Store) notify(idle bool) {
	if s.opts.OnWriteState != nil {
		s.opts.OnWriteState(idle)
	}
}

func (s *Store) externalIndex(statePath string) *HistoryIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached.lastCachedPath == statePath && s.cached.external != nil {
		return s.cached.external.Clone()
	}
	return NewHistoryIndex()
}

// write persists state in six steps: temp file, drop backup, current to
// backup, temp to current, mode file, legacy cleanup. Cancellation is only
// honoured before promotion starts.
func (s *Store) write(ctx context.Context, dir string, state *PatchState, modified []*definition.Definition) error {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.lock.Release(1)
	s.notifyMu.Lock()
	s.notify(false)
	s.notifyMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	statePath := filepath.Join(dir, StateFileName)
	external := s.externalIndex(statePath)
	loader := NewHistoryLoader(dir)

	var written []string
	for _, d := range modified {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.opts.Retry.Do(ctx, func(context.Context) error { return loader.Store(d) }); err != nil {
			return fmt.Errorf("write history %s: %w", d.TypeAndID(), err)
		}
		written = append(written, d.TypeAndID())
	}
	external.Add(written...)

	env := envelope{PatchState: *state.Clone(true), ExternalCode: external.Keys()}
	for _, d := range env.ConflictHistory {
		if external.Has(d.TypeAndID()) {
			d.Code = ""
		}
	}
	text, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("serialize patch state: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, StateTempName)
	backup := filepath.Join(dir, StateBackupName)
	err = s.opts.Retry.Do(ctx, func(context.Context) error {
		if err := removeIfExists(tmp); err != nil {
			return err
		}
		return WriteContent(tmp, text)
	})
	if err != nil {
		return fmt.Errorf("stage patch state: %w", err)
	}
	if s.afterStage != nil {
		if err := s.afterStage(dir); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Promotion runs to completion once started.
	promote := context.WithoutCancel(ctx)
	steps := []struct {
		name string
		fn   func() error
	}{
		{"drop backup", func() error { return removeIfExists(backup) }},
		{"backup current", func() error {
			if !fileExists(statePath) {
				return nil
			}
			if err := copyFile(statePath, backup); err != nil {
				return err
			}
			return os.Remove(statePath)
		}},
		{"promote temp", func() error { return copyFile(tmp, statePath) }},
		{"write mode", func() error {
			return os.WriteFile(filepath.Join(dir, ModeFileName), []byte(strconv.Itoa(int(state.Mode))), 0o644)
		}},
		{"delete legacy state", func() error { return DeleteLegacyFiles(dir) }},
	}
	for _, step := range steps {
		if err := s.opts.Retry.Do(promote, func(context.Context) error { return step.fn() }); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	s.mu.Lock()
	if s.cached != nil && s.cached.lastCachedPath == statePath && s.cached.external != nil {
		s.cached.external.Add(written...)
	}
	s.mu.Unlock()
	return nil
}

// GetPatchStateMode returns the mode recorded in the mode file of the patch.
// ok is false when the file is missing or holds no valid mode.
func (s *Store) GetPatchStateMode(params Parameters) (mode Mode, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(params.PatchRoot(), ModeFileName))
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !Mode(n).IsValid() {
		return 0, false, nil
	}
	return Mode(n), true, nil
}

// LoadDefinitionContents returns the last stored code for the file at path,
// or "" when no history entry matches.
func (s *Store) LoadDefinitionContents(ctx context.Context, params Parameters, path string) (string, error) {
	state, err := s.GetPatchState(ctx, params, true)
	if err != nil || state == nil {
		return "", err
	}
	want := strings.ToLower(definition.StandardizePath(path))
	for _, d := range state.ConflictHistory {
		if d.FileCI() == want {
			return d.Code, nil
		}
	}
	return "", nil
}
