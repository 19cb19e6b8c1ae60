package patchstate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"modpatch/internal/definition"
	"modpatch/internal/retry"
)

func testStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Policy{Attempts: 1}
	}
	s := NewStore(opts)
	t.Cleanup(s.Wait)
	return s
}

func testParams(t *testing.T) Parameters {
	t.Helper()
	return Parameters{RootPath: t.TempDir(), PatchPath: "modpatch_patch", Game: "stellaris"}
}

func def(typ, id, file, code string) *definition.Definition {
	return &definition.Definition{Type: typ, ID: id, File: file, Code: code, ValueType: definition.Object}
}

func readEnvelope(t *testing.T, file string) envelope {
	t.Helper()
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	text, err := Decompress(data)
	if err != nil {
		t.Fatalf("decompress %s: %v", file, err)
	}
	var env envelope
	if err := json.Unmarshal(text, &env); err != nil {
		t.Fatalf("unmarshal %s: %v", file, err)
	}
	return env
}

func TestGetPatchState_NoState(t *testing.T) {
	t.Parallel()

	s := testStore(t, Options{})
	state, err := s.GetPatchState(context.Background(), testParams(t), true)
	if err != nil {
		t.Fatalf("GetPatchState: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestSaveState_PersistsAndExternalizesHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)
	code := "obj = {\n    a = 1\n}"
	params.ResolvedConflicts = []*definition.Definition{def("common/buildings/txt", "obj", "common/buildings/b.txt", code)}
	params.Conflicts = []*definition.Definition{def("common/buildings/txt", "obj", "common/buildings/a.txt", "x")}
	params.Mode = ModeAdvanced
	params.LoadOrder = []string{"mod_a", "mod_b"}
	params.IgnoreConflictPaths = "--common/on_actions"

	s := testStore(t, Options{})
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s.Wait()

	dir := params.PatchRoot()
	for _, name := range []string{StateFileName, StateTempName, ModeFileName} {
		if !fileExists(filepath.Join(dir, name)) {
			t.Fatalf("expected %s to exist", name)
		}
	}
	env := readEnvelope(t, filepath.Join(dir, StateFileName))
	if len(env.ConflictHistory) != 1 || env.ConflictHistory[0].Code != "" {
		t.Fatalf("expected history code to be stored externally, got %+v", env.ConflictHistory)
	}
	if len(env.ResolvedConflicts) != 1 || env.ResolvedConflicts[0].Code != "" {
		t.Fatalf("expected resolved conflicts without code, got %+v", env.ResolvedConflicts)
	}
	if len(env.ExternalCode) != 1 || env.ExternalCode[0] != "common/buildings/txt-obj" {
		t.Fatalf("unexpected external index %v", env.ExternalCode)
	}
	hist, err := os.ReadFile(filepath.Join(dir, HistoryDirName, "common", "buildings", "txt", "obj.txt"))
	if err != nil || string(hist) != code {
		t.Fatalf("history file = %q, %v", hist, err)
	}
	if mode, ok, err := s.GetPatchStateMode(params); err != nil || !ok || mode != ModeAdvanced {
		t.Fatalf("GetPatchStateMode = %v, %v, %v", mode, ok, err)
	}

	fresh := testStore(t, Options{})
	state, err := fresh.GetPatchState(ctx, params, true)
	if err != nil || state == nil {
		t.Fatalf("GetPatchState = %v, %v", state, err)
	}
	if state.Mode != ModeAdvanced || state.IgnoreConflictPaths != params.IgnoreConflictPaths {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(state.LoadOrder) != 2 || len(state.Conflicts) != 1 || state.Conflicts[0].Code != "" {
		t.Fatalf("unexpected collections %+v", state)
	}
	if state.ConflictHistory[0].Code != code {
		t.Fatalf("history code not loaded: %q", state.ConflictHistory[0].Code)
	}

	got, err := fresh.LoadDefinitionContents(ctx, params, `COMMON\buildings\B.txt`)
	if err != nil || got != code {
		t.Fatalf("LoadDefinitionContents = %q, %v", got, err)
	}
	if got, _ := fresh.LoadDefinitionContents(ctx, params, "common/missing.txt"); got != "" {
		t.Fatalf("expected empty contents, got %q", got)
	}
}

func TestGetPatchState_WithoutExternalCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)
	params.Definitions = []*definition.Definition{def("events/txt", "e.1", "events/e.txt", "e = 1")}

	s := testStore(t, Options{})
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s.Wait()

	fresh := testStore(t, Options{})
	state, err := fresh.GetPatchState(ctx, params, false)
	if err != nil || state == nil {
		t.Fatalf("GetPatchState = %v, %v", state, err)
	}
	if state.ConflictHistory[0].Code != "" {
		t.Fatalf("expected code to stay external, got %q", state.ConflictHistory[0].Code)
	}
	if fresh.fromCache(params) != nil {
		t.Fatal("state read without external code must not be cached")
	}
}

func TestGetPatchState_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)
	params.ResolvedConflicts = []*definition.Definition{def("t", "a", "f.txt", "a = 1")}

	s := testStore(t, Options{})
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	first, _ := s.GetPatchState(ctx, params, true)
	first.ConflictHistory[0].Code = "mutated"
	first.LoadOrder = append(first.LoadOrder, "x")

	second, _ := s.GetPatchState(ctx, params, true)
	if second.ConflictHistory[0].Code != "a = 1" || len(second.LoadOrder) != 0 {
		t.Fatalf("cache was mutated through a returned copy: %+v", second)
	}
}

func TestGetPatchState_PathMismatchReadsDisk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	a := Parameters{RootPath: root, PatchPath: "patch_a", Mode: ModeReadOnly}
	b := Parameters{RootPath: root, PatchPath: "patch_b", Mode: ModeAdvanced}

	s := testStore(t, Options{})
	if err := s.SaveState(ctx, a); err != nil {
		t.Fatalf("SaveState a: %v", err)
	}
	s.Wait()
	if err := s.SaveState(ctx, b); err != nil {
		t.Fatalf("SaveState b: %v", err)
	}
	s.Wait()

	state, err := s.GetPatchState(ctx, a, true)
	if err != nil || state == nil {
		t.Fatalf("GetPatchState = %v, %v", state, err)
	}
	if state.Mode != ModeReadOnly {
		t.Fatalf("expected the state of patch_a, got mode %v", state.Mode)
	}
}

func TestSaveState_FailureAfterStagingKeepsPreviousState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)
	params.Mode = ModeDefault

	s := testStore(t, Options{})
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s.Wait()

	s.afterStage = func(string) error { return errors.New("simulated crash") }
	params.Mode = ModeReadOnly
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s.Wait()

	dir := params.PatchRoot()
	if env := readEnvelope(t, filepath.Join(dir, StateFileName)); env.Mode != ModeDefault {
		t.Fatalf("current state changed to %v", env.Mode)
	}
	if env := readEnvelope(t, filepath.Join(dir, StateTempName)); env.Mode != ModeReadOnly {
		t.Fatalf("temp state = %v, want staged new state", env.Mode)
	}

	fresh := testStore(t, Options{})
	state, err := fresh.GetPatchState(ctx, params, true)
	if err != nil || state == nil || state.Mode != ModeDefault {
		t.Fatalf("GetPatchState = %+v, %v", state, err)
	}
}

func TestGetPatchState_RecoversFromBackup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		corrupt func(t *testing.T, current string)
	}{
		{
			name: "current missing",
			corrupt: func(t *testing.T, current string) {
				if err := os.Remove(current); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "current truncated",
			corrupt: func(t *testing.T, current string) {
				if err := os.WriteFile(current, []byte{0x1f, 0x8b, 0x08}, 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			params := testParams(t)
			s := testStore(t, Options{})
			for _, mode := range []Mode{ModeAdvanced, ModeReadOnly} {
				params.Mode = mode
				if err := s.SaveState(ctx, params); err != nil {
					t.Fatalf("SaveState: %v", err)
				}
				s.Wait()
			}
			tt.corrupt(t, filepath.Join(params.PatchRoot(), StateFileName))

			state, err := testStore(t, Options{}).GetPatchState(ctx, params, true)
			if err != nil || state == nil {
				t.Fatalf("GetPatchState = %v, %v", state, err)
			}
			if state.Mode != ModeAdvanced {
				t.Fatalf("expected backup state, got mode %v", state.Mode)
			}
		})
	}
}

func TestGetPatchState_LegacyJSON(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)
	dir := params.PatchRoot()
	legacy := `{"conflict_history":[{"id":"obj","type":"common/x/txt","file":"common\\x\\a.txt","code":"inline"},` +
		`{"id":"other","type":"common/x/txt","file":"common/x/b.txt","code":"kept"}],"mode":2,"load_order":null}`
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	histFile := HistoryPath(dir, &definition.Definition{Type: "common/x/txt", ID: "obj"})
	if err := os.MkdirAll(filepath.Dir(histFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(histFile, []byte("from\r\nfile"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := testStore(t, Options{})
	state, err := s.GetPatchState(ctx, params, true)
	if err != nil || state == nil {
		t.Fatalf("GetPatchState = %v, %v", state, err)
	}
	if state.Mode != ModeReadOnly || state.LoadOrder == nil || state.Conflicts == nil {
		t.Fatalf("unexpected legacy state %+v", state)
	}
	if state.ConflictHistory[0].File != "common/x/a.txt" {
		t.Fatalf("path not standardized: %q", state.ConflictHistory[0].File)
	}
	if state.ConflictHistory[0].Code != "from\nfile" || state.ConflictHistory[1].Code != "kept" {
		t.Fatalf("unexpected history code %q %q", state.ConflictHistory[0].Code, state.ConflictHistory[1].Code)
	}

	if err := s.SaveState(ctx, Parameters{RootPath: params.RootPath, PatchPath: params.PatchPath, Mode: ModeReadOnly}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	s.Wait()
	if fileExists(filepath.Join(dir, "state.json")) {
		t.Fatal("expected legacy state to be removed")
	}
	env := readEnvelope(t, filepath.Join(dir, StateFileName))
	if env.ConflictHistory[0].Code != "" || env.ConflictHistory[1].Code != "kept" {
		t.Fatalf("unexpected serialized history %+v", env.ConflictHistory)
	}
}

func TestSaveState_NewerSaveSupersedesPendingWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(t)

	var (
		mu     sync.Mutex
		events []bool
	)
	s := testStore(t, Options{OnWriteState: func(idle bool) {
		mu.Lock()
		events = append(events, idle)
		mu.Unlock()
	}})

	staged := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.afterStage = func(string) error {
		once.Do(func() {
			close(staged)
			<-release
		})
		return nil
	}

	params.Mode = ModeAdvanced
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	select {
	case <-staged:
	case <-time.After(5 * time.Second):
		t.Fatal("first write never staged")
	}

	params.Mode = ModeReadOnly
	if err := s.SaveState(ctx, params); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	close(release)
	s.Wait()

	dir := params.PatchRoot()
	if env := readEnvelope(t, filepath.Join(dir, StateFileName)); env.Mode != ModeReadOnly {
		t.Fatalf("final state mode = %v", env.Mode)
	}
	if fileExists(filepath.Join(dir, StateBackupName)) {
		t.Fatal("superseded write must not have been promoted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 || !events[len(events)-1] {
		t.Fatalf("expected final idle notification, got %v", events)
	}
	for _, idle := range events[:len(events)-1] {
		if idle {
			t.Fatalf("idle reported while a write was pending: %v", events)
		}
	}
}

func TestGetPatchStateMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Mode
		wantOK  bool
	}{
		{name: "valid", content: "1", want: ModeAdvanced, wantOK: true},
		{name: "whitespace", content: " 5\n", want: ModeReadOnlyWithoutLocalization, wantOK: true},
		{name: "undefined", content: "9"},
		{name: "not a number", content: "advanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params := testParams(t)
			if err := os.MkdirAll(params.PatchRoot(), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(params.PatchRoot(), ModeFileName), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, ok, err := NewStore(Options{}).GetPatchStateMode(params)
			if err != nil || ok != tt.wantOK || got != tt.want {
				t.Fatalf("GetPatchStateMode = %v, %v, %v", got, ok, err)
			}
		})
	}

	if _, ok, err := NewStore(Options{}).GetPatchStateMode(testParams(t)); ok || err != nil {
		t.Fatalf("missing mode file: ok=%v err=%v", ok, err)
	}
}

func TestMergeHistory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		existing     []*definition.Definition
		resolved     []*definition.Definition
		defs         []*definition.Definition
		wantHistory  []string
		wantModified []string
	}{
		{
			name:         "new resolution is recorded",
			resolved:     []*definition.Definition{def("t", "a", "f", "a1")},
			wantHistory:  []string{"t-a:a1"},
			wantModified: []string{"t-a:a1"},
		},
		{
			name:         "unchanged resolution is not rewritten",
			existing:     []*definition.Definition{def("t", "a", "f", "a1")},
			resolved:     []*definition.Definition{def("t", "a", "f", "a1")},
			wantHistory:  []string{"t-a:a1"},
			wantModified: nil,
		},
		{
			name:         "changed resolution replaces history",
			existing:     []*definition.Definition{def("t", "a", "f", "a1")},
			resolved:     []*definition.Definition{def("t", "a", "f", "a2")},
			wantHistory:  []string{"t-a:a2"},
			wantModified: []string{"t-a:a2"},
		},
		{
			name:         "duplicate history collapses to the matching entry",
			existing:     []*definition.Definition{def("t", "a", "f", "a0"), def("t", "a", "f", "a1")},
			resolved:     []*definition.Definition{def("t", "a", "f", "a1")},
			wantHistory:  []string{"t-a:a1"},
			wantModified: []string{"t-a:a1"},
		},
		{
			name:         "definitions fill in after resolutions",
			existing:     []*definition.Definition{def("t", "b", "f", "b0")},
			resolved:     []*definition.Definition{def("t", "a", "f", "a1")},
			defs:         []*definition.Definition{def("t", "a", "f", "ignored"), def("t", "b", "f", "b1"), def("t", "c", "f", "")},
			wantHistory:  []string{"t-b:b1", "t-a:a1"},
			wantModified: []string{"t-a:a1", "t-b:b1"},
		},
		{
			name:         "resolutions without code are skipped",
			existing:     []*definition.Definition{def("t", "a", "f", "a1")},
			resolved:     []*definition.Definition{def("t", "a", "f", "")},
			wantHistory:  []string{"t-a:a1"},
			wantModified: nil,
		},
	}

	summarize := func(defs []*definition.Definition) []string {
		var out []string
		for _, d := range defs {
			out = append(out, d.TypeAndID()+":"+d.Code)
		}
		return out
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			history, modified := mergeHistory(tt.existing, tt.resolved, tt.defs)
			if got := summarize(history); strings.Join(got, ",") != strings.Join(tt.wantHistory, ",") {
				t.Fatalf("history = %v, want %v", got, tt.wantHistory)
			}
			if got := summarize(modified); strings.Join(got, ",") != strings.Join(tt.wantModified, ",") {
				t.Fatalf("modified = %v, want %v", got, tt.wantModified)
			}
		})
	}
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := Compress([]byte(`{"mode":1}`))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	got, err := Decompress(data)
	if err != nil || string(got) != `{"mode":1}` {
		t.Fatalf("Decompress = %q, %v", got, err)
	}
	if got, err := Decompress(nil); err != nil || got != nil {
		t.Fatalf("Decompress(nil) = %q, %v", got, err)
	}
}
