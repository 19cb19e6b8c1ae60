package parser

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"modpatch/internal/definition"
	"modpatch/internal/script"
)

func lines(s string) []string {
	return script.SplitLines(s)
}

func baseArgs(file, text string) Args {
	return Args{
		Lines:        lines(text),
		File:         file,
		ModName:      "fake",
		ModPath:      "mods/fake",
		ContentSHA:   "sha",
		Dependencies: []string{"1"},
		GameType:     "stellaris",
	}
}

func checkProvenance(t *testing.T, d *definition.Definition, file string) {
	t.Helper()
	if d.ContentSHA != "sha" || len(d.Dependencies) != 1 || d.Dependencies[0] != "1" {
		t.Errorf("provenance not copied: sha=%q deps=%v", d.ContentSHA, d.Dependencies)
	}
	if d.File != file || d.ModName != "fake" || d.ModPath != "mods/fake" {
		t.Errorf("placement not copied: file=%q mod=%q path=%q", d.File, d.ModName, d.ModPath)
	}
}

func TestGuiParser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		ids   []string
		codes []string
	}{
		{
			name:  "inline",
			input: `guiTypes = { containerWindowType = { name = "test" } }`,
			ids:   []string{"test"},
			codes: []string{"guiTypes = {\n    containerWindowType = {\n        name = \"test\"\n    }\n}"},
		},
		{
			name:  "closing braces on value line",
			input: "guiTypes = {\t\n\tcontainerWindowType = { \n\t\tname = \"test\" }}",
			ids:   []string{"test"},
			codes: []string{"guiTypes = {\n    containerWindowType = {\n        name = \"test\"\n    }\n}"},
		},
		{
			name:  "two children",
			input: "guiTypes = {\t\n\tcontainerWindowType = {\n\t\tname = \"test\"\n\t\tx = 1\n\t}\t\t\n\t\n\tcontainerWindowType = {\n\t\tname = \"test2\" \n\t}\n}",
			ids:   []string{"test", "test2"},
			codes: []string{
				"guiTypes = {\n    containerWindowType = {\n        name = \"test\"\n        x = 1\n    }\n}",
				"guiTypes = {\n    containerWindowType = {\n        name = \"test2\"\n    }\n}",
			},
		},
		{
			name:  "repeated guiTypes blocks",
			input: "guiTypes = {\n containerWindowType = { name = \"test\" }\n}\nguiTypes = {\n containerWindowType = { name = \"test2\" }\n}",
			ids:   []string{"test", "test2"},
		},
		{
			name:  "child without name uses key",
			input: "guiTypes = { positionType = { x = 1 } }",
			ids:   []string{"positionType"},
		},
		{
			name:  "other containers are ignored",
			input: "spriteTypes = { spriteType = { name = \"x\" } }",
		},
	}

	p := NewGuiParser(script.NewCodeParser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defs, err := p.Parse(baseArgs(`gui\gui.gui`, tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(defs) != len(tt.ids) {
				t.Fatalf("expected %d definitions, got %d", len(tt.ids), len(defs))
			}
			for i, d := range defs {
				if d.ID != tt.ids[i] {
					t.Errorf("definition %d: id %q, want %q", i, d.ID, tt.ids[i])
				}
				if d.ValueType != definition.Object || d.Type != "gui/gui" {
					t.Errorf("definition %d: value type %v type %q", i, d.ValueType, d.Type)
				}
				if tt.codes != nil && d.Code != tt.codes[i] {
					t.Errorf("definition %d code\n got: %q\nwant: %q", i, d.Code, tt.codes[i])
				}
				checkProvenance(t, d, `gui\gui.gui`)
			}
		})
	}
}

func TestGuiParser_InvalidFileYieldsError(t *testing.T) {
	t.Parallel()
	p := NewGuiParser(script.NewCodeParser())
	if _, err := p.Parse(baseArgs("gui/gui.gui", "guiTypes = { containerWindowType = {")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGraphicsParser_BitmapFontOverride(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"bitmapfonts = {",
		"\t bitmapfont_override = {",
		"\t\tname = \"large_title_font\"",
		"        ttf_font = \"Easter_bigger\"",
		"\t\tlanguages = { \"l_russian\" \"l_polish\" }",
		"\t }\t",
		"\t bitmapfont_override = {",
		"\t\tname = \"large_title_font\"",
		"\t\tlanguages = { \"l_russian\" }",
		"\t }",
		"}",
	}, "\n")

	p := NewGraphicsParser(script.NewCodeParser())
	defs, err := p.Parse(baseArgs(`gfx\gfx.gfx`, input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].ID != "l_polish-l_russian-large_title_font" {
		t.Errorf("first id = %q", defs[0].ID)
	}
	if defs[1].ID != "l_russian-large_title_font" {
		t.Errorf("second id = %q", defs[1].ID)
	}
	if defs[0].TypeAndID() == defs[1].TypeAndID() {
		t.Error("overrides for different languages must not collide")
	}
	wantCode := strings.Join([]string{
		"bitmapfonts = {",
		"    bitmapfont_override = {",
		`        name = "large_title_font"`,
		`        ttf_font = "Easter_bigger"`,
		"        languages = {",
		`            "l_russian"`,
		`            "l_polish"`,
		"        }",
		"    }",
		"}",
	}, "\n")
	if defs[0].Code != wantCode {
		t.Errorf("code\n got: %q\nwant: %q", defs[0].Code, wantCode)
	}
	if defs[0].Type != "gfx/gfx" {
		t.Errorf("type = %q", defs[0].Type)
	}
}

func TestLocalizationParser(t *testing.T) {
	t.Parallel()

	input := "\ufeffl_english:\n # comment\n KEY_1:0 \"First\"\n\n KEY_2:0 \"Second\"\nl_german:\n KEY_1:0 \"Erste\""
	p := NewLocalizationParser()
	defs, err := p.Parse(baseArgs("localisation/english/test_l_english.yml", input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}

	want := []struct{ id, typ, code string }{
		{"KEY_1", "localisation/english/l_english-yml", "l_english:\n KEY_1:0 \"First\""},
		{"KEY_2", "localisation/english/l_english-yml", "l_english:\n KEY_2:0 \"Second\""},
		{"KEY_1", "localisation/english/l_german-yml", "l_german:\n KEY_1:0 \"Erste\""},
	}
	for i, w := range want {
		d := defs[i]
		if d.ID != w.id || d.Type != w.typ || d.Code != w.code {
			t.Errorf("definition %d = {%q %q %q}, want {%q %q %q}", i, d.ID, d.Type, d.Code, w.id, w.typ, w.code)
		}
		if d.ValueType != definition.Variable {
			t.Errorf("definition %d value type %v", i, d.ValueType)
		}
	}
}

func TestLocalizationParser_IgnoresLinesBeforeHeader(t *testing.T) {
	t.Parallel()
	defs, _ := NewLocalizationParser().Parse(baseArgs("localisation/a.yml", " KEY:0 \"x\""))
	if len(defs) != 0 {
		t.Fatalf("expected no definitions, got %d", len(defs))
	}
}

func TestLocalizationParser_KeysWithLocalePrefix(t *testing.T) {
	t.Parallel()

	input := "l_english:\n l_english_title:0 \"Title\"\n other:0 \"Other\""
	defs, err := NewLocalizationParser().Parse(baseArgs("localisation/english/a_l_english.yml", input))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].ID != "l_english_title" || defs[0].Type != "localisation/english/l_english-yml" {
		t.Fatalf("unexpected first definition %+v", defs[0])
	}
	if defs[1].Code != "l_english:\n other:0 \"Other\"" {
		t.Fatalf("language lost after indented key: %q", defs[1].Code)
	}
}

func TestDefinesParser(t *testing.T) {
	t.Parallel()

	input := "# defines\nNGameplay = {\n\tPOLICY_YEARS = 10 # comment\n\tLIST = {\n\t\t1 2\n\t}\n}\nNGraphics = { ZOOM = 2 }"
	p := NewDefinesParser(script.NewCodeParser())

	if !p.CanParse(CanParseArgs{File: `common\defines\00_defines.txt`, GameType: "Stellaris"}) {
		t.Fatal("expected CanParse for stellaris defines")
	}
	if p.CanParse(CanParseArgs{File: "common/defines/00_defines.txt", GameType: "hoi4"}) {
		t.Fatal("defines parser must be game specific")
	}

	defs, err := p.Parse(baseArgs("common/defines/00_defines.txt", input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := make([]string, 0, len(defs))
	for _, d := range defs {
		got = append(got, d.Type+"|"+d.ID)
		if d.ValueType != definition.Variable {
			t.Errorf("%s: value type %v", d.ID, d.ValueType)
		}
	}
	want := []string{
		"common/defines/NGameplay-txt|POLICY_YEARS",
		"common/defines/NGameplay-txt|LIST",
		"common/defines/NGraphics-txt|ZOOM",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("definitions = %v, want %v", got, want)
	}
	if defs[0].Code != "NGameplay = {\n    POLICY_YEARS = 10\n}" {
		t.Errorf("code = %q", defs[0].Code)
	}
}

func TestGenericParser(t *testing.T) {
	t.Parallel()

	input := "namespace = test\n@cost = 5\nevent = {\n id = test.1\n}\nbare"
	defs, err := NewGenericParser(script.NewCodeParser()).Parse(baseArgs("events/test.txt", input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	want := []struct {
		id string
		vt definition.ValueType
	}{
		{"test", definition.Namespace},
		{"@cost", definition.Variable},
		{"event", definition.Object},
	}
	for i, w := range want {
		if defs[i].ID != w.id || defs[i].ValueType != w.vt {
			t.Errorf("definition %d = %q/%v, want %q/%v", i, defs[i].ID, defs[i].ValueType, w.id, w.vt)
		}
		if defs[i].Type != "events/txt" {
			t.Errorf("definition %d type %q", i, defs[i].Type)
		}
	}
	if defs[2].Code != "event = {\n    id = test.1\n}" {
		t.Errorf("object code = %q", defs[2].Code)
	}
}

type fakeWholeFileRules map[string]bool

func (f fakeWholeFileRules) IsWholeFile(_, file string) bool {
	return f[file]
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	code := script.NewCodeParser()
	r := NewRegistry(code, fakeWholeFileRules{"common/on_actions/00_on_actions.txt": true})

	tests := []struct {
		args Args
		want string
	}{
		{Args{File: "gfx/models/ship.dds"}, "binary"},
		{Args{File: "gfx/unknown.bin", IsBinary: true}, "binary"},
		{Args{File: "localisation/english/a_l_english.yml"}, "localization"},
		{Args{File: "common/defines/00.txt", GameType: "stellaris"}, "defines"},
		{Args{File: "common/defines/00.txt", GameType: "hoi4"}, "generic"},
		{Args{File: "interface/main.gui"}, "gui"},
		{Args{File: "interface/main.gfx"}, "graphics"},
		{Args{File: "common/on_actions/00_on_actions.txt"}, "whole_text"},
		{Args{File: "events/a.txt"}, "generic"},
	}
	for _, tt := range tests {
		p := r.Find(tt.args.CanParseArgs())
		if p == nil || p.Name() != tt.want {
			t.Errorf("%s: got parser %v, want %s", tt.args.File, p, tt.want)
		}
	}
	if p := r.Find(CanParseArgs{File: "readme.md"}); p != nil {
		t.Errorf("expected no parser, got %s", p.Name())
	}
}

func TestRegistryParse_AssignsOrderAndSwallowsErrors(t *testing.T) {
	t.Parallel()

	r := NewRegistry(script.NewCodeParser(), nil)
	defs := r.Parse(baseArgs("events/a.txt", "a = { x = 1 }\nb = { y = 2 }"))
	if len(defs) != 2 || defs[0].Order != 1 || defs[1].Order != 2 {
		t.Fatalf("unexpected definitions: %+v", defs)
	}

	if defs := r.Parse(baseArgs("events/bad.txt", "a = { x = ")); defs != nil {
		t.Fatalf("expected no definitions for a broken file, got %d", len(defs))
	}
}

func TestErrorSnippet(t *testing.T) {
	t.Parallel()

	src := []string{"a = {", "    " + strings.Repeat("x", 100) + " = 1", "}"}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"located", &script.ScriptError{Line: 2, Column: 5, Message: "bad"}, strings.Repeat("x", 80) + "..."},
		{"first line", fmt.Errorf("parse: %w", &script.ScriptError{Line: 1, Column: 5, Message: "bad"}), "a = {"},
		{"unlocated", &script.ScriptError{Message: "bad"}, ""},
		{"past end", &script.ScriptError{Line: 9, Message: "bad"}, ""},
		{"other error", errors.New("bad"), ""},
	}
	for _, tt := range tests {
		if got := errorSnippet(src, tt.err); got != tt.want {
			t.Errorf("%s: errorSnippet = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBinaryAndWholeTextParsers(t *testing.T) {
	t.Parallel()

	bin, _ := NewBinaryParser().Parse(baseArgs(`gfx\Icons\Ship.DDS`, ""))
	if len(bin) != 1 || bin[0].ID != "ship.dds" || bin[0].Type != "gfx/icons/dds" || bin[0].ValueType != definition.Binary {
		t.Fatalf("unexpected binary definition: %+v", bin[0])
	}

	whole, _ := NewWholeTextParser(fakeWholeFileRules{}).Parse(baseArgs("common/on_actions/00.txt", "a = 1\nb = 2"))
	if len(whole) != 1 || whole[0].Code != "a = 1\nb = 2" || whole[0].ValueType != definition.WholeTextFile {
		t.Fatalf("unexpected whole text definition: %+v", whole[0])
	}
	if NewWholeTextParser(nil).CanParse(CanParseArgs{File: "x.txt"}) {
		t.Fatal("nil rules must not match")
	}
}

func TestParseDescriptor(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`name="Test Mod"`,
		`path="mod/test"`,
		`tags={`,
		`	"Gameplay"`,
		`	"Fixes"`,
		`}`,
		`picture="thumbnail.png"`,
		`supported_version="2.6.*"`,
		`remote_file_id="1234"`,
		`dependencies={ "Core" "UI Overhaul" }`,
		`version="1.0"`,
	}, "\n")

	got := ParseDescriptor(lines(input))
	want := &ModObject{
		Name:             "Test Mod",
		FileName:         "mod/test",
		Picture:          "thumbnail.png",
		Version:          "1.0",
		SupportedVersion: "2.6.*",
		RemoteID:         1234,
		Tags:             []string{"Gameplay", "Fixes"},
		Dependencies:     []string{"Core", "UI Overhaul"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseDescriptor =\n%+v\nwant\n%+v", got, want)
	}
}
