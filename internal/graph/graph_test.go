package graph

import (
	"slices"
	"testing"

	"modpatch/internal/definition"
	"modpatch/internal/textutil"
)

func TestDefinitionRows(t *testing.T) {
	t.Parallel()

	defs := []*definition.Definition{
		{ID: "a", Type: "common/x/txt", File: "common/x/a.txt", ValueType: definition.Object, Code: "a = 1", ContentSHA: "file"},
		{ID: "i.dds", Type: "gfx/dds", File: "gfx/i.dds", ValueType: definition.Binary, ContentSHA: "bin"},
	}
	rows := DefinitionRows(defs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0].(map[string]any)
	if first["key"] != "common/x/txt-a" || first["sha"] != textutil.Hash("a = 1") || first["value_type"] != definition.Object.String() {
		t.Fatalf("unexpected row %v", first)
	}
	if second := rows[1].(map[string]any); second["sha"] != "bin" {
		t.Fatalf("binary rows hash by content, got %v", second["sha"])
	}
}

func TestToStrings(t *testing.T) {
	t.Parallel()

	if got := toStrings([]any{"b", "a"}); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("toStrings = %v", got)
	}
	if got := toStrings("nope"); got != nil {
		t.Fatalf("toStrings(non-list) = %v", got)
	}
}
