package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"modpatch/internal/definition"
	"modpatch/internal/textutil"
)

// ConflictResult is a definition provided with different content by more
// than one mod.
type ConflictResult struct {
	Key  string
	Mods []string
}

// GraphQuerier queries the mod graph.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

// FindConflicts lists definitions whose DEFINES edges carry more than one
// content hash.
func (gq *GraphQuerier) FindConflicts(ctx context.Context) ([]ConflictResult, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (m:Mod)-[r:DEFINES]->(d:Definition)
		WITH d, collect(DISTINCT r.sha) AS hashes, collect(m.name) AS mods
		WHERE size(hashes) > 1
		RETURN d.key AS key, mods
		ORDER BY key
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}

	var conflicts []ConflictResult
	for result.Next(ctx) {
		record := result.Record()
		key, _ := record.Get("key")
		mods, _ := record.Get("mods")
		conflicts = append(conflicts, ConflictResult{
			Key:  fmt.Sprintf("%v", key),
			Mods: toStrings(mods),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read conflicts: %w", err)
	}

	log.Debug().Int("conflicts", len(conflicts)).Msg("Graph query complete")
	return conflicts, nil
}

// DependentMods returns the mods that depend on mod, directly or through
// other mods.
func (gq *GraphQuerier) DependentMods(ctx context.Context, mod string) ([]string, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (dep:Mod)-[:DEPENDS_ON*1..]->(:Mod {name: $name})
		RETURN DISTINCT dep.name AS name
	`, map[string]any{"name": mod})
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}

	var names []string
	for result.Next(ctx) {
		name, _ := result.Record().Get("name")
		names = append(names, fmt.Sprintf("%v", name))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read dependents: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	sort.Strings(out)
	return out
}

func codeHash(d *definition.Definition) string {
	if d.Code != "" {
		return textutil.Hash(d.Code)
	}
	return d.ContentSHA
}
