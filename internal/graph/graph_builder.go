package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"modpatch/internal/definition"
	"modpatch/internal/worker"
)

// batchSize bounds the rows sent in one UNWIND statement.
const batchSize = 500

// ModNode is a mod with the names of the mods it depends on.
type ModNode struct {
	Name         string
	Path         string
	Dependencies []string
}

// GraphBuilder writes mods and their definitions into Neo4j:
// (:Mod)-[:DEFINES]->(:Definition) and (:Mod)-[:DEPENDS_ON]->(:Mod).
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Mod) REQUIRE m.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (d:Definition) REQUIRE d.key IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// AddMod upserts a mod and its dependency edges.
func (gb *GraphBuilder) AddMod(ctx context.Context, mod ModNode) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MERGE (m:Mod {name: $name})
		SET m.path = $path
	`, map[string]any{
		"name": mod.Name,
		"path": mod.Path,
	})
	if err != nil {
		return fmt.Errorf("upsert mod %s: %w", mod.Name, err)
	}

	for _, dep := range mod.Dependencies {
		_, err := session.Run(ctx, `
			MATCH (m:Mod {name: $name})
			MERGE (d:Mod {name: $dependency})
			MERGE (m)-[:DEPENDS_ON]->(d)
		`, map[string]any{
			"name":       mod.Name,
			"dependency": dep,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("mod", mod.Name).
				Str("dependency", dep).
				Msg("Failed to create dependency")
		}
	}
	return nil
}

// AddDefinitions links the definitions of a mod to it. Edges carry the file
// and content hash so conflicts can be found by comparing them.
func (gb *GraphBuilder) AddDefinitions(ctx context.Context, modName string, defs []*definition.Definition) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, batch := range worker.Batch(DefinitionRows(defs), batchSize) {
		_, err := session.Run(ctx, `
			MATCH (m:Mod {name: $mod})
			UNWIND $rows AS row
			MERGE (d:Definition {key: row.key})
			SET d.type = row.type,
			    d.id = row.id,
			    d.value_type = row.value_type
			MERGE (m)-[r:DEFINES]->(d)
			SET r.file = row.file,
			    r.sha = row.sha
		`, map[string]any{
			"mod":  modName,
			"rows": batch,
		})
		if err != nil {
			return fmt.Errorf("add definitions of %s: %w", modName, err)
		}
	}

	log.Info().Str("mod", modName).Int("definitions", len(defs)).Msg("Added definitions to graph")
	return nil
}

// DefinitionRows converts definitions to UNWIND parameters. The code hash
// falls back to the file content hash.
func DefinitionRows(defs []*definition.Definition) []any {
	rows := make([]any, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, map[string]any{
			"key":        d.TypeAndID(),
			"type":       d.Type,
			"id":         d.ID,
			"value_type": d.ValueType.String(),
			"file":       d.File,
			"sha":        codeHash(d),
		})
	}
	return rows
}
