// Package catalog indexes parsed definitions in PostgreSQL so conflicts
// across a mod collection can be queried and exported.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"modpatch/internal/definition"
)

// DB is the subset of pgxpool.Pool used by the catalog.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS definitions (
		game        TEXT NOT NULL,
		mod_name    TEXT NOT NULL,
		type        TEXT NOT NULL,
		id          TEXT NOT NULL,
		file        TEXT NOT NULL,
		value_type  INT  NOT NULL,
		content_sha TEXT NOT NULL,
		code        TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (game, mod_name, type, id)
	)`,
	`CREATE INDEX IF NOT EXISTS definitions_identity ON definitions (game, type, id)`,
	`CREATE TABLE IF NOT EXISTS parsed_files (
		key         TEXT PRIMARY KEY,
		definitions JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Catalog stores definitions and parsed file results.
type Catalog struct {
	db DB
}

// New creates a catalog on db, usually a *pgxpool.Pool.
func New(db DB) *Catalog {
	return &Catalog{db: db}
}

// EnsureSchema creates the catalog tables.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	log.Info().Msg("Catalog schema ensured")
	return nil
}

// Upsert stores the definitions of game, replacing earlier versions from
// the same mod. Within defs the last definition of an identity wins.
func (c *Catalog) Upsert(ctx context.Context, game string, defs []*definition.Definition) (int, error) {
	var upserted int
	for _, d := range definition.Dedupe(defs) {
		tag, err := c.db.Exec(ctx, `
			INSERT INTO definitions (game, mod_name, type, id, file, value_type, content_sha, code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (game, mod_name, type, id) DO UPDATE
			SET file = EXCLUDED.file,
			    value_type = EXCLUDED.value_type,
			    content_sha = EXCLUDED.content_sha,
			    code = EXCLUDED.code,
			    updated_at = now()
		`, game, d.ModName, d.Type, d.ID, d.File, int(d.ValueType), d.ContentSHA, d.Code)
		if err != nil {
			return upserted, fmt.Errorf("upsert definition %s: %w", d.TypeAndID(), err)
		}
		upserted += int(tag.RowsAffected())
	}

	log.Info().Str("game", game).Int("upserted", upserted).Msg("Upserted definitions")
	return upserted, nil
}

// Conflict is an identity defined with different code by several mods.
type Conflict struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Mods  []string `json:"mods"`
	Files []string `json:"files"`
}

// TypeAndID returns the identity of the conflict.
func (c Conflict) TypeAndID() string {
	return c.Type + "-" + c.ID
}

// Conflicts lists the identities of game whose code differs between mods.
// Variables and namespaces are included. Text compares by code, binaries
// by content hash.
func (c *Catalog) Conflicts(ctx context.Context, game string) ([]Conflict, error) {
	rows, err := c.db.Query(ctx, `
		SELECT type, id,
		       array_agg(mod_name ORDER BY mod_name) AS mods,
		       array_agg(DISTINCT file) AS files
		FROM definitions
		WHERE game = $1
		GROUP BY type, id
		HAVING count(DISTINCT CASE WHEN value_type = $2 THEN content_sha ELSE md5(code) END) > 1
		ORDER BY type, id
	`, game, int(definition.Binary))
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}

	conflicts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Conflict, error) {
		var cf Conflict
		err := row.Scan(&cf.Type, &cf.ID, &cf.Mods, &cf.Files)
		return cf, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan conflicts: %w", err)
	}
	return conflicts, nil
}

// Definitions returns every stored definition of an identity, ordered by
// mod name.
func (c *Catalog) Definitions(ctx context.Context, game, typ, id string) ([]*definition.Definition, error) {
	rows, err := c.db.Query(ctx, `
		SELECT mod_name, file, value_type, content_sha, code
		FROM definitions
		WHERE game = $1 AND type = $2 AND id = $3
		ORDER BY mod_name
	`, game, typ, id)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*definition.Definition, error) {
		d := &definition.Definition{Type: typ, ID: id}
		var valueType int
		if err := row.Scan(&d.ModName, &d.File, &valueType, &d.ContentSHA, &d.Code); err != nil {
			return nil, err
		}
		d.ValueType = definition.ValueType(valueType)
		return d, nil
	})
}

// LoadFile returns the definitions recorded for a parsed file key.
func (c *Catalog) LoadFile(ctx context.Context, key string) ([]*definition.Definition, bool, error) {
	var raw []byte
	err := c.db.QueryRow(ctx, `SELECT definitions FROM parsed_files WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load parsed file: %w", err)
	}
	var defs []*definition.Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, false, fmt.Errorf("decode parsed file: %w", err)
	}
	return defs, true, nil
}

// StoreFile records the definitions of a parsed file key.
func (c *Catalog) StoreFile(ctx context.Context, key string, defs []*definition.Definition) error {
	raw, err := json.Marshal(defs)
	if err != nil {
		return fmt.Errorf("encode parsed file: %w", err)
	}
	_, err = c.db.Exec(ctx, `
		INSERT INTO parsed_files (key, definitions) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET definitions = EXCLUDED.definitions, updated_at = now()
	`, key, raw)
	if err != nil {
		return fmt.Errorf("store parsed file: %w", err)
	}
	return nil
}
