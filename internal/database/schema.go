package database

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// SchemaVersion is the version stamped into PRAGMA user_version.
// Bumping it discards every stored row on the next open.
const SchemaVersion = 1

const itemSchema = `
	CREATE TABLE IF NOT EXISTS item (
		id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER NOT NULL
	);

	-- Backs the name ordering of the full item listing
	CREATE INDEX IF NOT EXISTS idx_item_name ON item(name);
`

// schemaObject is a row of sqlite_master
type schemaObject struct {
	Name string `db:"name"`
	Type string `db:"type"`
}

// Version returns the schema version recorded in the database file
func (db *DB) Version() (int, error) {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// ensureSchema creates the item table on a fresh file. On a version mismatch
// it drops everything and starts over; there is no migration path.
func (db *DB) ensureSchema() error {
	current, err := db.Version()
	if err != nil {
		return err
	}

	var objects []schemaObject
	if err := db.Select(&objects, `
		SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
	`); err != nil {
		return fmt.Errorf("failed to list schema objects: %w", err)
	}

	hasItemTable := slices.Contains(objects, schemaObject{Name: ItemTable, Type: "table"})

	fresh := current == 0 && len(objects) == 0
	if current == SchemaVersion && hasItemTable {
		log.Debug().Int("version", current).Msg("Schema is current")
		return nil
	}

	return db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		if !fresh {
			log.Warn().
				Int("found_version", current).
				Int("expected_version", SchemaVersion).
				Bool("item_table", hasItemTable).
				Msg("Schema mismatch, rebuilding empty database")

			for _, obj := range objects {
				stmt := fmt.Sprintf(`DROP %s IF EXISTS "%s"`, strings.ToUpper(obj.Type), strings.ReplaceAll(obj.Name, `"`, `""`))
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("failed to drop %s %s: %w", obj.Type, obj.Name, err)
				}
			}
		}

		for i, stmt := range splitSQLStatements(itemSchema) {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("schema statement %d failed: %w", i+1, err)
			}
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}

		log.Info().Int("version", SchemaVersion).Msg("Database schema created")
		return nil
	})
}

// splitSQLStatements splits a SQL string into individual statements.
// It handles comments and only returns non-empty statements.
func splitSQLStatements(sql string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.SplitSeq(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}

	return statements
}
