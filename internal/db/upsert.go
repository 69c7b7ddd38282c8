package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a keyed export, such as per-run district metrics
// keyed on (run_id, state, district).
type UpsertConfig struct {
	Table        string   // optionally schema qualified
	Columns      []string // column order of every row
	ConflictKeys []string // the table's unique key
	UpdateCols   []string // nil overwrites every column outside the key
}

// stagingTable names the session-local copy target for table.
func stagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

// mergeSQL builds the statements that create the staging table and fold it
// into the target.
func mergeSQL(cfg UpsertConfig) (create, merge string) {
	stage := pgx.Identifier{stagingTable(cfg.Table)}.Sanitize()
	target := sanitizeTable(cfg.Table)

	update := cfg.UpdateCols
	if update == nil {
		key := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			key[k] = true
		}
		for _, c := range cfg.Columns {
			if !key[c] {
				update = append(update, c)
			}
		}
	}
	set := make([]string, len(update))
	for i, c := range update {
		col := pgx.Identifier{c}.Sanitize()
		set[i] = col + " = EXCLUDED." + col
	}

	cols := quoteAndJoin(cfg.Columns)
	create = fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", stage, target)
	merge = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target, cols, cols, stage, quoteAndJoin(cfg.ConflictKeys), strings.Join(set, ", "))
	return create, merge
}

// BulkUpsert writes rows into cfg.Table in one transaction. Rows are copied
// into a staging table that drops on commit, then merged with INSERT ... ON
// CONFLICT, so re-exporting a run replaces its earlier rows. It returns the
// number of rows merged.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.Errorf("db: export to %s: no columns", cfg.Table)
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.Errorf("db: export to %s: no key columns", cfg.Table)
	}

	create, merge := mergeSQL(cfg)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: export to %s: begin", cfg.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: export to %s: create staging table", cfg.Table)
	}
	if _, err := CopyFrom(ctx, tx, stagingTable(cfg.Table), cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: export to %s: stage rows", cfg.Table)
	}
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: export to %s: merge", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: export to %s: commit", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable quotes a table name and its optional schema.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
