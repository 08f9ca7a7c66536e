/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"landuse-agent/internal/logging"
)

// ColumnInfo describes one column of a catalog table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableInfo describes one table of the analytical schema. Kind classifies
// the star-schema role by naming convention: dim_* tables are dimensions,
// fact_* tables are facts, everything else is plain.
type TableInfo struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	RowCount int64        `json:"row_count"`
	Columns  []ColumnInfo `json:"columns"`
}

// SchemaSnapshot is a point-in-time view of the schema. Validation and tool
// responses both read from it so that a query is judged against the same
// schema the model was shown.
type SchemaSnapshot struct {
	Tables   []TableInfo `json:"tables"`
	LoadedAt time.Time   `json:"loaded_at"`
}

// TableRows returns the name-to-row-count map the validator consumes.
func (s *SchemaSnapshot) TableRows() map[string]int64 {
	rows := make(map[string]int64, len(s.Tables))
	for _, t := range s.Tables {
		rows[strings.ToLower(t.Name)] = t.RowCount
	}
	return rows
}

// Table looks a table up by name, case-insensitively.
func (s *SchemaSnapshot) Table(name string) (TableInfo, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableInfo{}, false
}

// Catalog caches the schema snapshot and refreshes it on demand. Reads are
// cheap and concurrent; refreshes serialize behind the write lock.
type Catalog struct {
	store *Store

	mu       sync.RWMutex
	snapshot *SchemaSnapshot
}

// NewCatalog loads the initial snapshot from the store.
func NewCatalog(ctx context.Context, store *Store) (*Catalog, error) {
	c := &Catalog{store: store}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns the current schema snapshot.
func (c *Catalog) Snapshot() *SchemaSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Refresh reloads the snapshot from the database.
func (c *Catalog) Refresh(ctx context.Context) error {
	start := time.Now()
	var (
		tables []TableInfo
		err    error
	)
	switch c.store.Dialect() {
	case "postgres":
		tables, err = loadPostgresSchema(ctx, c.store)
	default:
		tables, err = loadSQLiteSchema(ctx, c.store)
	}
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	snap := &SchemaSnapshot{Tables: tables, LoadedAt: time.Now()}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	logging.Info("schema snapshot refreshed",
		"tables", len(tables), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func classifyTable(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "dim_"):
		return "dimension"
	case strings.HasPrefix(lower, "fact_"):
		return "fact"
	default:
		return "table"
	}
}

func loadSQLiteSchema(ctx context.Context, store *Store) ([]TableInfo, error) {
	rows, err := store.DB().QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{Name: name, Kind: classifyTable(name)}

		colRows, err := store.DB().QueryContext(ctx,
			`SELECT name, type, "notnull" FROM pragma_table_info(?)`, name)
		if err != nil {
			return nil, err
		}
		for colRows.Next() {
			var (
				col     ColumnInfo
				notNull int
			)
			if err := colRows.Scan(&col.Name, &col.Type, &notNull); err != nil {
				colRows.Close()
				return nil, err
			}
			col.Nullable = notNull == 0
			info.Columns = append(info.Columns, col)
		}
		if err := colRows.Close(); err != nil {
			return nil, err
		}

		if err := store.DB().QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&info.RowCount); err != nil {
			return nil, err
		}
		tables = append(tables, info)
	}
	return tables, nil
}

func loadPostgresSchema(ctx context.Context, store *Store) ([]TableInfo, error) {
	rows, err := store.DB().QueryContext(ctx,
		`SELECT table_name, column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = 'public'
		 ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*TableInfo)
	var order []string
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, err
		}
		info, ok := byName[table]
		if !ok {
			info = &TableInfo{Name: table, Kind: classifyTable(table)}
			byName[table] = info
			order = append(order, table)
		}
		info.Columns = append(info.Columns, ColumnInfo{
			Name:     column,
			Type:     dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Planner estimates are close enough for the large-table heuristic and
	// avoid counting a multi-million row fact table on every refresh.
	estRows, err := store.DB().QueryContext(ctx,
		`SELECT relname, GREATEST(reltuples::bigint, 0)
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = 'public' AND c.relkind = 'r'`)
	if err != nil {
		return nil, err
	}
	defer estRows.Close()
	for estRows.Next() {
		var (
			name  string
			count int64
		)
		if err := estRows.Scan(&name, &count); err != nil {
			return nil, err
		}
		if info, ok := byName[name]; ok {
			info.RowCount = count
		}
	}
	if err := estRows.Err(); err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byName[name])
	}
	return tables, nil
}
