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
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"landuse-agent/internal/config"
	"landuse-agent/internal/sqlcheck"
)

// openTestStore creates a file-backed sqlite store seeded with a miniature
// star schema.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landuse.db")
	store, err := Open(context.Background(), config.DatabaseConfig{
		Path:         path,
		PoolMaxConns: 2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	stmts := []string{
		`CREATE TABLE dim_scenario (
			scenario_id INTEGER PRIMARY KEY,
			scenario_name TEXT NOT NULL,
			climate_model TEXT,
			rcp_scenario TEXT,
			ssp_scenario TEXT
		)`,
		`CREATE TABLE dim_landuse (
			landuse_id INTEGER PRIMARY KEY,
			landuse_name TEXT NOT NULL,
			landuse_category TEXT
		)`,
		`CREATE TABLE fact_landuse_transitions (
			transition_id INTEGER PRIMARY KEY,
			scenario_id INTEGER NOT NULL,
			from_landuse_id INTEGER NOT NULL,
			to_landuse_id INTEGER NOT NULL,
			acres REAL NOT NULL
		)`,
		`INSERT INTO dim_scenario VALUES
			(1, 'CNRM_CM5_rcp45_ssp1', 'CNRM_CM5', 'rcp45', 'ssp1'),
			(2, 'CNRM_CM5_rcp85_ssp5', 'CNRM_CM5', 'rcp85', 'ssp5')`,
		`INSERT INTO dim_landuse VALUES
			(1, 'Forest', 'Natural'),
			(2, 'Urban', 'Developed'),
			(3, 'Crop', 'Agriculture')`,
	}
	for _, stmt := range stmts {
		if _, err := store.DB().ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	for i := 1; i <= 50; i++ {
		if _, err := store.DB().ExecContext(context.Background(),
			`INSERT INTO fact_landuse_transitions VALUES (?, ?, ?, ?, ?)`,
			i, 1+i%2, 1, 2, float64(i)*10.5); err != nil {
			t.Fatalf("seed fact: %v", err)
		}
	}
	return store
}

func acceptedVerdict(t *testing.T, store *Store, sql string) sqlcheck.Verdict {
	t.Helper()
	catalog, err := NewCatalog(context.Background(), store)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	v := sqlcheck.Validate(sql, catalog.Snapshot().TableRows(), sqlcheck.Options{})
	if !v.Accepted {
		t.Fatalf("Validate(%q) rejected: %v", sql, v.Violations)
	}
	return v
}

func TestCatalogSnapshot(t *testing.T) {
	store := openTestStore(t)
	catalog, err := NewCatalog(context.Background(), store)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	snap := catalog.Snapshot()

	if len(snap.Tables) != 3 {
		t.Fatalf("got %d tables, want 3", len(snap.Tables))
	}

	fact, ok := snap.Table("fact_landuse_transitions")
	if !ok {
		t.Fatal("fact table missing from snapshot")
	}
	if fact.Kind != "fact" {
		t.Errorf("fact table Kind = %q, want %q", fact.Kind, "fact")
	}
	if fact.RowCount != 50 {
		t.Errorf("fact RowCount = %d, want 50", fact.RowCount)
	}
	if len(fact.Columns) != 5 {
		t.Errorf("fact has %d columns, want 5", len(fact.Columns))
	}

	dim, _ := snap.Table("dim_scenario")
	if dim.Kind != "dimension" {
		t.Errorf("dim_scenario Kind = %q, want %q", dim.Kind, "dimension")
	}

	rows := snap.TableRows()
	if rows["dim_landuse"] != 3 {
		t.Errorf("TableRows[dim_landuse] = %d, want 3", rows["dim_landuse"])
	}
}

func TestExecuteReturnsRows(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 1000)

	v := acceptedVerdict(t, store, "SELECT scenario_name FROM dim_scenario ORDER BY scenario_id")
	result, err := exec.Execute(context.Background(), v)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
	if result.Truncated {
		t.Error("Truncated = true for a small result")
	}
	if len(result.Columns) != 1 || result.Columns[0] != "scenario_name" {
		t.Errorf("Columns = %v", result.Columns)
	}
	if name, ok := result.Rows[0][0].(string); !ok || name != "CNRM_CM5_rcp45_ssp1" {
		t.Errorf("Rows[0][0] = %v", result.Rows[0][0])
	}
}

func TestExecuteRowCap(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 10)

	v := acceptedVerdict(t, store, "SELECT * FROM fact_landuse_transitions")
	result, err := exec.Execute(context.Background(), v)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 10 {
		t.Errorf("RowCount = %d, want 10", result.RowCount)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestExecutorSetLimits(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 1000)
	v := acceptedVerdict(t, store, "SELECT * FROM fact_landuse_transitions")

	result, err := exec.Execute(context.Background(), v)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 50 || result.Truncated {
		t.Fatalf("RowCount = %d, Truncated = %v, want all 50 rows", result.RowCount, result.Truncated)
	}

	exec.SetLimits(5*time.Second, 10)
	if got := exec.MaxRows(); got != 10 {
		t.Errorf("MaxRows = %d, want 10", got)
	}
	result, err = exec.Execute(context.Background(), v)
	if err != nil {
		t.Fatalf("Execute with new limits: %v", err)
	}
	if result.RowCount != 10 || !result.Truncated {
		t.Errorf("RowCount = %d, Truncated = %v, want 10 rows truncated", result.RowCount, result.Truncated)
	}
}

func TestExecuteExactCapNotTruncated(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 50)

	v := acceptedVerdict(t, store, "SELECT * FROM fact_landuse_transitions")
	result, err := exec.Execute(context.Background(), v)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 50 {
		t.Errorf("RowCount = %d, want 50", result.RowCount)
	}
	if result.Truncated {
		t.Error("Truncated = true for an exactly-full result")
	}
}

func TestExecuteRefusesRejectedVerdict(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 1000)

	_, err := exec.Execute(context.Background(), sqlcheck.Verdict{
		Violations: []string{"forbidden keyword \"drop\""},
	})
	if !errors.Is(err, ErrVerdictNotAccepted) {
		t.Fatalf("err = %v, want ErrVerdictNotAccepted", err)
	}

	// Even a hand-built "accepted" verdict with no normalized text is refused.
	_, err = exec.Execute(context.Background(), sqlcheck.Verdict{Accepted: true})
	if !errors.Is(err, ErrVerdictNotAccepted) {
		t.Fatalf("err = %v, want ErrVerdictNotAccepted", err)
	}
}

func TestExecuteDriverErrorSanitized(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 5*time.Second, 1000)

	// The validator cannot know about missing columns; the driver reports it.
	v := acceptedVerdict(t, store, "SELECT no_such_column FROM dim_scenario")
	_, err := exec.Execute(context.Background(), v)
	if err == nil {
		t.Fatal("Execute succeeded on a missing column")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %T, want *ExecError", err)
	}
	if execErr.Kind != ErrKindDriver {
		t.Errorf("Kind = %q, want %q", execErr.Kind, ErrKindDriver)
	}
	if strings.Contains(execErr.Message, "\n") {
		t.Errorf("Message spans multiple lines: %q", execErr.Message)
	}
}

func TestExecuteTimeout(t *testing.T) {
	store := openTestStore(t)
	exec := NewExecutor(store, 1*time.Nanosecond, 1000)

	v := acceptedVerdict(t, store, "SELECT * FROM fact_landuse_transitions")
	_, err := exec.Execute(context.Background(), v)
	if err == nil {
		t.Fatal("Execute succeeded despite an expired deadline")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %T, want *ExecError", err)
	}
	if execErr.Kind != ErrKindTimeout {
		t.Errorf("Kind = %q, want %q", execErr.Kind, ErrKindTimeout)
	}
}

func TestCatalogRefresh(t *testing.T) {
	store := openTestStore(t)
	catalog, err := NewCatalog(context.Background(), store)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	if _, err := store.DB().ExecContext(context.Background(),
		`CREATE TABLE dim_time (time_id INTEGER PRIMARY KEY, year_range TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := catalog.Snapshot().Table("dim_time"); ok {
		t.Fatal("snapshot picked up a new table without a refresh")
	}

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := catalog.Snapshot().Table("dim_time"); !ok {
		t.Fatal("refreshed snapshot is missing the new table")
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"land.db", "land.db"},
		{"postgres://alice:s3cret@db:5432/landuse", "postgres://alice@db:5432/landuse"},
		{"postgres://db:5432/landuse", "postgres://db:5432/landuse"},
	}
	for _, tt := range tests {
		if got := redactDSN(tt.in); got != tt.want {
			t.Errorf("redactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("land.db", false); !strings.HasPrefix(got, "file:land.db?") {
		t.Errorf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN("land.db", true); !strings.Contains(got, "mode=ro") {
		t.Errorf("read-only DSN missing mode=ro: %q", got)
	}
}
