/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sqlcheck

import (
	"strings"
	"testing"
)

var testSchema = map[string]int64{
	"fact_landuse_transitions": 5_400_000,
	"dim_scenario":             20,
	"dim_geography":            3_075,
	"dim_landuse":              5,
	"dim_time":                 6,
}

var testOpts = Options{
	LargeTableRowThreshold: 100_000,
	InjectLimit:            1000,
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"simple select", "SELECT * FROM dim_scenario"},
		{"lowercase", "select scenario_name from dim_scenario"},
		{"trailing semicolon", "SELECT * FROM dim_scenario;"},
		{"join", "SELECT s.scenario_name, t.year_range FROM dim_scenario s JOIN dim_time t ON 1=1"},
		{"comma join", "SELECT * FROM dim_scenario, dim_time LIMIT 10"},
		{"with cte", "WITH recent AS (SELECT * FROM dim_time) SELECT * FROM recent"},
		{"subquery", "SELECT * FROM (SELECT scenario_id FROM dim_scenario) sub"},
		{"literal with keyword", "SELECT * FROM dim_scenario WHERE scenario_name = 'drop table'"},
		{"literal with semicolon", "SELECT * FROM dim_scenario WHERE scenario_name = 'a;b'"},
		{"line comment", "SELECT * FROM dim_scenario -- just looking\n"},
		{"block comment", "SELECT /* all */ * FROM dim_scenario"},
		{"quoted identifier", `SELECT * FROM "dim_scenario"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.sql, testSchema, testOpts)
			if !v.Accepted {
				t.Fatalf("Validate(%q) rejected: %v", tt.sql, v.Violations)
			}
			if v.Normalized == "" {
				t.Error("accepted verdict has empty normalized statement")
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason string
	}{
		{"empty", "", "empty statement"},
		{"whitespace only", "   \n\t", "empty statement"},
		{"insert", "INSERT INTO dim_scenario VALUES (1)", "forbidden keyword"},
		{"update", "UPDATE dim_scenario SET scenario_name = 'x'", "forbidden keyword"},
		{"delete", "DELETE FROM dim_scenario", "forbidden keyword"},
		{"drop", "DROP TABLE dim_scenario", "forbidden keyword"},
		{"mixed case drop", "DrOp TaBlE dim_scenario", "forbidden keyword"},
		{"pragma", "PRAGMA table_info(dim_scenario)", "forbidden keyword"},
		{"attach", "ATTACH DATABASE 'x.db' AS other", "forbidden keyword"},
		{"vacuum", "VACUUM", "forbidden keyword"},
		{"multi statement", "SELECT 1; DROP TABLE dim_scenario;", "multiple statements"},
		{"multi select", "SELECT 1; SELECT 2", "multiple statements"},
		{"comment split keyword", "SELECT * FROM dim_scenario WHERE 1=1; DR/**/OP TABLE dim_scenario", "multiple statements"},
		{"comment joined keyword", "DR/**/OP TABLE dim_scenario", "forbidden keyword"},
		{"not a select", "EXPLAIN SELECT * FROM dim_scenario", "only SELECT"},
		{"show", "SHOW TABLES", "only SELECT"},
		{"unknown table", "SELECT * FROM secrets", `unknown table "secrets"`},
		{"system catalog", "SELECT * FROM information_schema.tables", "unknown table"},
		{"unknown join target", "SELECT * FROM dim_scenario JOIN secrets ON 1=1", `unknown table "secrets"`},
		{"unterminated string", "SELECT * FROM dim_scenario WHERE x = 'oops", "unterminated"},
		{"unterminated comment", "SELECT * FROM dim_scenario /* oops", "unterminated"},
		{"window clause named after catalog table", "SELECT * FROM sqlite_master, dim_time WINDOW sqlite_master AS (ORDER BY 1)", `unknown table "sqlite_master"`},
		{"window clause named after unknown table", "SELECT * FROM secrets WINDOW secrets AS (PARTITION BY 1)", `unknown table "secrets"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.sql, testSchema, testOpts)
			if v.Accepted {
				t.Fatalf("Validate(%q) accepted, want rejection", tt.sql)
			}
			if v.Normalized != "" {
				t.Error("rejected verdict carries a normalized statement")
			}
			if len(v.Violations) == 0 {
				t.Fatal("rejected verdict has no violations")
			}
			if !strings.Contains(v.Violations[0], tt.reason) {
				t.Errorf("violation = %q, want substring %q", v.Violations[0], tt.reason)
			}
		})
	}
}

func TestLimitInjection(t *testing.T) {
	sql := "SELECT * FROM fact_landuse_transitions"
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	if want := sql + " LIMIT 1000"; v.Normalized != want {
		t.Errorf("Normalized = %q, want %q", v.Normalized, want)
	}
	if len(v.RiskFlags) != 1 || v.RiskFlags[0] != "limit_injected" {
		t.Errorf("RiskFlags = %v, want [limit_injected]", v.RiskFlags)
	}
}

func TestLimitInjectionIdempotent(t *testing.T) {
	first := Validate("SELECT * FROM fact_landuse_transitions", testSchema, testOpts)
	second := Validate(first.Normalized, testSchema, testOpts)
	if !second.Accepted {
		t.Fatalf("re-validation rejected: %v", second.Violations)
	}
	if second.Normalized != first.Normalized {
		t.Errorf("re-validation changed statement: %q -> %q", first.Normalized, second.Normalized)
	}
}

func TestUserLimitNotOverridden(t *testing.T) {
	sql := "SELECT * FROM fact_landuse_transitions LIMIT 5"
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	if v.Normalized != sql {
		t.Errorf("Normalized = %q, want statement untouched", v.Normalized)
	}
	if len(v.RiskFlags) != 0 {
		t.Errorf("RiskFlags = %v, want none", v.RiskFlags)
	}
}

func TestSmallTableNoInjection(t *testing.T) {
	v := Validate("SELECT * FROM dim_scenario", testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	if strings.Contains(v.Normalized, "LIMIT") {
		t.Errorf("limit injected for a small table: %q", v.Normalized)
	}
	if len(v.RiskFlags) != 1 || v.RiskFlags[0] != "unbounded_scan" {
		t.Errorf("RiskFlags = %v, want [unbounded_scan]", v.RiskFlags)
	}
}

func TestReferencedTables(t *testing.T) {
	sql := `SELECT f.acres, g.county_name
	        FROM fact_landuse_transitions f
	        JOIN dim_geography g ON f.geography_id = g.geography_id
	        JOIN dim_time t ON f.time_id = t.time_id
	        LIMIT 100`
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	want := []string{"dim_geography", "dim_time", "fact_landuse_transitions"}
	if len(v.Tables) != len(want) {
		t.Fatalf("Tables = %v, want %v", v.Tables, want)
	}
	for i := range want {
		if v.Tables[i] != want[i] {
			t.Errorf("Tables[%d] = %q, want %q", i, v.Tables[i], want[i])
		}
	}
}

func TestCTENamesNotUnknown(t *testing.T) {
	sql := `WITH forest AS (
	          SELECT * FROM dim_landuse WHERE landuse_name = 'Forest'
	        ), joined AS (
	          SELECT * FROM forest
	        )
	        SELECT * FROM joined LIMIT 10`
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	for _, name := range v.Tables {
		if name == "forest" || name == "joined" {
			t.Errorf("CTE %q reported as a referenced table", name)
		}
	}
}

func TestCTEPrologueShapes(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"recursive", "WITH RECURSIVE seq AS (SELECT 1) SELECT * FROM seq"},
		{"column list", "WITH pair(a, b) AS (SELECT 1, 2) SELECT * FROM pair"},
		{"materialized hint", "WITH snap AS MATERIALIZED (SELECT * FROM dim_time) SELECT * FROM snap"},
		{"not materialized hint", "WITH snap AS NOT MATERIALIZED (SELECT * FROM dim_time) SELECT * FROM snap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.sql, testSchema, testOpts)
			if !v.Accepted {
				t.Fatalf("Validate(%q) rejected: %v", tt.sql, v.Violations)
			}
		})
	}
}

func TestWindowClauseDoesNotHideLargeTable(t *testing.T) {
	// Naming a window after the fact table must not remove the table from
	// the scan heuristic.
	sql := "SELECT acres FROM fact_landuse_transitions WINDOW fact_landuse_transitions AS (ORDER BY acres)"
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	if len(v.Tables) != 1 || v.Tables[0] != "fact_landuse_transitions" {
		t.Errorf("Tables = %v, want [fact_landuse_transitions]", v.Tables)
	}
	if !strings.HasSuffix(v.Normalized, " LIMIT 1000") {
		t.Errorf("no limit injected: %q", v.Normalized)
	}
}

func TestFetchFirstCountsAsLimit(t *testing.T) {
	sql := "SELECT * FROM fact_landuse_transitions FETCH FIRST 10 ROWS ONLY"
	v := Validate(sql, testSchema, testOpts)
	if !v.Accepted {
		t.Fatalf("rejected: %v", v.Violations)
	}
	if strings.Contains(v.Normalized, "LIMIT") {
		t.Errorf("limit injected despite FETCH FIRST: %q", v.Normalized)
	}
}
