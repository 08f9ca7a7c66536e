/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"errors"
	"strings"

	"landuse-agent/internal/database"
	"landuse-agent/internal/sqlcheck"
)

// RunSQLTool creates the run_sql tool. Every statement is validated against
// the current schema snapshot before it reaches the executor; a rejection
// comes back as a tool error listing the violations so the model can repair
// its query.
func RunSQLTool(catalog *database.Catalog, exec *database.Executor, opts *sqlcheck.SharedOptions) Tool {
	return Tool{
		Definition: Spec{
			Name: "run_sql",
			Description: "Execute a read-only SQL SELECT statement against the land use transitions database. " +
				"Only single SELECT statements are allowed; DDL, DML and multi-statement input are rejected. " +
				"Results are capped, and a LIMIT is added automatically when a large table is scanned without one. " +
				"Use list_schema first to see the available tables and columns.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SELECT statement to execute.",
					},
					"max_rows": map[string]interface{}{
						"type":        "number",
						"description": "Optional cap on returned rows, below the server-side limit. Use a small value when only a sample is needed.",
					},
				},
				Required: []string{"sql"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			sqlText, errResp := ValidateStringParam(args, "sql")
			if errResp != nil {
				return *errResp, nil
			}
			maxRows := int(ValidateOptionalNumberParam(args, "max_rows", 0))

			snap := catalog.Snapshot()
			verdict := sqlcheck.Validate(sqlText, snap.TableRows(), opts.Load())
			if !verdict.Accepted {
				return NewError("Query rejected: " + strings.Join(verdict.Violations, "; ")), nil
			}

			result, err := exec.Execute(ctx, verdict)
			if err != nil {
				var execErr *database.ExecError
				if errors.As(err, &execErr) {
					return NewError(execErr.Message), nil
				}
				return Response{}, err
			}

			// The server-side cap already bounded the fetch; a tool-level
			// max_rows only tightens the slice handed to the model.
			if maxRows > 0 && result.RowCount > maxRows {
				result.Rows = result.Rows[:maxRows]
				result.RowCount = maxRows
				result.Truncated = true
			}

			return NewJSON(runSQLResult{
				Columns:   result.Columns,
				Rows:      result.Rows,
				RowCount:  result.RowCount,
				Truncated: result.Truncated,
				ElapsedMs: result.ElapsedMs,
				RiskFlags: verdict.RiskFlags,
				Statement: verdict.Normalized,
			})
		},
	}
}

type runSQLResult struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	ElapsedMs int64           `json:"elapsed_ms"`
	RiskFlags []string        `json:"risk_flags,omitempty"`
	Statement string          `json:"statement"`
}
