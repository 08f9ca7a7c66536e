/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"

	"landuse-agent/internal/analytics"
	"landuse-agent/internal/database"
	"landuse-agent/internal/sqlcheck"
)

type explorerQueryRequest struct {
	SQL string `json:"sql"`
}

type explorerQueryResponse struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	ElapsedMs int64           `json:"elapsed_ms"`
	RiskFlags []string        `json:"risk_flags,omitempty"`
	Statement string          `json:"statement"`
}

// runExplorerSQL pushes hand-written SQL through the same gate the agent's
// queries pass. It writes the error response itself and returns nil on
// failure.
func (s *Server) runExplorerSQL(w http.ResponseWriter, r *http.Request, sqlText string) (*database.QueryResult, sqlcheck.Verdict) {
	verdict := sqlcheck.Validate(sqlText, s.catalog.Snapshot().TableRows(), s.gate.Load())
	if !verdict.Accepted {
		writeError(w, http.StatusBadRequest, "query rejected", verdict.Violations...)
		return nil, verdict
	}

	result, err := s.executor.Execute(r.Context(), verdict)
	if err != nil {
		var execErr *database.ExecError
		if errors.As(err, &execErr) {
			status := http.StatusBadRequest
			if execErr.Kind == database.ErrKindTimeout {
				status = http.StatusGatewayTimeout
			}
			writeError(w, status, execErr.Message)
			return nil, verdict
		}
		writeError(w, http.StatusInternalServerError, "query execution failed")
		return nil, verdict
	}
	return result, verdict
}

// handleExplorerQuery executes one validated SELECT and returns the shaped
// result.
func (s *Server) handleExplorerQuery(w http.ResponseWriter, r *http.Request) {
	var req explorerQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}

	result, verdict := s.runExplorerSQL(w, r, req.SQL)
	if result == nil {
		return
	}
	writeJSON(w, http.StatusOK, explorerQueryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		ElapsedMs: result.ElapsedMs,
		RiskFlags: verdict.RiskFlags,
		Statement: verdict.Normalized,
	})
}

type explorerExportRequest struct {
	SQL    string `json:"sql"`
	Table  string `json:"table"`
	Format string `json:"format"` // "csv" or "json"
}

// handleExplorerExport runs a validated SELECT, or a whole-table dump when
// only a table name is given, and returns the result as a downloadable csv
// or json file.
func (s *Server) handleExplorerExport(w http.ResponseWriter, r *http.Request) {
	var req explorerExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SQL == "" && req.Table != "" {
		// Table names still pass through the validator, so an unknown or
		// malicious name is rejected the same way hand-written SQL is.
		req.SQL = "SELECT * FROM " + req.Table
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql or table is required")
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if req.Format != "csv" && req.Format != "json" {
		writeError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	result, _ := s.runExplorerSQL(w, r, req.SQL)
	if result == nil {
		return
	}

	if req.Format == "json" {
		w.Header().Set("Content-Disposition", `attachment; filename="landuse_export.json"`)
		writeJSON(w, http.StatusOK, result)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="landuse_export.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, v := range row {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprintf("%v", v)
		}
		if err := cw.Write(record); err != nil {
			return
		}
	}
	cw.Flush()
}

// handleExplorerSchema serves the cached schema snapshot.
func (s *Server) handleExplorerSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Snapshot())
}

// handleExplorerTemplates lists the curated query templates.
func (s *Server) handleExplorerTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": analytics.Templates(),
	})
}

// handleExplorerStats summarizes the warehouse for the explorer landing
// page.
func (s *Server) handleExplorerStats(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	var totalRows int64
	kinds := map[string]int{}
	for _, table := range snap.Tables {
		totalRows += table.RowCount
		kinds[table.Kind]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dialect":     s.dialect,
		"table_count": len(snap.Tables),
		"total_rows":  totalRows,
		"dimensions":  kinds["dimension"],
		"facts":       kinds["fact"],
		"loaded_at":   snap.LoadedAt,
	})
}
