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
	"net/http"

	"landuse-agent/internal/analytics"
	"landuse-agent/internal/database"
	"landuse-agent/internal/logging"
)

// analyticsResponse pairs report rows with a small computed summary, the
// shape the dashboard charts consume.
type analyticsResponse struct {
	Data    []map[string]interface{} `json:"data"`
	Summary map[string]interface{}   `json:"summary"`
}

// asRecords reshapes a column-ordered result into one map per row.
func asRecords(result *database.QueryResult) []map[string]interface{} {
	records := make([]map[string]interface{}, 0, len(result.Rows))
	for _, row := range result.Rows {
		record := make(map[string]interface{}, len(result.Columns))
		for i, col := range result.Columns {
			record[col] = row[i]
		}
		records = append(records, record)
	}
	return records
}

func sumField(records []map[string]interface{}, field string) float64 {
	var total float64
	for _, record := range records {
		switch v := record[field].(type) {
		case float64:
			total += v
		case int64:
			total += float64(v)
		}
	}
	return total
}

func (s *Server) reportError(w http.ResponseWriter, name string, err error) {
	logging.Error("report failed", "report", name, "error", err.Error())
	writeError(w, http.StatusInternalServerError, "failed to compute "+name)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	result, err := s.reports.Overview(r.Context())
	if err != nil {
		s.reportError(w, "overview", err)
		return
	}
	records := asRecords(result)
	if len(records) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_counties": 0, "total_transitions": 0,
			"scenarios": 0, "time_periods": 0, "land_use_types": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, records[0])
}

func (s *Server) handleForestTransitions(w http.ResponseWriter, r *http.Request) {
	filter := analytics.ForestFilter{
		State:    r.URL.Query().Get("state"),
		Scenario: r.URL.Query().Get("scenario"),
	}
	result, err := s.reports.ForestTransitions(r.Context(), filter)
	if err != nil {
		s.reportError(w, "forest transitions", err)
		return
	}
	records := asRecords(result)
	primary := "Unknown"
	if len(records) > 0 {
		if name, ok := records[0]["to_landuse"].(string); ok {
			primary = name
		}
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Data: records,
		Summary: map[string]interface{}{
			"total_forest_loss":   sumField(records, "total_acres"),
			"primary_destination": primary,
		},
	})
}

func (s *Server) handleAgriculturalImpact(w http.ResponseWriter, r *http.Request) {
	result, err := s.reports.AgriculturalImpact(r.Context())
	if err != nil {
		s.reportError(w, "agricultural impact", err)
		return
	}
	records := asRecords(result)
	writeJSON(w, http.StatusOK, analyticsResponse{
		Data: records,
		Summary: map[string]interface{}{
			"total_agricultural_loss": sumField(records, "loss_acres"),
		},
	})
}

func (s *Server) handleUrbanizationSources(w http.ResponseWriter, r *http.Request) {
	result, err := s.reports.UrbanizationSources(r.Context())
	if err != nil {
		s.reportError(w, "urbanization sources", err)
		return
	}
	records := asRecords(result)
	writeJSON(w, http.StatusOK, analyticsResponse{
		Data: records,
		Summary: map[string]interface{}{
			"total_urbanization": sumField(records, "total_acres"),
		},
	})
}

func (s *Server) handleScenarioComparison(w http.ResponseWriter, r *http.Request) {
	result, err := s.reports.ScenarioComparison(r.Context())
	if err != nil {
		s.reportError(w, "scenario comparison", err)
		return
	}
	records := asRecords(result)
	writeJSON(w, http.StatusOK, analyticsResponse{
		Data: records,
		Summary: map[string]interface{}{
			"scenarios_analyzed": len(records),
		},
	})
}

func (s *Server) handleGeographic(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	result, err := s.reports.CountyUrbanization(r.Context(), state)
	if err != nil {
		s.reportError(w, "geographic data", err)
		return
	}
	records := asRecords(result)
	average := 0.0
	if len(records) > 0 {
		average = sumField(records, "urban_growth") / float64(len(records))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    state,
		"counties": records,
		"summary": map[string]interface{}{
			"average_urban_growth": average,
			"county_count":         len(records),
		},
	})
}
