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
	"context"
	"net/http"
	"time"
)

// handleHealth reports liveness plus a database ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overall := "healthy"
	dbStatus := "connected"
	status := http.StatusOK
	if _, err := s.reports.Overview(ctx); err != nil {
		overall = "degraded"
		dbStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status":   overall,
		"database": dbStatus,
		"tables":   len(s.catalog.Snapshot().Tables),
	})
}
