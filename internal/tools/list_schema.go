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

	"landuse-agent/internal/database"
)

// ListSchemaTool creates the list_schema tool. It serves the cached snapshot
// so the model and the validator always agree on what the schema looks like.
func ListSchemaTool(catalog *database.Catalog) Tool {
	return Tool{
		Definition: Spec{
			Name: "list_schema",
			Description: "List the tables of the land use transitions database with their columns, types and " +
				"row counts. Tables follow a star schema: dim_* tables are dimensions (scenarios, geography, " +
				"land use types, time periods) and fact_* tables hold the transition measurements. " +
				"Pass a table name to get just that table.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"table": map[string]interface{}{
						"type":        "string",
						"description": "Optional table name to describe. Omit to list every table.",
					},
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			snap := catalog.Snapshot()

			if name := ValidateOptionalStringParam(args, "table", ""); name != "" {
				table, ok := snap.Table(name)
				if !ok {
					return NewError("Unknown table: " + name), nil
				}
				return NewJSON(table)
			}

			return NewJSON(struct {
				Tables   []database.TableInfo `json:"tables"`
				LoadedAt string               `json:"loaded_at"`
			}{
				Tables:   snap.Tables,
				LoadedAt: snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		},
	}
}
