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

	"landuse-agent/internal/analytics"
)

// GetTemplateTool creates the get_template tool serving the curated query
// templates. The model can start from a known-good query instead of writing
// joins from scratch.
func GetTemplateTool() Tool {
	return Tool{
		Definition: Spec{
			Name: "get_template",
			Description: "Fetch a curated SQL query template for a common land use analysis: forest loss, " +
				"scenario comparison, county urbanization, time trends. Call without an id to list all " +
				"templates with their descriptions.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Template identifier, e.g. 'forest_loss'. Omit to list all templates.",
					},
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			if id := ValidateOptionalStringParam(args, "id", ""); id != "" {
				tmpl, ok := analytics.TemplateByID(id)
				if !ok {
					return NewError("Unknown template: " + id), nil
				}
				return NewJSON(tmpl)
			}
			return NewJSON(struct {
				Templates []analytics.Template `json:"templates"`
			}{Templates: analytics.Templates()})
		},
	}
}
