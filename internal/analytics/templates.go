/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package analytics holds the curated query surface of the land use
// warehouse: ready-to-run explorer templates and the prebuilt reports behind
// the dashboard endpoints.
package analytics

// Template is a curated, ready-to-run SQL example shown in the explorer and
// served by the get_template tool.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Query       string `json:"query"`
}

var templates = []Template{
	{
		ID:          "basic_select",
		Name:        "Basic Select",
		Category:    "Basic",
		Description: "Simple query to view land use transitions",
		Query:       "SELECT * FROM fact_landuse_transitions LIMIT 10",
	},
	{
		ID:          "forest_loss",
		Name:        "Forest Loss by State",
		Category:    "Forest",
		Description: "Analyze forest loss by state",
		Query: `SELECT
    g.state_name,
    SUM(f.acres) AS total_forest_loss
FROM fact_landuse_transitions f
JOIN dim_geography g ON f.geography_id = g.geography_id
JOIN dim_landuse l_from ON f.from_landuse_id = l_from.landuse_id
WHERE l_from.landuse_name = 'Forest'
  AND f.transition_type = 'change'
GROUP BY g.state_name
ORDER BY total_forest_loss DESC
LIMIT 10`,
	},
	{
		ID:          "scenario_comparison",
		Name:        "Scenario Comparison",
		Category:    "Climate",
		Description: "Compare urbanization across scenarios",
		Query: `SELECT
    s.scenario_name,
    SUM(f.acres) AS urban_growth
FROM fact_landuse_transitions f
JOIN dim_scenario s ON f.scenario_id = s.scenario_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE l_to.landuse_name = 'Urban'
  AND f.transition_type = 'change'
GROUP BY s.scenario_name
ORDER BY urban_growth DESC`,
	},
	{
		ID:          "county_urbanization",
		Name:        "Top Urbanizing Counties",
		Category:    "Geographic",
		Description: "Find counties with most urban growth",
		Query: `SELECT
    g.county_name,
    g.state_name,
    SUM(f.acres) AS urban_growth
FROM fact_landuse_transitions f
JOIN dim_geography g ON f.geography_id = g.geography_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE l_to.landuse_name = 'Urban'
  AND f.transition_type = 'change'
GROUP BY g.county_name, g.state_name
ORDER BY urban_growth DESC
LIMIT 20`,
	},
	{
		ID:          "time_trends",
		Name:        "Land Use Over Time",
		Category:    "Temporal",
		Description: "See how land use changes over time",
		Query: `SELECT
    t.year_range,
    l_to.landuse_name AS to_landuse,
    SUM(f.acres) AS total_acres
FROM fact_landuse_transitions f
JOIN dim_time t ON f.time_id = t.time_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE f.transition_type = 'change'
GROUP BY t.year_range, l_to.landuse_name
ORDER BY t.year_range, total_acres DESC`,
	},
}

// Templates returns all curated templates in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateByID looks a template up by its identifier.
func TemplateByID(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
