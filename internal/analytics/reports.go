/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package analytics

import (
	"context"
	"fmt"

	"landuse-agent/internal/database"
)

// Service runs the prebuilt dashboard reports against the store. Report SQL
// is application-authored and parameterized, so it takes the trusted
// execution path.
type Service struct {
	exec *database.Executor
}

// NewService wraps the executor for report use.
func NewService(exec *database.Executor) *Service {
	return &Service{exec: exec}
}

// ForestFilter narrows the forest transitions report.
type ForestFilter struct {
	State    string
	Scenario string
}

// Overview returns the headline counts for the dashboard.
func (s *Service) Overview(ctx context.Context) (*database.QueryResult, error) {
	return s.exec.ExecuteTrusted(ctx, `SELECT
    (SELECT COUNT(DISTINCT geography_id) FROM dim_geography) AS total_counties,
    (SELECT COUNT(*) FROM fact_landuse_transitions) AS total_transitions,
    (SELECT COUNT(*) FROM dim_scenario) AS scenarios,
    (SELECT COUNT(*) FROM dim_time) AS time_periods,
    (SELECT COUNT(*) FROM dim_landuse) AS land_use_types`)
}

// ForestTransitions reports where converted forest land goes, by state.
func (s *Service) ForestTransitions(ctx context.Context, filter ForestFilter) (*database.QueryResult, error) {
	query := `SELECT
    g.state_name,
    l_to.landuse_name AS to_landuse,
    SUM(CAST(f.acres AS REAL)) AS total_acres
FROM fact_landuse_transitions f
JOIN dim_geography g ON f.geography_id = g.geography_id
JOIN dim_landuse l_from ON f.from_landuse_id = l_from.landuse_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
JOIN dim_scenario s ON f.scenario_id = s.scenario_id
WHERE l_from.landuse_name = 'Forest'
  AND l_from.landuse_id != l_to.landuse_id`
	var args []interface{}
	if filter.State != "" {
		query += fmt.Sprintf(" AND g.state_name = %s", s.placeholder(len(args)+1))
		args = append(args, filter.State)
	}
	if filter.Scenario != "" {
		query += fmt.Sprintf(" AND s.scenario_name = %s", s.placeholder(len(args)+1))
		args = append(args, filter.Scenario)
	}
	query += `
GROUP BY g.state_name, l_to.landuse_name
ORDER BY total_acres DESC
LIMIT 100`
	return s.exec.ExecuteTrusted(ctx, query, args...)
}

// AgriculturalImpact reports crop and pasture losses by state.
func (s *Service) AgriculturalImpact(ctx context.Context) (*database.QueryResult, error) {
	return s.exec.ExecuteTrusted(ctx, `SELECT
    g.state_name,
    l_from.landuse_name AS from_landuse,
    SUM(CAST(f.acres AS REAL)) AS loss_acres
FROM fact_landuse_transitions f
JOIN dim_geography g ON f.geography_id = g.geography_id
JOIN dim_landuse l_from ON f.from_landuse_id = l_from.landuse_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE l_from.landuse_name IN ('Crop', 'Pasture')
  AND l_from.landuse_id != l_to.landuse_id
GROUP BY g.state_name, l_from.landuse_name
ORDER BY loss_acres DESC
LIMIT 100`)
}

// UrbanizationSources reports which land use types feed new urban land.
func (s *Service) UrbanizationSources(ctx context.Context) (*database.QueryResult, error) {
	return s.exec.ExecuteTrusted(ctx, `SELECT
    l_from.landuse_name AS source,
    SUM(CAST(f.acres AS REAL)) AS total_acres,
    ROUND(100.0 * SUM(CAST(f.acres AS REAL)) / SUM(SUM(CAST(f.acres AS REAL))) OVER (), 1) AS percentage
FROM fact_landuse_transitions f
JOIN dim_landuse l_from ON f.from_landuse_id = l_from.landuse_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE l_to.landuse_name = 'Urban'
  AND l_from.landuse_id != l_to.landuse_id
GROUP BY l_from.landuse_name
ORDER BY total_acres DESC`)
}

// ScenarioComparison compares urban growth and forest loss per scenario.
func (s *Service) ScenarioComparison(ctx context.Context) (*database.QueryResult, error) {
	return s.exec.ExecuteTrusted(ctx, `SELECT
    s.scenario_name,
    s.rcp_scenario AS rcp,
    s.ssp_scenario AS ssp,
    SUM(CASE WHEN l_to.landuse_name = 'Urban' THEN CAST(f.acres AS REAL) ELSE 0 END) AS urban_growth,
    SUM(CASE WHEN l_from.landuse_name = 'Forest' AND l_from.landuse_id != l_to.landuse_id
        THEN CAST(f.acres AS REAL) ELSE 0 END) AS forest_loss
FROM fact_landuse_transitions f
JOIN dim_scenario s ON f.scenario_id = s.scenario_id
JOIN dim_landuse l_from ON f.from_landuse_id = l_from.landuse_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
GROUP BY s.scenario_name, s.rcp_scenario, s.ssp_scenario
ORDER BY urban_growth DESC`)
}

// CountyUrbanization reports urban growth per county for one state, shaped
// for choropleth maps.
func (s *Service) CountyUrbanization(ctx context.Context, state string) (*database.QueryResult, error) {
	return s.exec.ExecuteTrusted(ctx, `SELECT
    g.fips_code AS fips,
    g.county_name AS name,
    SUM(CASE WHEN l_to.landuse_name = 'Urban' THEN CAST(f.acres AS REAL) ELSE 0 END) AS urban_growth
FROM fact_landuse_transitions f
JOIN dim_geography g ON f.geography_id = g.geography_id
JOIN dim_landuse l_to ON f.to_landuse_id = l_to.landuse_id
WHERE g.state_name = `+s.placeholder(1)+`
GROUP BY g.fips_code, g.county_name
ORDER BY urban_growth DESC
LIMIT 100`, state)
}

// placeholder renders the dialect's bind marker for the nth parameter.
func (s *Service) placeholder(n int) string {
	if s.exec.Dialect() == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
