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

import "net/http"

const bibtexCitation = `@misc{rpa_landuse_2020,
  title = {USDA Forest Service 2020 RPA Assessment: Land Use Projections},
  author = {{USDA Forest Service}},
  year = {2020},
  howpublished = {\url{https://www.fs.usda.gov/research/rpa}},
  note = {Accessed via RPA Land Use Analytics. County-level land use transition projections for 2020-2070 across 20 climate scenarios.}
}`

const apaCitation = "USDA Forest Service. (2020). 2020 RPA Assessment: Land Use Projections. " +
	"Retrieved from https://www.fs.usda.gov/research/rpa"

const chicagoCitation = `USDA Forest Service. "2020 RPA Assessment: Land Use Projections." 2020. ` +
	"https://www.fs.usda.gov/research/rpa."

type citationResponse struct {
	Format   string `json:"format"`
	Citation string `json:"citation"`
	APA      string `json:"apa"`
	Chicago  string `json:"chicago"`
}

// handleCitation serves the dataset citation for academic use. BibTeX is the
// primary format, with APA and Chicago alternatives alongside.
func (s *Server) handleCitation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, citationResponse{
		Format:   "bibtex",
		Citation: bibtexCitation,
		APA:      apaCitation,
		Chicago:  chicagoCitation,
	})
}
