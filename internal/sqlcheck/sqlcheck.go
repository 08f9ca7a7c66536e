/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package sqlcheck is the query-safety gate. Every SQL statement, whether
// produced by the reasoning loop or typed by a human in the explorer, must
// pass Validate before it may reach the database. The gate is fail-closed:
// the first violation found rejects the statement.
package sqlcheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Verdict is the outcome of validating one SQL statement.
type Verdict struct {
	Accepted   bool     `json:"accepted"`
	Normalized string   `json:"normalized,omitempty"` // single statement, possibly limit-augmented; empty when rejected
	Violations []string `json:"violations,omitempty"`
	Tables     []string `json:"tables,omitempty"` // referenced table names, sorted
	RiskFlags  []string `json:"risk_flags,omitempty"`
}

// Options holds the tunable validation thresholds.
type Options struct {
	// LargeTableRowThreshold is the estimated row count above which a
	// statement without a row-limiting clause is considered an unbounded
	// scan and gets a limit injected.
	LargeTableRowThreshold int64

	// InjectLimit is the row limit appended to statements that scan a
	// large table without one.
	InjectLimit int
}

// deniedKeywords are mutating, DDL, DCL and administrative keywords that are
// never allowed, matched as whole tokens outside string literals. The
// SELECT-only structural check applies independently of this list.
var deniedKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"alter": true, "create": true, "grant": true, "revoke": true,
	"attach": true, "copy": true, "pragma": true, "call": true,
	"execute": true, "truncate": true, "merge": true, "replace": true,
	"export": true, "import": true, "vacuum": true, "checkpoint": true,
}

// keywords that terminate a FROM clause's table list
var fromTerminators = map[string]bool{
	"where": true, "group": true, "order": true, "having": true,
	"limit": true, "offset": true, "union": true, "intersect": true,
	"except": true, "on": true, "using": true, "window": true,
	"qualify": true,
}

// Validate reviews one candidate SQL statement against the schema snapshot.
// tableRows maps known table names (lowercase) to their estimated row counts;
// membership in the map is what makes a table referencable at all.
func Validate(text string, tableRows map[string]int64, opts Options) Verdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return reject("empty statement")
	}

	// Strip comments twice: once replacing them with a space (the honest
	// reading) and once deleting them outright (the smuggler's reading,
	// where an inline comment splits a keyword in two).
	spaced, ok := stripComments(trimmed, " ")
	if !ok {
		return reject("unterminated comment or string literal")
	}
	joined, _ := stripComments(trimmed, "")

	// Single statement only. A trailing semicolon is tolerated and removed.
	single, ok := singleStatement(spaced)
	if !ok {
		return reject("multiple statements are not allowed")
	}

	// Denylist check on both readings.
	for _, variant := range []string{single, joined} {
		for _, tok := range tokenize(variant) {
			if deniedKeywords[tok.text] {
				return reject(fmt.Sprintf("forbidden keyword %q", tok.text))
			}
		}
	}

	toks := tokenize(single)
	if len(toks) == 0 {
		return reject("empty statement")
	}

	// Structural allowlist: a single top-level SELECT (or WITH ... SELECT).
	if first := toks[0].text; first != "select" && first != "with" {
		return reject("only SELECT statements are allowed")
	}

	// Every referenced table must exist in the schema snapshot. CTE names
	// introduced by WITH are legal references even though the snapshot has
	// never heard of them.
	tables := referencedTables(toks)
	ctes := cteNames(toks)
	for _, name := range tables {
		if _, known := tableRows[name]; !known && !ctes[name] {
			return reject(fmt.Sprintf("unknown table %q", name))
		}
	}

	verdict := Verdict{
		Accepted:   true,
		Normalized: strings.TrimSpace(single),
		Tables:     realTables(tables, ctes),
	}

	// Unbounded scans over large fact tables get a limit injected. A limit
	// the user wrote themselves is never touched.
	if !hasLimit(toks) {
		var largest int64
		for _, name := range verdict.Tables {
			if rows := tableRows[name]; rows > largest {
				largest = rows
			}
		}
		switch {
		case opts.LargeTableRowThreshold > 0 && largest > opts.LargeTableRowThreshold:
			verdict.Normalized += " LIMIT " + strconv.Itoa(opts.InjectLimit)
			verdict.RiskFlags = append(verdict.RiskFlags, "limit_injected")
		case largest > 0:
			verdict.RiskFlags = append(verdict.RiskFlags, "unbounded_scan")
		}
	}

	return verdict
}

func reject(reason string) Verdict {
	return Verdict{Violations: []string{reason}}
}

// stripComments removes SQL comments (-- to end of line, /* ... */) while
// leaving string literals and quoted identifiers intact. Comments are
// replaced with repl. Returns false if a string, identifier or block comment
// is left unterminated.
func stripComments(s, repl string) (string, bool) {
	var sb strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'':
			end, ok := scanString(s, i, '\'')
			if !ok {
				return "", false
			}
			sb.WriteString(s[i:end])
			i = end
		case c == '"':
			end, ok := scanString(s, i, '"')
			if !ok {
				return "", false
			}
			sb.WriteString(s[i:end])
			i = end
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			sb.WriteString(repl)
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			depth := 1
			i += 2
			for i < len(s) && depth > 0 {
				if i+1 < len(s) && s[i] == '/' && s[i+1] == '*' {
					depth++
					i += 2
				} else if i+1 < len(s) && s[i] == '*' && s[i+1] == '/' {
					depth--
					i += 2
				} else {
					i++
				}
			}
			if depth > 0 {
				return "", false
			}
			sb.WriteString(repl)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), true
}

// scanString returns the index just past the closing quote, honoring the
// doubled-quote escape ('' or "").
func scanString(s string, start int, quote byte) (int, bool) {
	i := start + 1
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, true
		}
		i++
	}
	return 0, false
}

// singleStatement verifies the comment-stripped text contains exactly one
// statement. Statement separators inside string literals do not count. A
// single trailing semicolon is stripped rather than rejected.
func singleStatement(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			end, ok := scanString(s, i, s[i])
			if !ok {
				return "", false
			}
			i = end - 1
		case ';':
			rest := strings.TrimSpace(s[i+1:])
			if rest != "" {
				return "", false
			}
			return s[:i], true
		}
	}
	return s, true
}

type token struct {
	text string // lowercased for word tokens
	kind byte   // 'w' word, 'p' punctuation
}

// tokenize splits comment-free SQL into word and punctuation tokens,
// skipping over string literals. Quoted identifiers become word tokens with
// the quotes removed so they participate in table-name checks.
func tokenize(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'':
			end, ok := scanString(s, i, '\'')
			if !ok {
				return toks
			}
			i = end
		case c == '"':
			end, ok := scanString(s, i, '"')
			if !ok {
				return toks
			}
			inner := strings.ReplaceAll(s[i+1:end-1], `""`, `"`)
			toks = append(toks, token{text: strings.ToLower(inner), kind: 'w'})
			i = end
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			toks = append(toks, token{text: strings.ToLower(s[i:j]), kind: 'w'})
			i = j
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			toks = append(toks, token{text: string(c), kind: 'p'})
			i++
		}
	}
	return toks
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// referencedTables extracts table names appearing after FROM and JOIN.
// Schema-qualified names keep their full dotted form so that references to
// system catalogs (information_schema.*, pg_catalog.*) fail the snapshot
// membership check instead of slipping through under a bare name.
func referencedTables(toks []token) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for i := 0; i < len(toks); i++ {
		if toks[i].kind != 'w' || (toks[i].text != "from" && toks[i].text != "join") {
			continue
		}
		j := i + 1
		for j < len(toks) {
			if toks[j].kind == 'p' && toks[j].text == "(" {
				break // derived table or subquery
			}
			if toks[j].kind != 'w' {
				break
			}
			name := toks[j].text
			j++
			for j+1 < len(toks) && toks[j].kind == 'p' && toks[j].text == "." && toks[j+1].kind == 'w' {
				name += "." + toks[j+1].text
				j += 2
			}
			add(name)

			// Skip an optional alias, then continue only if a comma
			// introduces another table in the same FROM list.
			if j < len(toks) && toks[j].kind == 'w' && toks[j].text == "as" {
				j++
			}
			if j < len(toks) && toks[j].kind == 'w' && !fromTerminators[toks[j].text] &&
				toks[j].text != "join" && !isJoinModifier(toks[j].text) {
				j++ // alias
			}
			if j < len(toks) && toks[j].kind == 'p' && toks[j].text == "," {
				j++
				continue
			}
			break
		}
	}
	return out
}

func isJoinModifier(word string) bool {
	switch word {
	case "inner", "left", "right", "full", "cross", "natural", "outer":
		return true
	}
	return false
}

// cteNames collects the common table expression names introduced by a WITH
// prologue. Only the prologue is scanned: an "x AS (" appearing later in the
// statement (a WINDOW clause, say) defines no table expression and must not
// excuse a table from the snapshot check.
func cteNames(toks []token) map[string]bool {
	names := make(map[string]bool)
	if len(toks) == 0 || toks[0].kind != 'w' || toks[0].text != "with" {
		return names
	}
	i := 1
	if i < len(toks) && toks[i].kind == 'w' && toks[i].text == "recursive" {
		i++
	}
	for i < len(toks) {
		if toks[i].kind != 'w' {
			return names
		}
		name := toks[i].text
		i++
		// optional column list
		if i < len(toks) && toks[i].kind == 'p' && toks[i].text == "(" {
			i = skipParens(toks, i)
		}
		if i >= len(toks) || toks[i].kind != 'w' || toks[i].text != "as" {
			return names
		}
		i++
		// optional [NOT] MATERIALIZED hint
		if i < len(toks) && toks[i].kind == 'w' && toks[i].text == "not" {
			i++
		}
		if i < len(toks) && toks[i].kind == 'w' && toks[i].text == "materialized" {
			i++
		}
		if i >= len(toks) || toks[i].kind != 'p' || toks[i].text != "(" {
			return names
		}
		names[name] = true
		i = skipParens(toks, i)
		if i < len(toks) && toks[i].kind == 'p' && toks[i].text == "," {
			i++
			continue
		}
		return names
	}
	return names
}

// skipParens advances past a balanced parenthesized token group and returns
// the index just past the closing paren.
func skipParens(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].kind != 'p' {
			continue
		}
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(toks)
}

// realTables filters CTE references out of the table list and sorts it.
func realTables(tables []string, ctes map[string]bool) []string {
	out := make([]string, 0, len(tables))
	for _, name := range tables {
		if !ctes[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// hasLimit reports whether a row-limiting clause appears anywhere in the
// statement. A limit buried in a subquery still bounds what the final result
// can pull from the large table it wraps, so a token-level check is enough
// for the scan heuristic.
func hasLimit(toks []token) bool {
	for i, tok := range toks {
		if tok.kind != 'w' {
			continue
		}
		if tok.text == "limit" {
			return true
		}
		// "fetch first n rows only" is the standard spelling
		if tok.text == "fetch" && i+1 < len(toks) &&
			(toks[i+1].text == "first" || toks[i+1].text == "next") {
			return true
		}
	}
	return false
}
