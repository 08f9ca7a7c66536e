/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// landuse-explorer is a terminal client for the landuse-agent server. Plain
// input goes to the conversational agent; backslash commands hit the
// explorer endpoints directly.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"landuse-agent/internal/database"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "landuse-explorer",
	Short: "Interactive terminal client for the Land Use Analytics Agent",
	Long: `landuse-explorer connects to a running landuse-agent server. Type a
question in plain language to ask the agent, or use commands:

  \sql <SELECT ...>   run a SQL query directly
  \schema             list tables and columns
  \templates          list curated query templates
  \stats              show database statistics
  \clear              clear the conversation history
  quit, exit          leave`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080",
		"Base URL of the landuse-agent server")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	client := &apiClient{
		base:       strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	u := newUI()

	u.printWelcome(client.base)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          u.prompt(),
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize input: %w", err)
	}
	defer func() {
		if err := rl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: failed to close input: %v\n", err)
		}
	}()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "quit" || line == "exit":
			return nil
		case line == "help":
			fmt.Println(cmd.Long)
		case line == "\\schema":
			client.showSchema(u)
		case line == "\\templates":
			client.showTemplates(u)
		case line == "\\stats":
			client.showStats(u)
		case line == "\\clear":
			client.clearHistory(u)
		case strings.HasPrefix(line, "\\sql "):
			client.runSQL(u, strings.TrimPrefix(line, "\\sql "))
		case strings.HasPrefix(line, "\\"):
			u.printError("unknown command: " + line)
		default:
			client.ask(u, line)
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.landuse_explorer_history"
}

type apiClient struct {
	base       string
	httpClient *http.Client
	sessionID  string
}

func (c *apiClient) post(path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Post(c.base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if len(apiErr.Details) > 0 {
				return fmt.Errorf("%s: %s", apiErr.Error, strings.Join(apiErr.Details, "; "))
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) ask(u *ui, question string) {
	u.printThinking()
	var resp struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
		Truncated bool   `json:"truncated"`
		ToolCalls int    `json:"tool_calls"`
	}
	err := c.post("/api/v1/chat", map[string]string{
		"message":    question,
		"session_id": c.sessionID,
	}, &resp)
	u.clearThinking()
	if err != nil {
		u.printError(err.Error())
		return
	}
	c.sessionID = resp.SessionID

	u.printAssistant(resp.Response)
	if resp.Truncated {
		u.printSystem("(answer forced after reaching the tool call limit)")
	}
	if resp.ToolCalls > 0 {
		u.printSystem(fmt.Sprintf("(%d queries executed)", resp.ToolCalls))
	}
}

func (c *apiClient) runSQL(u *ui, sql string) {
	var result struct {
		Columns   []string        `json:"columns"`
		Rows      [][]interface{} `json:"rows"`
		RowCount  int             `json:"row_count"`
		Truncated bool            `json:"truncated"`
		ElapsedMs int64           `json:"elapsed_ms"`
	}
	if err := c.post("/api/v1/explorer/query", map[string]string{"sql": sql}, &result); err != nil {
		u.printError(err.Error())
		return
	}
	u.printTable(result.Columns, result.Rows)
	note := fmt.Sprintf("%d rows in %dms", result.RowCount, result.ElapsedMs)
	if result.Truncated {
		note += " (truncated)"
	}
	u.printSystem(note)
}

func (c *apiClient) showSchema(u *ui) {
	var snap database.SchemaSnapshot
	if err := c.get("/api/v1/explorer/schema", &snap); err != nil {
		u.printError(err.Error())
		return
	}
	var md strings.Builder
	md.WriteString("# Tables\n\n")
	for _, table := range snap.Tables {
		fmt.Fprintf(&md, "## %s (%s, %d rows)\n\n", table.Name, table.Kind, table.RowCount)
		for _, col := range table.Columns {
			fmt.Fprintf(&md, "- `%s` %s\n", col.Name, col.Type)
		}
		md.WriteString("\n")
	}
	u.printMarkdown(md.String())
}

func (c *apiClient) showTemplates(u *ui) {
	var body struct {
		Templates []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Category    string `json:"category"`
			Description string `json:"description"`
			Query       string `json:"query"`
		} `json:"templates"`
	}
	if err := c.get("/api/v1/explorer/templates", &body); err != nil {
		u.printError(err.Error())
		return
	}
	var md strings.Builder
	md.WriteString("# Query Templates\n\n")
	for _, tmpl := range body.Templates {
		fmt.Fprintf(&md, "## %s (%s)\n\n%s\n\n```sql\n%s\n```\n\n",
			tmpl.Name, tmpl.Category, tmpl.Description, tmpl.Query)
	}
	u.printMarkdown(md.String())
}

func (c *apiClient) showStats(u *ui) {
	var stats map[string]interface{}
	if err := c.get("/api/v1/explorer/stats", &stats); err != nil {
		u.printError(err.Error())
		return
	}
	var md strings.Builder
	md.WriteString("# Database\n\n")
	for _, key := range []string{"dialect", "table_count", "total_rows", "dimensions", "facts"} {
		fmt.Fprintf(&md, "- %s: %v\n", key, stats[key])
	}
	u.printMarkdown(md.String())
}

func (c *apiClient) clearHistory(u *ui) {
	if c.sessionID == "" {
		u.printSystem("no conversation to clear")
		return
	}
	req, err := http.NewRequest(http.MethodDelete,
		c.base+"/api/v1/chat/history?session_id="+c.sessionID, nil)
	if err != nil {
		u.printError(err.Error())
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		u.printError(err.Error())
		return
	}
	resp.Body.Close()
	u.printSystem("conversation cleared")
}
