/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Color codes for terminal output
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

type ui struct {
	noColor bool
}

func newUI() *ui {
	return &ui{noColor: os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd()))}
}

func (u *ui) colorize(color, text string) string {
	if u.noColor {
		return text
	}
	return color + text + colorReset
}

func (u *ui) printWelcome(server string) {
	banner := `
  Land Use Analytics Explorer
  Connected to ` + server + `
  Type 'quit' or 'exit' to leave, 'help' for commands
`
	fmt.Println(u.colorize(colorCyan, banner))
}

func (u *ui) prompt() string {
	return u.colorize(colorGreen+colorBold, "You: ")
}

func (u *ui) printThinking() {
	fmt.Print(u.colorize(colorGray, "Thinking..."))
	_ = os.Stdout.Sync() //nolint:errcheck // Best effort flush, not critical
}

func (u *ui) clearThinking() {
	fmt.Print("\r" + strings.Repeat(" ", 12) + "\r")
}

func (u *ui) printAssistant(text string) {
	fmt.Print("\n" + u.colorize(colorBlue, "Assistant: "))
	u.printMarkdown(text)
}

func (u *ui) printMarkdown(text string) {
	style := "dark"
	if u.noColor {
		style = "notty"
	}

	width := u.terminalWidth()
	if width > 120 {
		width = 120 // Cap at 120 columns for better table readability
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if rendered, err := r.Render(text); err == nil {
			fmt.Println(rendered)
			return
		}
	}
	fmt.Println(text)
}

func (u *ui) printError(message string) {
	fmt.Println(u.colorize(colorRed, "Error: "+message))
}

func (u *ui) printSystem(message string) {
	fmt.Println(u.colorize(colorGray, message))
}

// printTable renders query results as a markdown table so glamour can
// align the columns.
func (u *ui) printTable(columns []string, rows [][]interface{}) {
	if len(columns) == 0 {
		u.printSystem("no columns returned")
		return
	}
	var md strings.Builder
	md.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	md.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = ""
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		md.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	u.printMarkdown(md.String())
}

func (u *ui) terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 2 {
		return width - 2
	}
	return 100
}
