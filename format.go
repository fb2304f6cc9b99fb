package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// reportOutput is the JSON schema for a pass report.
type reportOutput struct {
	RunID    string    `json:"run_id"`
	Kind     string    `json:"kind"`
	Policy   string    `json:"policy"`
	Folders  int       `json:"folders"`
	Files    int       `json:"files"`
	Failed   int       `json:"failed"`
	Imported int       `json:"imported"`
	Rejected int       `json:"rejected"`
	Books    []string  `json:"books"`
	LastSync time.Time `json:"last_sync,omitzero"`
	Duration string    `json:"duration"`
}

func newReportOutput(r *sync.Report) reportOutput {
	return reportOutput{
		RunID:    r.RunID,
		Kind:     string(r.Kind),
		Policy:   r.Policy.String(),
		Folders:  r.Folders,
		Files:    r.Files,
		Failed:   r.Failed,
		Imported: r.Imported,
		Rejected: r.Rejected,
		Books:    r.Touched,
		LastSync: r.LastSync,
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
}

// formatTime returns a compact local timestamp for display.
func formatTime(t time.Time) string {
	t = t.Local()

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatMinutes renders a minute count as "42m" or "3h 05m".
func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}

	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

// printTable writes aligned columns to w. headers and each row must have
// the same length. Widths count runes, so kana titles line up as well as
// the terminal allows.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := widths[i] - utf8.RuneCountInString(cell)
		parts[i] = cell + strings.Repeat(" ", pad)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
