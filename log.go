package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

// defaultLogLimit is how many records `log` prints without --limit.
const defaultLogLimit = 20

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the local reading log",
		Long: `Print the most recent reading sessions, newest first. --limit 0 prints
every record.`,
		RunE: runLog,
	}

	cmd.Flags().Int("limit", defaultLogLimit, "number of records to print (0 for all)")

	return cmd
}

func runLog(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must be >= 0, got %d", limit)
	}

	a, err := openApp(cmd.Context(), cc, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	records := newestFirst(a.orch.Log(), limit)

	if cc.Flags.JSON {
		return printJSON(records)
	}

	printLogTable(os.Stdout, records)

	return nil
}

// newestFirst returns up to limit records ordered by date descending. The
// sort is stable, so same-day records keep their log order.
func newestFirst(records []readlog.Record, limit int) []readlog.Record {
	out := make([]readlog.Record, len(records))
	copy(out, records)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

func printLogTable(w io.Writer, records []readlog.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "The reading log is empty.")
		return
	}

	rows := make([][]string, 0, len(records))

	var minutes, characters int

	for _, r := range records {
		rows = append(rows, []string{
			r.Date,
			strconv.Itoa(r.Minutes),
			strconv.Itoa(r.Characters),
			r.Title,
		})

		minutes += r.Minutes
		characters += r.Characters
	}

	printTable(w, []string{"DATE", "MINUTES", "CHARACTERS", "TITLE"}, rows)
	fmt.Fprintf(w, "\n%d sessions, %s read, %d characters\n", len(records), formatMinutes(minutes), characters)
}
