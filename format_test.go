package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{42, "42m"},
		{60, "1h 00m"},
		{185, "3h 05m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMinutes(tt.minutes))
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.Local)
	diffYear := time.Date(2020, time.December, 25, 8, 0, 0, 0, time.Local)

	t.Run("same year", func(t *testing.T) {
		result := formatTime(sameYear)
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "15")
		assert.Contains(t, result, "10:30")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime(diffYear)
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "25")
		assert.Contains(t, result, "2020")
	})
}

func TestPrintTable_AlignsByRunes(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"DATE", "TITLE", "MIN"}, [][]string{
		{"2026-01-02", "本", "5"},
		{"2026-01-03", "Reading", "12"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "DATE        TITLE    MIN", lines[0])
	assert.Equal(t, "2026-01-02  本        5", lines[1])
	assert.Equal(t, "2026-01-03  Reading  12", lines[2])
}

func TestNewReportOutput(t *testing.T) {
	last := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	out := newReportOutput(&sync.Report{
		RunID:    "run-1",
		Kind:     state.RunManual,
		Policy:   readlog.OverwriteByKey,
		Folders:  3,
		Files:    2,
		Failed:   1,
		Imported: 7,
		Rejected: 4,
		Touched:  []string{"A", "B"},
		LastSync: last,
		Duration: 1234567 * time.Microsecond,
	})

	assert.Equal(t, reportOutput{
		RunID:    "run-1",
		Kind:     "sync",
		Policy:   "overwrite_by_key",
		Folders:  3,
		Files:    2,
		Failed:   1,
		Imported: 7,
		Rejected: 4,
		Books:    []string{"A", "B"},
		LastSync: last,
		Duration: "1.235s",
	}, out)
}

func TestNewestFirst(t *testing.T) {
	records := []readlog.Record{
		{Date: "2026-01-01", Title: "a"},
		{Date: "2026-01-03", Title: "b"},
		{Date: "2026-01-02", Title: "c"},
		{Date: "2026-01-03", Title: "d"},
	}

	got := newestFirst(records, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "d", "c"}, []string{got[0].Title, got[1].Title, got[2].Title})
	assert.Equal(t, "a", records[0].Title, "input untouched")

	assert.Len(t, newestFirst(records, 0), 4)
}

func TestPrintLogTable(t *testing.T) {
	var buf bytes.Buffer

	printLogTable(&buf, nil)
	assert.Equal(t, "The reading log is empty.\n", buf.String())

	buf.Reset()
	printLogTable(&buf, []readlog.Record{
		{Date: "2026-01-02", Minutes: 50, Characters: 1000, Title: "A"},
		{Date: "2026-01-01", Minutes: 30, Characters: 500, Title: "B"},
	})

	out := buf.String()
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "2026-01-02  50")
	assert.Contains(t, out, "2 sessions, 1h 20m read, 1500 characters")
}
