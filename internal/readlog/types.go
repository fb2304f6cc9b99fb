// Package readlog models the local reading-history log and reconciles ttsu
// statistics exports into it. It has no I/O: callers hand it decoded export
// content and the current log, and persist whatever it returns.
package readlog

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is used when neither the session nor its folder names a book.
const DefaultTitle = "Reading"

// MaxRecentBooks bounds the recent-books list.
const MaxRecentBooks = 10

// Duplicate thresholds for the skip-duplicate policy. Two records with the
// same date and title are the same session when both differences are
// strictly below these values.
const (
	duplicateMinutesDelta    = 2
	duplicateCharactersDelta = 100
)

// Record is the canonical unit persisted in the local log.
type Record struct {
	Date       string `json:"date" yaml:"date"` // YYYY-MM-DD
	Minutes    int    `json:"minutes" yaml:"minutes"`
	Characters int    `json:"characters" yaml:"characters"`
	Title      string `json:"title" yaml:"title"`
}

// Key identifies the (date, title) pair that overwrite-by-key replaces on.
func (r Record) Key() string {
	return r.Date + "\x00" + normalizeTitle(r.Title)
}

// SimilarTo reports whether o describes the same reading session as r under
// the skip-duplicate rule.
func (r Record) SimilarTo(o Record) bool {
	if r.Key() != o.Key() {
		return false
	}

	return absInt(r.Minutes-o.Minutes) < duplicateMinutesDelta &&
		absInt(r.Characters-o.Characters) < duplicateCharactersDelta
}

func (r Record) String() string {
	return fmt.Sprintf("%s %q %dm %dc", r.Date, r.Title, r.Minutes, r.Characters)
}

// RawSession is one element of a ttsu statistics export. Numeric fields are
// float64 because the reader writes whatever JavaScript produced.
type RawSession struct {
	DateKey        string  `json:"dateKey"`
	ReadingTime    float64 `json:"readingTime"` // seconds
	CharactersRead float64 `json:"charactersRead"`
	Title          string  `json:"title,omitempty"`
}

// Valid reports whether the session carries a date and any activity at all.
func (s RawSession) Valid() bool {
	if strings.TrimSpace(s.DateKey) == "" {
		return false
	}

	return s.CharactersRead != 0 || s.ReadingTime != 0
}

// FolderExport pairs the sessions of one export file with the name of the
// book folder that contained it.
type FolderExport struct {
	Label    string
	Sessions []RawSession
}

// Normalize turns a raw session into a Record. The second return value is
// false when the session is invalid or rounds down to no activity.
func Normalize(s RawSession, folderLabel string) (Record, bool) {
	if !s.Valid() {
		return Record{}, false
	}

	rec := Record{
		Date:       strings.TrimSpace(s.DateKey),
		Minutes:    nonNegative(math.Round(s.ReadingTime / 60)),
		Characters: nonNegative(math.Round(s.CharactersRead)),
		Title:      resolveTitle(s.Title, folderLabel),
	}

	if rec.Minutes == 0 && rec.Characters == 0 {
		return Record{}, false
	}

	return rec, true
}

// resolveTitle applies the session title -> folder label -> DefaultTitle
// fallback chain on normalized values.
func resolveTitle(sessionTitle, folderLabel string) string {
	if t := normalizeTitle(sessionTitle); t != "" {
		return t
	}

	if t := normalizeTitle(folderLabel); t != "" {
		return t
	}

	return DefaultTitle
}

// normalizeTitle trims and NFC-normalizes a title. Drive and ttsu do not
// agree on composed vs decomposed kana, so comparisons go through here.
func normalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func nonNegative(f float64) int {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}

	return int(f)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
