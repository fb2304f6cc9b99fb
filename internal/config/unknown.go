package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys per table. The "" entry is the top level,
// which also accepts the table names themselves.
var knownKeys = map[string][]string{
	"":        {"state_path", "auth", "drive", "sync", "logging", "network"},
	"auth":    {"client_id", "client_secret"},
	"drive":   {"root_folder_name", "statistics_pattern", "page_size"},
	"sync":    {"poll_interval", "conflict_policy", "backup_path"},
	"logging": {"log_level", "log_format", "log_file"},
	"network": {"connect_timeout", "data_timeout", "user_agent"},
}

func init() {
	// Sorted for deterministic suggestions when two candidates tie.
	for _, keys := range knownKeys {
		sort.Strings(keys)
	}
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with a suggestion for each one.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := unknownKeyError(key)
		if seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key. Keys nested under an unknown
// table are reported against that table.
func unknownKeyError(key toml.Key) error {
	table, field := "", key[0]

	if len(key) > 1 {
		if _, ok := knownKeys[key[0]]; ok {
			table, field = key[0], key[1]
		}
	}

	name := field
	if table != "" {
		name = table + "." + field
	}

	if suggestion := closestMatch(field, knownKeys[table]); suggestion != "" {
		if table != "" {
			suggestion = table + "." + suggestion
		}

		return fmt.Errorf("unknown config key %q, did you mean %q?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

// closestMatch finds the closest known key by Levenshtein distance. Returns
// "" if none is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
