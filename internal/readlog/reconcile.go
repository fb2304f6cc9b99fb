package readlog

// Result is the outcome of a reconciliation pass.
type Result struct {
	Log      []Record
	Imported int      // sessions accepted under the active policy
	Touched  []string // distinct titles of accepted sessions, in acceptance order
	Rejected int      // sessions dropped as invalid or empty
}

// Reconcile merges the sessions of every export into existing under policy.
// existing is never modified. Skip-duplicate also compares against sessions
// accepted earlier in the same call, so a pass never introduces two similar
// records.
func Reconcile(exports []FolderExport, existing []Record, policy Policy) Result {
	var log []Record
	if policy == OverwriteAll {
		log = make([]Record, 0)
	} else {
		log = make([]Record, 0, len(existing))
		log = append(log, existing...)
	}

	var res Result

	seen := make(map[string]bool)

	for _, exp := range exports {
		for _, s := range exp.Sessions {
			rec, ok := Normalize(s, exp.Label)
			if !ok {
				res.Rejected++
				continue
			}

			switch policy {
			case SkipDuplicate:
				if containsSimilar(log, rec) {
					continue
				}

				log = append(log, rec)
			case OverwriteByKey:
				log = replaceByKey(log, rec)
			default:
				log = append(log, rec)
			}

			res.Imported++

			if !seen[rec.Title] {
				seen[rec.Title] = true
				res.Touched = append(res.Touched, rec.Title)
			}
		}
	}

	res.Log = log

	return res
}

func containsSimilar(log []Record, rec Record) bool {
	for _, r := range log {
		if r.SimilarTo(rec) {
			return true
		}
	}

	return false
}

// replaceByKey puts rec where the first record with its key was and drops
// any later records sharing the key. Appends when no record matches.
func replaceByKey(log []Record, rec Record) []Record {
	key := rec.Key()
	replaced := false
	out := log[:0]

	for _, r := range log {
		if r.Key() != key {
			out = append(out, r)
			continue
		}

		if !replaced {
			out = append(out, rec)
			replaced = true
		}
	}

	if !replaced {
		out = append(out, rec)
	}

	return out
}

// UpdateRecentBooks moves each touched title to the front of recent, in
// order, and trims the list to MaxRecentBooks. The input slice is not
// modified.
func UpdateRecentBooks(recent, touched []string) []string {
	out := make([]string, 0, MaxRecentBooks+1)
	out = append(out, recent...)

	for _, title := range touched {
		if title == "" {
			continue
		}

		out = moveToFront(out, title)
	}

	if len(out) > MaxRecentBooks {
		out = out[:MaxRecentBooks]
	}

	return out
}

// LeadingBooks returns the first MaxRecentBooks distinct non-empty titles
// of touched, in order.
func LeadingBooks(touched []string) []string {
	out := make([]string, 0, MaxRecentBooks)
	seen := make(map[string]bool, len(touched))

	for _, title := range touched {
		if title == "" || seen[title] {
			continue
		}

		seen[title] = true
		out = append(out, title)

		if len(out) == MaxRecentBooks {
			break
		}
	}

	return out
}

func moveToFront(list []string, title string) []string {
	idx := -1

	for i, t := range list {
		if t == title {
			idx = i
			break
		}
	}

	if idx == 0 {
		return list
	}

	if idx > 0 {
		list = append(list[:idx], list[idx+1:]...)
	}

	return append([]string{title}, list...)
}
