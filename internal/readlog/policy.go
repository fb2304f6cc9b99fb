package readlog

import "fmt"

// Policy decides how an incoming session is reconciled against existing
// records sharing its date and title.
type Policy int

const (
	// SkipDuplicate drops a session when a similar record already exists.
	// Periodic sync uses it so unchanged exports import nothing.
	SkipDuplicate Policy = iota
	// OverwriteByKey replaces any record with the same date and title, so
	// corrections made in the reader propagate.
	OverwriteByKey
	// OverwriteAll ignores the existing log and rebuilds it from the input.
	OverwriteAll
)

// Policy names as they appear in config files.
const (
	policySkipDuplicate  = "skip_duplicate"
	policyOverwriteByKey = "overwrite_by_key"
	policyOverwriteAll   = "overwrite_all"
)

func (p Policy) String() string {
	switch p {
	case SkipDuplicate:
		return policySkipDuplicate
	case OverwriteByKey:
		return policyOverwriteByKey
	case OverwriteAll:
		return policyOverwriteAll
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case policySkipDuplicate:
		return SkipDuplicate, nil
	case policyOverwriteByKey:
		return OverwriteByKey, nil
	case policyOverwriteAll:
		return OverwriteAll, nil
	default:
		return 0, fmt.Errorf("readlog: unknown conflict policy %q (want %s, %s or %s)",
			s, policySkipDuplicate, policyOverwriteByKey, policyOverwriteAll)
	}
}
