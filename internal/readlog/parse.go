package readlog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotArray is wrapped by ParseError when the export is valid JSON but
// not an array.
var ErrNotArray = errors.New("readlog: export is not a JSON array")

// ParseError reports an export file whose content cannot be used at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("readlog: parsing export: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseExport decodes a statistics export. Elements that are not session
// objects are skipped and counted rather than failing the whole file.
func ParseExport(data []byte) (sessions []RawSession, skipped int, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, 0, &ParseError{Err: ErrNotArray}
		}

		return nil, 0, &ParseError{Err: err}
	}

	if elems == nil {
		// Literal null.
		return nil, 0, &ParseError{Err: ErrNotArray}
	}

	sessions = make([]RawSession, 0, len(elems))

	for _, raw := range elems {
		var s RawSession
		if err := json.Unmarshal(raw, &s); err != nil {
			skipped++
			continue
		}

		sessions = append(sessions, s)
	}

	return sessions, skipped, nil
}
