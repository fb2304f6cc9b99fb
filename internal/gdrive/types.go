package gdrive

import "time"

// Drive MIME types used by discovery.
const (
	MimeFolder = "application/vnd.google-apps.folder"
	MimeJSON   = "application/json"
)

// File is a Drive file or folder, normalized from the API response.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime time.Time // zero if the API omitted or garbled it
}

// Filter narrows ListChildren. Zero values disable each condition.
type Filter struct {
	NameContains        string
	MimeType            string
	ModifiedAfter       time.Time
	OrderByModifiedDesc bool
	PageSize            int
}
