package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Page size bounds for files.list.
const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// maxPages guards against a server that keeps returning page tokens.
const maxPages = 1000

// maxContentBytes caps a single downloaded export.
const maxContentBytes = 64 << 20

// listFields is the partial-response selector for files.list.
const listFields = "nextPageToken,files(id,name,mimeType,modifiedTime)"

// fileResponse mirrors the Drive API file resource for the fields we request.
type fileResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
}

type listResponse struct {
	NextPageToken string         `json:"nextPageToken"`
	Files         []fileResponse `json:"files"`
}

func (f *fileResponse) toFile(logger *slog.Logger) File {
	file := File{ID: f.ID, Name: f.Name, MimeType: f.MimeType}

	if f.ModifiedTime == "" {
		return file
	}

	t, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		logger.Debug("invalid modifiedTime, leaving unset",
			slog.String("file_id", f.ID),
			slog.String("raw", f.ModifiedTime),
		)

		return file
	}

	file.ModifiedTime = t

	return file
}

// FindRootFolder returns the ID of the first non-trashed folder named
// exactly name, or "" when there is none.
func (c *Client) FindRootFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name=%s and mimeType=%s and trashed=false", quote(name), quote(MimeFolder))

	files, err := c.list(ctx, q, "", 1, true)
	if err != nil {
		return "", err
	}

	if len(files) == 0 {
		c.logger.Info("root folder not found", slog.String("name", name))
		return "", nil
	}

	return files[0].ID, nil
}

// ListChildren returns the direct, non-trashed children of folderID that
// match f, following pagination.
func (c *Client) ListChildren(ctx context.Context, folderID string, f Filter) ([]File, error) {
	q := buildChildQuery(folderID, f)

	orderBy := ""
	if f.OrderByModifiedDesc {
		orderBy = "modifiedTime desc"
	}

	return c.list(ctx, q, orderBy, f.PageSize, false)
}

func buildChildQuery(folderID string, f Filter) string {
	clauses := []string{quote(folderID) + " in parents"}

	if f.NameContains != "" {
		clauses = append(clauses, "name contains "+quote(f.NameContains))
	}

	if f.MimeType != "" {
		clauses = append(clauses, "mimeType="+quote(f.MimeType))
	}

	if !f.ModifiedAfter.IsZero() {
		clauses = append(clauses, "modifiedTime>"+quote(f.ModifiedAfter.UTC().Format(time.RFC3339)))
	}

	clauses = append(clauses, "trashed=false")

	return strings.Join(clauses, " and ")
}

// list runs files.list for q. firstPageOnly stops after one page.
func (c *Client) list(ctx context.Context, q, orderBy string, pageSize int, firstPageOnly bool) ([]File, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var (
		files     []File
		pageToken string
	)

	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("q", q)
		params.Set("spaces", "drive")
		params.Set("fields", listFields)
		params.Set("pageSize", strconv.Itoa(pageSize))

		if orderBy != "" {
			params.Set("orderBy", orderBy)
		}

		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		resp, err := c.Get(ctx, "/files?"+params.Encode())
		if err != nil {
			return nil, err
		}

		var lr listResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("gdrive: decoding file list: %w", decodeErr)
		}

		for i := range lr.Files {
			files = append(files, lr.Files[i].toFile(c.logger))
		}

		if firstPageOnly || lr.NextPageToken == "" {
			return files, nil
		}

		pageToken = lr.NextPageToken
	}

	return nil, fmt.Errorf("gdrive: file list exceeded %d pages", maxPages)
}

// DownloadContent fetches the raw bytes of fileID as text.
func (c *Client) DownloadContent(ctx context.Context, fileID string) (string, error) {
	resp, err := c.Get(ctx, "/files/"+url.PathEscape(fileID)+"?alt=media")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		return "", fmt.Errorf("gdrive: reading content of %s: %w", fileID, err)
	}

	if len(data) > maxContentBytes {
		return "", fmt.Errorf("gdrive: content of %s exceeds %d bytes", fileID, maxContentBytes)
	}

	c.logger.Debug("download complete",
		slog.String("file_id", fileID),
		slog.Int("bytes", len(data)),
	)

	return string(data), nil
}

// quote renders s as a single-quoted Drive query literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)

	return "'" + s + "'"
}
