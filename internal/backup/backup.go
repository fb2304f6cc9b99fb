// Package backup exports the merged reading log to a local file after each
// import. The format follows the file extension: .json or .yaml/.yml.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

// FilePerms restricts backup files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the backup directory.
const DirPerms = 0o700

// ErrUnsupportedFormat is returned for paths without a known extension.
var ErrUnsupportedFormat = errors.New("backup: unsupported file extension")

// Document is the on-disk backup format.
type Document struct {
	ExportedAt  time.Time        `json:"exported_at" yaml:"exported_at"`
	RecentBooks []string         `json:"recent_books" yaml:"recent_books"`
	Records     []readlog.Record `json:"records" yaml:"records"`
}

// Source supplies the log snapshot to export.
type Source interface {
	Log() []readlog.Record
	RecentBooks() []string
}

// Writer exports a Source to one path.
type Writer struct {
	path    string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewWriter returns a Writer for path. The extension picks the encoding.
func NewWriter(path string, logger *slog.Logger) (*Writer, error) {
	if _, err := codecFor(path); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{path: path, logger: logger, nowFunc: time.Now}, nil
}

// Path returns the backup file path.
func (w *Writer) Path() string {
	return w.path
}

// Export writes the current snapshot of src.
func (w *Writer) Export(ctx context.Context, src Source) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	doc := Document{
		ExportedAt:  w.nowFunc().UTC(),
		RecentBooks: src.RecentBooks(),
		Records:     src.Log(),
	}

	if err := Save(w.path, &doc); err != nil {
		return err
	}

	w.logger.Debug("backup written",
		slog.String("path", w.path),
		slog.Int("records", len(doc.Records)),
	)

	return nil
}

// Hook adapts Export to the orchestrator's post-persist callback. src is
// resolved on each call because the hook is built before its source exists.
func (w *Writer) Hook(src func() Source) func(context.Context) error {
	return func(ctx context.Context) error {
		s := src()
		if s == nil {
			return nil
		}

		return w.Export(ctx, s)
	}
}

type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return codec{
			marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
			unmarshal: json.Unmarshal,
		}, nil
	case ".yaml", ".yml":
		return codec{marshal: yaml.Marshal, unmarshal: yaml.Unmarshal}, nil
	default:
		return codec{}, fmt.Errorf("%w: %q (want .json, .yaml or .yml)", ErrUnsupportedFormat, path)
	}
}

// Load reads a backup file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*Document, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("backup: reading %s: %w", path, err)
	}

	var doc Document
	if err := c.unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("backup: decoding %s: %w", path, err)
	}

	return &doc, nil
}

// Save writes doc to path atomically (temp file, fsync, rename) with 0600
// permissions.
func Save(path string, doc *Document) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}

	data, err := c.marshal(doc)
	if err != nil {
		return fmt.Errorf("backup: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("backup: creating directory %s: %w", dir, mkErr)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("backup: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("backup: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("backup: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("backup: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("backup: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("backup: renaming: %w", err)
	}

	success = true

	return nil
}
