package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirPermissions  = 0o700
	configFilePermissions = 0o600
)

// configTemplate is written on first setup so users have a file to fill in.
const configTemplate = `# ttsu-sync configuration.

[auth]
# OAuth client of type "Desktop app" from the Google Cloud console.
client_id = ""
client_secret = ""

[drive]
# root_folder_name = "ttsu"
# statistics_pattern = "statistics"
# page_size = 100

[sync]
# poll_interval = "5m"
# conflict_policy = "skip_duplicate"   # or "overwrite_by_key"
# backup_path = ""                     # .json, .yaml or .yml

[logging]
# log_level = "info"
# log_format = "auto"
# log_file = ""

[network]
# connect_timeout = "10s"
# data_timeout = "60s"
`

// ErrConfigExists is returned by WriteTemplate when the file is already there.
var ErrConfigExists = errors.New("config file already exists")

// WriteTemplate creates a commented config file at path. It never overwrites
// an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
