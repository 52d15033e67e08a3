// Package api contains helpers shared by ruler's configuration kinds.
package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/ruler/pkg/yaml"
)

// AppName is the directory name used below the user config directory.
const AppName = "ruler"

var (
	ErrIsDirectory  = errors.New("path is a directory")
	ErrUnknownState = errors.New("unknown file state")
)

// GetConfigPath returns the path of filename in the user's config directory.
// It uses $XDG_CONFIG_HOME when set, then ~/.config, and finally a temp
// directory.
func GetConfigPath(filename string) string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, AppName, filename)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", AppName, filename)
	}

	tmpPath := filepath.Join(os.TempDir(), AppName, filename)

	slog.Warn("could not determine user config directory, using temp path",
		slog.String("path", tmpPath),
		slog.Any("err", err),
	)

	return tmpPath
}

// statFile reports whether path exists as a regular file. Directories and
// other non-regular files are errors.
func statFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	switch {
	case info.IsDir():
		return false, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: %w", path, ErrUnknownState)
	}

	return true, nil
}

// ReadFile reads a regular file.
func ReadFile(path string) ([]byte, error) {
	exists, err := statFile(path)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes obj with ruler's encoder options.
func MarshalYAML(obj any) ([]byte, error) {
	b, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b, nil
}

// WriteIfNotExists writes data to path unless a file already exists there.
func WriteIfNotExists(path string, data []byte) error {
	exists, err := statFile(path)
	if err != nil || exists {
		return err
	}

	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data, creating parent directories.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("rename file: %w", err)
	}

	return nil
}

// FindConfigFile searches targetPath and each of its parents for the first
// of fileNames that exists. It returns an empty string when none is found.
func FindConfigFile(targetPath string, fileNames []string) (string, error) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}

	dir := absPath
	if !info.IsDir() {
		dir = filepath.Dir(absPath)
	}

	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}

		dir = parent
	}
}

// WriteDefaultFile writes defaultData to path if no file exists there. With
// force, an existing file is first renamed to a timestamped backup.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	exists, err := statFile(path)
	if err != nil {
		return err
	}

	logger := slog.With(slog.String("type", kind), slog.String("path", path))

	if exists && !force {
		logger.Debug("file already exists, skipping write")
		return nil
	}

	if exists {
		backupPath := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())
		logger.Info("backing up existing file", slog.String("backup", backupPath))

		err = os.Rename(path, backupPath)
		if err != nil {
			return fmt.Errorf("rename existing %s file to backup: %w", kind, err)
		}
	}

	logger.Info("write default file")

	err = WriteFile(path, defaultData)
	if err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}
