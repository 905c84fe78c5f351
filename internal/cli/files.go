package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"trackmystacks/internal/snapshot"
)

// outputPath resolves where an export is written. An explicit path picks
// the format by extension; otherwise the default name lands in BACKUP_DIR.
func (a *App) outputPath(out, format, username string) (string, snapshot.Format, error) {
	if out != "" {
		f, err := snapshot.FormatFromFilename(out)
		if err != nil {
			return "", "", err
		}
		return out, f, nil
	}

	f := snapshot.Format(format)
	if f != snapshot.FormatJSON && f != snapshot.FormatYAML {
		return "", "", fmt.Errorf("%w: format %q (must be json or yaml)", snapshot.ErrUnsupportedFormat, format)
	}
	return filepath.Join(a.Config.BackupDir, snapshot.Filename(username, a.Now(), f)), f, nil
}

// writeSnapshot encodes v into a temporary file next to path and renames it
// into place once encoding succeeded.
func writeSnapshot(path string, format snapshot.Format, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".stacks-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := snapshot.Encode(tmp, format, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readSnapshot(path string) (*snapshot.Document, error) {
	format, err := snapshot.FormatFromFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return snapshot.Decode(f, format)
}

func readUserSnapshot(path string) (*snapshot.UserDocument, error) {
	format, err := snapshot.FormatFromFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return snapshot.DecodeUser(f, format)
}
