package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects the wire encoding of a snapshot file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// filenameSafe keeps a username from escaping the backup directory.
var filenameSafe = strings.NewReplacer("/", "_", "\\", "_", "..", "_", "\x00", "_")

// Filename returns the default download name for a snapshot taken at now,
// e.g. trackmystacks-backup-2026-03-28.json. A non-empty username yields the
// per-user name trackmystacks-alice-backup-2026-03-28.json.
func Filename(username string, now time.Time, format Format) string {
	ext := "json"
	if format == FormatYAML {
		ext = "yaml"
	}
	prefix := "trackmystacks"
	if username != "" {
		prefix += "-" + filenameSafe.Replace(username)
	}
	return fmt.Sprintf("%s-backup-%s.%s", prefix, now.Format("2006-01-02"), ext)
}

// Encode writes v (a *Document or *UserDocument) in the given format.
// JSON output is indented for humans.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json snapshot: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml snapshot: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Decode reads and validates a full-database document.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	if err := decode(r, format, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeUser reads and validates a per-user document.
func DecodeUser(r io.Reader, format Format) (*UserDocument, error) {
	var doc UserDocument
	if err := decode(r, format, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decode(r io.Reader, format Format, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return malformed("empty input")
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, v); err != nil {
			return malformed("decode json: %v", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, v); err != nil {
			return malformed("decode yaml: %v", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil
}
