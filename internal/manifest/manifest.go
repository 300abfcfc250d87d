// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest persists a target's paper records as a JSON array.
// A manifest is either the previous version or the complete new one;
// readers never observe a partial write.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/pdiddy/confpapers/pkg/types"
)

const (
	metadataDir = "metadata"
	fileName    = "downloaded_papers.json"
)

// Path returns <out>/<venue>_<year>_papers/metadata/downloaded_papers.json.
func Path(out, venue string, year int) string {
	return filepath.Join(types.Target{Venue: venue, Year: year}.Dir(out), metadataDir, fileName)
}

// Write serializes records with two-space indentation and unescaped HTML
// and replaces the file at path atomically. A nil slice is written as [].
func Write(path string, records []types.PaperRecord) error {
	if records == nil {
		records = []types.PaperRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	// atomic.WriteFile creates new files 0600; the UI's file server needs to read them.
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	return nil
}

// Read loads a manifest. A missing file returns an empty slice and an
// error wrapping os.ErrNotExist.
func Read(path string) ([]types.PaperRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.PaperRecord{}, fmt.Errorf("reading manifest: %w", err)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var records []types.PaperRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if records == nil {
		records = []types.PaperRecord{}
	}
	return records, nil
}
