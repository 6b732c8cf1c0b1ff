// Package jsonfile stores the mapping snapshot in the data.json document used
// by earlier releases of the bot.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MappingSnapshotStore = (*SnapshotFile)(nil)

// Document is the on-disk layout: {"IssueMap": {"<thread id>": <issue number>}}.
type Document struct {
	IssueMap map[uint64]int `json:"IssueMap"`
}

// SnapshotFile implements driven.MappingSnapshotStore on a single JSON file.
type SnapshotFile struct {
	path string
}

// NewSnapshotFile creates a SnapshotFile at path. The file is created on the first Save.
func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path}
}

// Load reads the snapshot. A missing file is reported as not found.
func (f *SnapshotFile) Load(_ context.Context) (map[uint64]int, bool, error) {
	doc, err := ReadDocument(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc.IssueMap, true, nil
}

// Save replaces the file contents. The write goes through a temp file and a
// rename so a crash never leaves a truncated snapshot behind.
func (f *SnapshotFile) Save(_ context.Context, issues map[uint64]int) error {
	if issues == nil {
		issues = map[uint64]int{}
	}

	data, err := json.Marshal(Document{IssueMap: issues})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", f.path, err)
	}
	return nil
}

// ReadDocument decodes a data.json file. The returned error wraps
// fs.ErrNotExist when the file is absent.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if doc.IssueMap == nil {
		doc.IssueMap = map[uint64]int{}
	}
	return doc, nil
}
