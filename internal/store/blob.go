package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobDir keeps uploaded files in a flat directory and hands back a
// reference path. The session core never touches the bytes again.
type BlobDir struct {
	root string
}

func NewBlobDir(root string) (*BlobDir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobDir{root: root}, nil
}

func (b *BlobDir) Put(name string, data []byte) (string, error) {
	ref := uuid.NewString() + "_" + sanitize(name)
	if err := os.WriteFile(filepath.Join(b.root, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

// sanitize strips path separators so a file name can never escape the
// blob directory.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	if name == "." || name == ".." || name == "" {
		return "upload"
	}
	return name
}
