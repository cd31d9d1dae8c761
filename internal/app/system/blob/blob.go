// Package blob stores uploaded report media on local disk. Stored
// names are generated, never caller-controlled, and all paths are
// confined to the configured root directory.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the attachment storage surface.
type Store interface {
	// Put writes the content under the given stored name.
	Put(ctx context.Context, name string, r io.Reader) error
	// Open returns the content of a stored file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes a stored file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, name string) error
}

// Local is a Store rooted at a directory on local disk.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns a Local store.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// StoredName derives a unique stored name for an upload, keyed by date
// so directories stay small: YYYY/MM/uuid-cleanedname.
func StoredName(original string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%04d/%02d/%s-%s", now.Year(), now.Month(), uuid.NewString()[:8], cleanFilename(original))
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob: mkdir for %s: %w", name, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("blob: create %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return fmt.Errorf("blob: write %s: %w", name, err)
	}
	return nil
}

func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blob: open %s: %w", name, err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete %s: %w", name, err)
	}
	return nil
}

// resolve joins name under root and refuses traversal outside it.
func (l *Local) resolve(name string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(name))
	rootAbs, err := filepath.Abs(l.root)
	if err != nil {
		return "", err
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: name %q escapes storage root", name)
	}
	return path, nil
}

func cleanFilename(filename string) string {
	filename = filepath.Base(filename)
	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
