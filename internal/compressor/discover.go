package compressor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"image-compressor-go/internal/logger"

	"github.com/sirupsen/logrus"
)

// imageExtensions is the fixed allow-list of discovered files (lowercase, with leading dot).
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether the file name has a supported extension, ignoring case.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Discover walks root recursively and returns the regular files with a
// supported extension, in traversal order. Directories in exclude are pruned,
// leftover temporary outputs are ignored and unreadable entries are logged
// and skipped. A missing root yields ErrDirectoryNotFound.
func Discover(log *logrus.Entry, root string, exclude ...string) ([]string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, dir := range exclude {
		if abs, err := filepath.Abs(dir); err == nil {
			skip[abs] = true
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.WithFileOperation(log, path, "discover").Warnf("Skipping unreadable entry: %v", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if len(skip) > 0 && path != root {
				if abs, err := filepath.Abs(path); err == nil && skip[abs] {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			logger.WithFileOperation(log, path, "discover").Debug("Ignoring temporary output")
			return nil
		}
		if IsImageFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
