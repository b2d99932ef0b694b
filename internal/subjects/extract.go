package subjects

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultExtension is the bulk-data archive suffix.
	DefaultExtension = ".zip"
	// DefaultDelimiter separates the identifier from the rest of a filename.
	DefaultDelimiter = "_"
	// DefaultMaxDepth limits how deep field directories are walked.
	DefaultMaxDepth = 2
)

// ArchiveOptions controls archive-file identifier extraction.
type ArchiveOptions struct {
	Extension string
	Delimiter string
	// MaxDepth counts directory levels below the root; 1 means only files
	// directly inside the root.
	MaxDepth int
}

func (o ArchiveOptions) withDefaults() ArchiveOptions {
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// IDFromFilename returns the identifier prefix of name, the text before the
// first delimiter. ok is false when the delimiter is absent or the prefix is
// empty.
func IDFromFilename(name, delimiter string) (string, bool) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	prefix, _, found := strings.Cut(name, delimiter)
	prefix = strings.TrimSpace(prefix)
	if !found || prefix == "" {
		return "", false
	}
	return prefix, true
}

// ExtractArchives collects identifiers from archive files below dirs.
// Directories that do not exist contribute nothing.
func ExtractArchives(dirs []string, opts ArchiveOptions) (List, error) {
	opts = opts.withDefaults()
	ext := strings.ToLower(opts.Extension)

	var ids []string
	for _, root := range dirs {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		found, err := walkArchives(root, ext, opts)
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return NewList(ids), nil
}

func walkArchives(root, ext string, opts ArchiveOptions) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat field directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("field directory %s is not a directory", root)
	}

	var ids []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}
		depth := depthBelow(root, path)
		if d.IsDir() {
			if path != root && depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > opts.MaxDepth || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(strings.ToLower(name), ext) {
			return nil
		}
		if id, ok := IDFromFilename(name, opts.Delimiter); ok {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// depthBelow returns how many path elements path sits below root. root itself
// is depth 0.
func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ExtractPrefixed lists dir without recursion and keeps entries named
// prefix+ID, returning the IDs. A missing directory yields an empty list.
func ExtractPrefixed(dir, prefix string) (List, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("prefix required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return List{}, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if id := strings.TrimPrefix(name, prefix); id != "" {
			ids = append(ids, id)
		}
	}
	return NewList(ids), nil
}

// ExtractPrefixedAll merges ExtractPrefixed over several directories.
func ExtractPrefixedAll(dirs []string, prefix string) (List, error) {
	merged := List{}
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		list, err := ExtractPrefixed(dir, prefix)
		if err != nil {
			return nil, err
		}
		merged = Union(merged, list)
	}
	return merged, nil
}

// ExtractMarked is ExtractPrefixedAll restricted to entries that contain at
// least one path matching the glob marker. An empty marker keeps every entry.
func ExtractMarked(dirs []string, prefix, marker string) (List, error) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return ExtractPrefixedAll(dirs, prefix)
	}
	if _, err := filepath.Match(marker, ""); err != nil {
		return nil, fmt.Errorf("marker %q: %w", marker, err)
	}
	merged := List{}
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		list, err := ExtractPrefixed(dir, prefix)
		if err != nil {
			return nil, err
		}
		kept := make([]string, 0, list.Len())
		for _, id := range list {
			matches, err := filepath.Glob(filepath.Join(dir, prefix+id, marker))
			if err != nil {
				return nil, fmt.Errorf("marker %q: %w", marker, err)
			}
			if len(matches) > 0 {
				kept = append(kept, id)
			}
		}
		merged = Union(merged, NewList(kept))
	}
	return merged, nil
}
