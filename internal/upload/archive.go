// Package upload stores uploaded archives and extracts them for tree building.
package upload

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyFilename is returned when a filename sanitizes to nothing.
	ErrEmptyFilename = errors.New("no selected file")
	// ErrNotZip is returned for uploads that are not zip archives.
	ErrNotZip = errors.New("file is not a zip archive")
	// ErrUnsafePath is returned for archive entries that would land outside the target.
	ErrUnsafePath = errors.New("archive entry escapes target directory")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces name to a safe base name: ASCII letters, digits,
// '_', '.', and '-', with whitespace collapsed to '_'.
func SanitizeFilename(name string) (string, error) {
	name = norm.NFKD.String(name)
	var ascii strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}
	name = ascii.String()
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "", ErrEmptyFilename
	}
	return name, nil
}

// Store lays out uploads under a root directory, one directory per upload.
type Store struct {
	root     string
	maxBytes int64
}

// NewStore creates a store under root. maxBytes caps the total extracted size.
func NewStore(root string, maxBytes int64) *Store {
	return &Store{root: root, maxBytes: maxBytes}
}

// Extracted describes one saved and extracted upload.
type Extracted struct {
	ID      string
	Archive string
	Root    string
}

// Save writes r as filename into a fresh upload directory and extracts it.
// Root is the archive's top-level folder when it has exactly one, else the
// extraction directory.
func (s *Store) Save(filename string, r io.Reader) (*Extracted, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return nil, ErrNotZip
	}

	id := ulid.Make().String()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	archive := filepath.Join(dir, name)
	if err := writeFile(archive, r); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	target := filepath.Join(dir, "files")
	if err := Extract(archive, target, s.maxBytes); err != nil {
		return nil, err
	}

	root, err := topLevel(target)
	if err != nil {
		return nil, err
	}
	return &Extracted{ID: id, Archive: archive, Root: root}, nil
}

// Extract unpacks the zip at archive into target, rejecting entries that
// resolve outside target and stopping once maxBytes have been written.
// A non-positive maxBytes disables the limit.
func Extract(archive, target string, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = math.MaxInt64 - 1
	}
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return ErrUnsafePath
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	defer zr.Close()

	base, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("create extract dir: %w", err)
	}

	var written int64
	for _, f := range zr.File {
		dest := filepath.Join(base, f.Name)
		if dest != base && !strings.HasPrefix(dest, base+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		case !mode.IsRegular():
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		n, err := extractFile(f, dest, maxBytes-written)
		if err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written += n
	}
	return nil
}

// ErrTooLarge is returned once extraction passes the size limit.
var ErrTooLarge = errors.New("archive exceeds size limit")

func extractFile(f *zip.File, dest string, remaining int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, remaining+1))
	if err != nil {
		return n, err
	}
	if n > remaining {
		return n, ErrTooLarge
	}
	return n, nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// topLevel returns dir's only visible subdirectory, or dir itself.
func topLevel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var only string
	for _, e := range entries {
		if e.Name() == "__MACOSX" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.IsDir() || only != "" {
			return dir, nil
		}
		only = e.Name()
	}
	if only == "" {
		return dir, nil
	}
	return filepath.Join(dir, only), nil
}
