package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
)

// imagePattern matches the chart files the chart tool writes.
const imagePattern = "*.{png,jpg,jpeg,gif,svg}"

// ImageHandler lists and serves generated charts.
type ImageHandler struct {
	dir string
}

func NewImageHandler(dir string) *ImageHandler {
	return &ImageHandler{dir: dir}
}

// List handles GET /images
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := ListImages(h.dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list images: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// Get handles GET /images/{filename}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || name == ".." {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	f, err := os.Open(filepath.Join(h.dir, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// ListImages returns the sorted chart file names in dir. A missing dir is empty.
func ListImages(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), imagePattern, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	names = append(names, matches...)
	sort.Strings(names)
	return names, nil
}
