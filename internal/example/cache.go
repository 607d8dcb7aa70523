// Package example persists the most recent upload so it can be replayed
// without re-running the analysis.
package example

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RRaffay/Finance-Data-Agent/internal/models"
)

const (
	AnalysisFile      = "example_analysis.json"
	TreeFile          = "example_tree.json"
	ObjectiveFile     = "objective.txt"
	SystemMessageFile = "system_message.txt"
	ManifestFile      = "manifest.yaml"
)

// ErrNotFound is returned when no example has been recorded.
var ErrNotFound = errors.New("no example recorded")

// Cache stores one ExampleRecord in a directory. Last write wins.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Save overwrites the stored example with rec.
func (c *Cache) Save(rec *models.ExampleRecord, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create example dir: %w", err)
	}

	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if !json.Valid(rec.Tree) {
		return fmt.Errorf("save example: tree is not valid JSON")
	}

	files := []struct {
		name string
		data []byte
	}{
		{AnalysisFile, analysis},
		{TreeFile, rec.Tree},
		{ObjectiveFile, []byte(rec.Objective)},
		{SystemMessageFile, []byte(rec.SystemMessage)},
	}
	for _, f := range files {
		if err := os.WriteFile(c.path(f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	manifest := models.ExampleManifest{
		SessionID:  sessionID,
		RecordedAt: time.Now().UTC(),
		Files: map[string]string{
			"analysis":       AnalysisFile,
			"tree":           TreeFile,
			"objective":      ObjectiveFile,
			"system_message": SystemMessageFile,
		},
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(c.path(ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads the stored example. It returns ErrNotFound if nothing was saved.
func (c *Cache) Load() (*models.ExampleRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(c.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}

	rec := &models.ExampleRecord{}

	data, err := read(AnalysisFile)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &rec.Analysis); err != nil {
		return nil, fmt.Errorf("decode %s: %w", AnalysisFile, err)
	}

	if rec.Tree, err = read(TreeFile); err != nil {
		return nil, err
	}
	objective, err := read(ObjectiveFile)
	if err != nil {
		return nil, err
	}
	system, err := read(SystemMessageFile)
	if err != nil {
		return nil, err
	}
	rec.Objective = string(objective)
	rec.SystemMessage = string(system)
	return rec, nil
}

// Manifest returns the sidecar written by the last Save.
func (c *Cache) Manifest() (*models.ExampleManifest, error) {
	data, err := os.ReadFile(c.path(ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.ExampleManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}
