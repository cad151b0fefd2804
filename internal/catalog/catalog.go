// Package catalog discovers local models and owns the process-wide active
// provider slot, including the model switch state machine.
package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model describes one entry of the local model catalog.
type Model struct {
	// ID is the model directory name.
	ID string `json:"model_id"`

	// DisplayName is the human-readable name from config.json, falling
	// back to the directory name.
	DisplayName string `json:"display_name"`

	// HasConfig reports a readable config.json. Scan only lists entries
	// that have one.
	HasConfig bool `json:"has_config"`

	// Path is the absolute model directory path.
	Path string `json:"-"`
}

// Scan lists the valid models under modelsDir: immediate subdirectories
// with a safe name and a readable config.json, sorted case-insensitively.
// The directory is read fresh on every call; a missing directory yields an
// empty catalog.
func Scan(modelsDir string) []Model {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("model catalog scan failed", "dir", modelsDir, "error", err)
		}
		return nil
	}

	var out []Model
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if err := ValidateID(id); err != nil {
			continue
		}
		dir := filepath.Join(modelsDir, id)
		f, err := os.Open(filepath.Join(dir, "config.json"))
		if err != nil {
			continue
		}
		name := displayName(f)
		f.Close()
		if name == "" {
			name = id
		}
		out = append(out, Model{ID: id, DisplayName: name, HasConfig: true, Path: dir})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].ID) < strings.ToLower(out[j].ID)
	})
	return out
}

// displayName extracts the human-readable name from a config.json stream.
// Returns "" when the file has none or does not parse.
func displayName(r io.Reader) string {
	var cfg struct {
		DisplayName string `json:"display_name"`
		Name        string `json:"name"`
	}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return ""
	}
	if cfg.DisplayName != "" {
		return cfg.DisplayName
	}
	return cfg.Name
}
