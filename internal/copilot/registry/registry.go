// Package registry holds the reloadable action and dataset definitions
// backed by durable JSON-array files. Reads always go back to the file so a
// freshly appended definition is visible to every reader; the in-memory list
// set by SetList is an advisory cache only.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/waffles-copilot/server/internal/copilot/model"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// readList loads a JSON array file, degrading to an empty list when the file
// is missing or malformed. Callers never see a read error.
func readList[T any](path string) []T {
	data, err := os.ReadFile(path)
	if err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("failed to read registry file")
		return []T{}
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		logx.Warn().Err(err).Str("path", path).Msg("registry file is not a JSON array")
		return []T{}
	}
	return list
}

// writeList re-serializes the full list. The write is not atomic across
// processes; within this process appends are serialized by the registry
// mutex.
func writeList[T any](path string, list []T) error {
	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal registry list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}

// ActionRegistry is the reloadable action-definition mapping.
type ActionRegistry struct {
	mu    sync.Mutex
	path  string
	cache []model.ActionDefinition
}

func NewActionRegistry(path string) *ActionRegistry {
	return &ActionRegistry{path: path}
}

// List re-reads the durable file on every call.
func (r *ActionRegistry) List() []model.ActionDefinition {
	return readList[model.ActionDefinition](r.path)
}

// SetList replaces the in-memory cached copy only; callers persist
// separately.
func (r *ActionRegistry) SetList(list []model.ActionDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = list
}

// Cached returns the advisory snapshot last set by SetList.
func (r *ActionRegistry) Cached() []model.ActionDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache
}

// Append reads the durable list, appends the definition, writes the file
// back and refreshes the cache. Appends within this process are serialized;
// a concurrent writer in another process can still lose the race.
func (r *ActionRegistry) Append(def model.ActionDefinition) ([]model.ActionDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := readList[model.ActionDefinition](r.path)
	list = append(list, def)
	if err := writeList(r.path, list); err != nil {
		return nil, err
	}
	r.cache = list
	logx.Info().Str("action", def.ActionName).Int("total", len(list)).Msg("action appended to registry")
	return list, nil
}

// DatasetRegistry is the reloadable dataset-definition mapping. Relative
// dataset paths resolve against baseDir at load time.
type DatasetRegistry struct {
	mu      sync.Mutex
	path    string
	baseDir string
	cache   []model.DatasetDefinition
}

func NewDatasetRegistry(path, baseDir string) *DatasetRegistry {
	return &DatasetRegistry{path: path, baseDir: baseDir}
}

// List re-reads the durable file and resolves each entry's path. A missing
// CSV file is a warning, not an error.
func (r *DatasetRegistry) List() []model.DatasetDefinition {
	list := readList[model.DatasetDefinition](r.path)
	for i := range list {
		rel := list[i].DatabasePath
		if rel == "" {
			logx.Warn().Str("dataset", list[i].DatabaseName).Msg("dataset entry has no path")
			continue
		}
		abs := rel
		if !filepath.IsAbs(rel) {
			abs, _ = filepath.Abs(filepath.Join(r.baseDir, rel))
		}
		list[i].ResolvedPath = abs
		if _, err := os.Stat(abs); err != nil {
			logx.Warn().Str("dataset", list[i].DatabaseName).Str("path", abs).Msg("dataset file does not exist")
		}
	}
	return list
}

// SetList replaces the in-memory cached copy only.
func (r *DatasetRegistry) SetList(list []model.DatasetDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = list
}

// Cached returns the advisory snapshot last set by SetList.
func (r *DatasetRegistry) Cached() []model.DatasetDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache
}

// Append reads, appends, writes back and refreshes the cache.
func (r *DatasetRegistry) Append(def model.DatasetDefinition) ([]model.DatasetDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := readList[model.DatasetDefinition](r.path)
	list = append(list, def)
	if err := writeList(r.path, list); err != nil {
		return nil, err
	}
	r.cache = list
	logx.Info().Str("dataset", def.DatabaseName).Int("total", len(list)).Msg("dataset appended to registry")
	return list, nil
}
