package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// Premise operations (filesystem-backed). Premises are authored YAML
// files under <dataDir>/premises; the filename without extension is the
// premise ID.

func (r *RedisStorage) ListPremises(ctx context.Context) (map[string]string, error) {
	premisesDir := filepath.Join(r.dataDir, "premises")
	premises := make(map[string]string)

	err := filepath.WalkDir(premisesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		file, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("Failed to read premise file", "path", path, "error", err)
			return nil
		}

		var p narrative.Premise
		if err := yaml.Unmarshal(file, &p); err != nil {
			r.logger.Warn("Failed to unmarshal premise file", "path", path, "error", err)
			return nil
		}

		id := premiseIDFromPath(path)
		premises[id] = p.DisplayTitle()
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk premises directory", "error", err)
		return nil, fmt.Errorf("failed to list premises: %w", err)
	}

	return premises, nil
}

func (r *RedisStorage) GetPremise(ctx context.Context, id string) (*narrative.Premise, error) {
	path := filepath.Join(r.dataDir, "premises", id+".yaml")

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("premise not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read premise file: %w", err)
	}

	var p narrative.Premise
	if err := yaml.Unmarshal(file, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal premise: %w", err)
	}
	p.ID = id // ID always comes from the filename

	return &p, nil
}

func premiseIDFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
