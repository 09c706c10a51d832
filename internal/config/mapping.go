package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nholik/space-sentinel/internal/space"
	"gopkg.in/yaml.v3"
)

// TargetsFile is the parsed YAML structure for listing spaces:
// spaces: [{name, owner}]
type TargetsFile struct {
	Spaces []space.Target `yaml:"spaces"`
}

// LoadTargetsFile parses a YAML targets file. Entries without an owner inherit defaultOwner.
func LoadTargetsFile(path, defaultOwner string) ([]space.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	targets := make([]space.Target, 0, len(tf.Spaces))
	for i, t := range tf.Spaces {
		t.Name = strings.TrimSpace(t.Name)
		t.Owner = strings.TrimSpace(t.Owner)
		if t.Name == "" {
			return nil, fmt.Errorf("space %d: name is required", i)
		}
		if t.Owner == "" {
			t.Owner = defaultOwner
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// validateTargets rejects malformed names and duplicates.
func validateTargets(targets []space.Target) error {
	seen := make(map[space.Target]bool, len(targets))
	for _, t := range targets {
		if strings.Contains(t.Name, "/") || strings.Contains(t.Owner, "/") {
			return fmt.Errorf("space %q: owner and name cannot contain '/'", t.ID())
		}
		if seen[t] {
			return fmt.Errorf("space %q: duplicate", t.ID())
		}
		seen[t] = true
	}
	return nil
}
