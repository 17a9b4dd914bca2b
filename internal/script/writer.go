package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/scrubber/internal/system"
)

// Write saves a script as YAML.
func Write(s *Script, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads and validates a YAML script.
func Read(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return &s, nil
}

// FindLatest returns the most recently modified .yaml or .yml script in dir.
func FindLatest(dir string) (string, error) {
	return system.FindLatestFile(dir, ".yaml", ".yml")
}
