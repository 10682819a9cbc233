// Package configutil loads the json5 configuration files the binaries
// and the telemetry setup read, with optional machine-local overrides.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localVariant turns "mlol.json5" into "mlol.local.json5".
func localVariant(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readFile[T any](path string, out *T) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) || len(raw) == 0 {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json5.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig loads `name` and, when a sibling `<base>.local.<ext>` file
// exists, merges it on top. Local values win field by field, so secrets
// can live in an untracked override next to the checked-in defaults.
// Returns os.ErrNotExist when neither file is present.
func ReadConfig[T any](name string) (T, error) {
	var config T

	found, err := readFile(name, &config)
	if err != nil {
		return config, err
	}

	localPath := localVariant(name)
	var local T
	foundLocal, err := readFile(localPath, &local)
	if err != nil {
		return config, err
	}
	if foundLocal {
		if err := mergo.Merge(&config, local, mergo.WithOverride); err != nil {
			return config, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return config, os.ErrNotExist
	}
	return config, nil
}

// ReadRecursively looks for `name` in the working directory and then in
// each parent up to the filesystem root, reading the first match. Lets
// tests and tools run from anywhere inside the repo.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
