package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".linegpt"

// Paths holds resolved filesystem paths for linegpt data.
type Paths struct {
	Base     string // ~/.linegpt
	Config   string // ~/.linegpt/config.yaml
	Env      string // ~/.linegpt/.env
	Data     string // ~/.linegpt/data
	Logs     string // ~/.linegpt/logs
	Database string // ~/.linegpt/data/linegpt.db
}

// ResolvePaths computes all standard paths from the home directory.
// If LINEGPT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("LINEGPT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Env:      filepath.Join(base, ".env"),
		Data:     data,
		Logs:     filepath.Join(base, "logs"),
		Database: filepath.Join(data, "linegpt.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the configured sqlite path, falling back to the
// standard location under the data directory.
func (p Paths) DatabasePath(cfg *Config) string {
	if cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	return p.Database
}

// ParseConfigPath splits a dot-separated config key such as
// "memory.windowSize" into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment: " + raw}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	parent, ok := walk(root, path[:len(path)-1], false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath sets a value in a nested map, creating or replacing
// intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := walk(root, path[:len(path)-1], true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := walk(root, path[:len(path)-1], false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// walk descends through nested maps. With create set, missing or non-map
// segments are replaced by empty maps.
func walk(root map[string]any, segments []string, create bool) (map[string]any, bool) {
	current := root
	for _, key := range segments {
		next, ok := current[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	return current, true
}
