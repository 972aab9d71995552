// Package manifest handles leap.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/leap/leap"
)

// FileName is the name of the manifest file.
const FileName = "leap.toml"

// Defaults applied by Load.
const (
	DefaultSourceDir  = "src"
	DefaultCachePath  = ".leap/cache.db"
	DefaultServerAddr = "127.0.0.1:7420"
	SourceExt         = ".leap"
)

// Manifest represents a leap.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	Limits  Limits      `toml:"limits"`
	Debug   Debug       `toml:"debug"`
	Cache   Cache       `toml:"cache"`
	Server  Server      `toml:"server"`
	Image   ImageConfig `toml:"image"`

	// Dir is the directory containing the leap.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures assembly source locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Limits caps the markers allowed per function. Zero means the default.
type Limits struct {
	MaxLabels int `toml:"max-labels"`
	MaxGotos  int `toml:"max-gotos"`
}

// Debug configures the rewrite trace.
type Debug struct {
	Trace bool `toml:"trace"`
}

// Cache configures the rewrite cache.
type Cache struct {
	// Path is the SQLite database file, relative to the project directory.
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// Server configures `leap serve`.
type Server struct {
	Addr string `toml:"addr"`
}

// ImageConfig configures image output.
type ImageConfig struct {
	Output string `toml:"output"`
}

// Load parses a leap.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Limits.MaxLabels < 0 || m.Limits.MaxGotos < 0 {
		return nil, fmt.Errorf("%s: limits must not be negative", path)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{DefaultSourceDir}
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultServerAddr
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a leap.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options converts the manifest settings to compiler options.
func (m *Manifest) Options() []leap.Option {
	return []leap.Option{
		leap.WithMaxLabels(m.Limits.MaxLabels),
		leap.WithMaxGotos(m.Limits.MaxGotos),
		leap.WithDebug(m.Debug.Trace),
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// SourceFiles returns every assembly file in the source directories,
// sorted.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == SourceExt {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// CachePath returns the absolute path of the rewrite cache, or "" when the
// cache is disabled.
func (m *Manifest) CachePath() string {
	if m.Cache.Disabled {
		return ""
	}
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

// ImagePath returns the absolute path for image output, defaulting to
// <project name>.leapc.
func (m *Manifest) ImagePath() string {
	out := m.Image.Output
	if out == "" {
		name := m.Project.Name
		if name == "" {
			name = filepath.Base(m.Dir)
		}
		out = name + ".leapc"
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.Dir, out)
}
