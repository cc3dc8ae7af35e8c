// Package config handles r8lower.toml compilation options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the options file.
const FileName = "r8lower.toml"

// Target is the output code form.
type Target string

const (
	TargetDex Target = "dex"
	TargetCf  Target = "cf"
)

// Options represents an r8lower.toml file.
type Options struct {
	Compilation Compilation `toml:"compilation"`
	Naming      Naming      `toml:"naming"`
	Output      Output      `toml:"output"`

	// Dir is the directory containing the options file (set at load time).
	Dir string `toml:"-"`
}

// Compilation configures the backend.
type Compilation struct {
	Target    Target `toml:"target"`
	Workers   int    `toml:"workers"`
	Verbosity int    `toml:"verbosity"`
}

// Naming points at the rename table.
type Naming struct {
	Mapping string `toml:"mapping"`
}

// Output configures artifacts written next to the code.
type Output struct {
	Snapshot string `toml:"snapshot"`
	UsesLog  string `toml:"uses-log"`
}

// Default returns the options used when no file is present.
func Default() *Options {
	o := &Options{}
	o.ApplyDefaults()
	return o
}

// ApplyDefaults fills in an unset target and a non-positive worker count.
func (o *Options) ApplyDefaults() {
	if o.Compilation.Target == "" {
		o.Compilation.Target = TargetDex
	}
	if o.Compilation.Workers <= 0 {
		o.Compilation.Workers = runtime.GOMAXPROCS(0)
	}
}

// Load parses the options file in dir.
func Load(dir string) (*Options, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var o Options
	if err := toml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	o.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	o.ApplyDefaults()
	switch o.Compilation.Target {
	case TargetDex, TargetCf:
	default:
		return nil, fmt.Errorf("%s: unknown target %q", path, o.Compilation.Target)
	}
	return &o, nil
}

// FindAndLoad walks up from startDir to find an options file, then loads
// it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Options, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes a configured path absolute against the options directory.
func (o *Options) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || o.Dir == "" {
		return p
	}
	return filepath.Join(o.Dir, p)
}

// MappingPath returns the rename table path, or "" when none is configured.
func (o *Options) MappingPath() string { return o.resolve(o.Naming.Mapping) }

// SnapshotPath returns the pool snapshot path, or "".
func (o *Options) SnapshotPath() string { return o.resolve(o.Output.Snapshot) }

// UsesLogPath returns the use log path, or "".
func (o *Options) UsesLogPath() string { return o.resolve(o.Output.UsesLog) }
