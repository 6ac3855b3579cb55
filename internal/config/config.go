// Package config holds the empirical constants that the query engine's
// adaptive algorithms dispatch on: the PHAST gating threshold, block size,
// K-lane width, the bounded-vs-batched cutoff, and the mode-indexed isochrone
// morphology table. pkg/engine reads the morphology table for isochrones;
// pkg/phast, pkg/batch and pkg/snap use their own constants and do not read
// the gating threshold, block size, lane width, cutoff or snap distance from
// here.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Morphology holds the isochrone rasterization parameters for one mode.
type Morphology struct {
	CellSizeM          float64 `yaml:"cell_size_m"`
	Dilation           int     `yaml:"dilation"`
	Erosion            int     `yaml:"erosion"`
	SimplifyToleranceM float64 `yaml:"simplify_tolerance_m"`
}

// Config is the full set of loadable engine thresholds.
type Config struct {
	GatingThreshold float64               `yaml:"gating_threshold"`
	BlockSize       int                   `yaml:"block_size"`
	KLanes          int                   `yaml:"k_lanes"`
	BatchedCutoffMs uint32                `yaml:"batched_cutoff_ms"`
	MaxSnapDistM    float64               `yaml:"max_snap_dist_m"`
	Morphology      map[string]Morphology `yaml:"morphology"`
}

// Default returns the shipped defaults, matching SPEC_FULL.md §4.
func Default() *Config {
	return &Config{
		GatingThreshold: 0.25,
		BlockSize:       4096,
		KLanes:          8,
		BatchedCutoffMs: 300_000,
		MaxSnapDistM:    500.0,
		Morphology: map[string]Morphology{
			"car":  {CellSizeM: 30, Dilation: 2, Erosion: 1, SimplifyToleranceM: 25},
			"bike": {CellSizeM: 40, Dilation: 2, Erosion: 1, SimplifyToleranceM: 30},
			"foot": {CellSizeM: 25, Dilation: 2, Erosion: 1, SimplifyToleranceM: 20},
		},
	}
}

// ForMode returns the morphology table entry for mode, falling back to "car"
// if the mode is unknown — a mode-indexed table rather than per-mode
// branches, per the spec's Design Notes.
func (c *Config) ForMode(mode string) Morphology {
	if m, ok := c.Morphology[mode]; ok {
		return m
	}
	return c.Morphology["car"]
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Store holds a hot-reloadable Config. The zero value is not usable; use
// NewStore or NewStaticStore.
type Store struct {
	cur     atomic.Pointer[Config]
	watcher *fsnotify.Watcher
}

// NewStaticStore wraps a fixed Config with no file watching — used in tests
// and whenever no config file is supplied, falling back to Default().
func NewStaticStore(cfg *Config) *Store {
	s := &Store{}
	if cfg == nil {
		cfg = Default()
	}
	s.cur.Store(cfg)
	return s
}

// NewStore loads path and watches it for changes, swapping the active
// Config atomically on write. Callers must call Close when done.
func NewStore(path string) (*Store, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.cur.Store(cfg)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		// Watching is a nicety, not a requirement: fall back to a static
		// config rather than failing startup over it.
		return s, nil
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return s, nil
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if newCfg, err := load(path); err == nil {
					s.cur.Store(newCfg)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return s, nil
}

// Get returns the currently active Config. Safe for concurrent use; never
// blocks on the watcher goroutine.
func (s *Store) Get() *Config {
	return s.cur.Load()
}

// Close stops the file watcher, if any.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
