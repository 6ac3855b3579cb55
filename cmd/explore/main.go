// Command explore is a bubbletea TUI for poking at a loaded engine.Engine
// directly: point-to-point routes, one-to-all PHAST sweeps, many-to-many
// matrices, and isochrone polygons, against a CCH artifact set already
// produced by an (out-of-scope) offline contractor.
//
// It is a debug/test-tooling client, not a production API surface —
// spec.md §1's HTTP server, OSM ingestion, and CLI are all out of scope;
// this exists only to exercise pkg/engine's Boundary API interactively.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/azybler/cchroute/internal/config"
	"github.com/azybler/cchroute/pkg/cache"
	"github.com/azybler/cchroute/pkg/engine"
)

func main() {
	dir := flag.String("dir", ".", "directory holding the loaded artifact set")
	modesFlag := flag.String("modes", "car", "comma-separated mode names to load (cch.<mode>.topo etc.)")
	cfgPath := flag.String("config", "", "path to a morphology/threshold config YAML (optional, hot-reloaded)")
	cachePath := flag.String("cache", ":memory:", "SQLite path for the isochrone memoization cache")
	flag.Parse()

	var modeNames []string
	for _, m := range strings.Split(*modesFlag, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modeNames = append(modeNames, m)
		}
	}

	eng, cfg, err := loadEngine(*dir, modeNames, *cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "explore: %v\n", err)
		os.Exit(1)
	}
	defer cfg.Close()

	store, err := cache.Open(*cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "explore: open cache: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	for {
		q, err := promptQuery(modeNames)
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("goodbye")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "explore: %v\n", err)
			continue
		}

		if err := runTUIProgram(newRunModel(eng, store, q)); err != nil {
			fmt.Fprintf(os.Stderr, "explore: %v\n", err)
		}
	}
}

// loadEngine assembles the ModePaths naming convention spec.md §6 fixes for
// the six on-disk artifacts and hands them to engine.Load.
func loadEngine(dir string, modes []string, cfgPath string) (*engine.Engine, *config.Store, error) {
	modePaths := make(map[string]engine.ModePaths, len(modes))
	for _, name := range modes {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		modePaths[name] = engine.ModePaths{
			Topo:        filepath.Join(dir, fmt.Sprintf("cch.%s.topo", name)),
			Weights:     filepath.Join(dir, fmt.Sprintf("cch.w.%s.u32", name)),
			Filtered:    filepath.Join(dir, fmt.Sprintf("filtered.%s.ebg", name)),
			EdgeWeights: filepath.Join(dir, fmt.Sprintf("w.%s.u32", name)),
		}
	}
	if len(modePaths) == 0 {
		return nil, nil, errors.New("no modes given (-modes)")
	}

	var cfg *config.Store
	var err error
	if cfgPath != "" {
		cfg, err = config.NewStore(cfgPath)
	} else {
		cfg = config.NewStaticStore(nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	eng, err := engine.Load(filepath.Join(dir, "ebg.nodes"), filepath.Join(dir, "nbg.geo"), modePaths, cfg)
	if err != nil {
		cfg.Close()
		return nil, nil, fmt.Errorf("load artifacts from %s: %w", dir, err)
	}
	return eng, cfg, nil
}

// runTUIProgram mirrors the teacher pack's own signal-handling wrapper
// around tea.Program.Run: Ctrl-C/SIGTERM quits the program cleanly rather
// than killing the process mid-render.
func runTUIProgram(m tea.Model) error {
	p := tea.NewProgram(m)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-sigCh:
			p.Quit()
		}
	}()

	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
