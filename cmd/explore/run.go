package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/azybler/cchroute/pkg/cache"
	"github.com/azybler/cchroute/pkg/cch"
	"github.com/azybler/cchroute/pkg/engine"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"})
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D80000", Dark: "#FF5555"})
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#BFBFBF"})
)

// resultMsg carries the outcome of the query back to Update, once the
// goroutine started in Init's tea.Cmd finishes.
type resultMsg struct {
	body string
	err  error
}

// runModel drives a single query's "running... -> results" screen: a
// spinner bubble during the (typically sub-second, but potentially
// sweep-sized) PHAST/matrix/isochrone work, replaced by the rendered
// result once it completes.
type runModel struct {
	eng   *engine.Engine
	store *cache.Cache
	q     query

	spinner spinner.Model
	done    bool
	result  string
	err     error
}

func newRunModel(eng *engine.Engine, store *cache.Cache, q query) runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return runModel{eng: eng, store: store, q: q, spinner: s}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.execute)
}

// execute runs the selected Boundary API call synchronously inside a
// tea.Cmd goroutine and reports back via resultMsg, the same
// spinner-plus-background-work shape bubbletea's own examples use for
// long-running commands.
func (m runModel) execute() tea.Msg {
	switch m.q.Op {
	case opP2P:
		return m.runP2P()
	case opPHAST:
		return m.runPHAST()
	case opMatrix:
		return m.runMatrix()
	case opIsochrone:
		return m.runIsochrone()
	}
	return resultMsg{err: fmt.Errorf("explore: unknown operation %q", m.q.Op)}
}

func (m runModel) runP2P() tea.Msg {
	res, ok, err := m.eng.P2P(context.Background(), m.q.Mode, m.q.SrcFiltered, m.q.DstFiltered)
	if err != nil {
		return resultMsg{err: err}
	}
	if !ok {
		return resultMsg{body: "no route found"}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "distance: %d ds\n", res.DistanceDs)
	fmt.Fprintf(&b, "ebg path (%d edges): %v\n", len(res.EBGPath), res.EBGPath)
	fmt.Fprintf(&b, "polyline (%d points):\n", len(res.Polyline))
	for i, p := range res.Polyline {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... %d more\n", len(res.Polyline)-i)
			break
		}
		lat, lon := p.ToDegrees()
		fmt.Fprintf(&b, "  %.6f, %.6f\n", lat, lon)
	}
	return resultMsg{body: b.String()}
}

func (m runModel) runPHAST() tea.Msg {
	origin, err := m.eng.Snap(m.q.Mode, m.q.OriginLat, m.q.OriginLon)
	if err != nil {
		return resultMsg{err: err}
	}
	originRank, err := m.eng.FilteredToRank(m.q.Mode, origin.FilteredID)
	if err != nil {
		return resultMsg{err: err}
	}

	var threshold *uint32
	if m.q.Bounded {
		thresholdDs := m.q.ThresholdMs / 100
		threshold = &thresholdDs
	}
	dist, err := m.eng.PHAST(m.q.Mode, originRank, threshold)
	if err != nil {
		return resultMsg{err: err}
	}

	reachable := 0
	for _, d := range dist {
		if d != cch.MaxWeight {
			reachable++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "snapped origin: filtered id %d, rank %d (%.1fm away)\n", origin.FilteredID, originRank, origin.Dist)
	fmt.Fprintf(&b, "distances computed for %d nodes, %d reachable\n", len(dist), reachable)
	return resultMsg{body: b.String()}
}

func (m runModel) runMatrix() tea.Msg {
	sourcesRank, err := m.snapAndRank(m.q.SourcesLat, m.q.SourcesLon)
	if err != nil {
		return resultMsg{err: err}
	}
	targetsRank, err := m.snapAndRank(m.q.TargetsLat, m.q.TargetsLon)
	if err != nil {
		return resultMsg{err: err}
	}

	table, err := m.eng.Matrix(m.q.Mode, sourcesRank, targetsRank)
	if err != nil {
		return resultMsg{err: err}
	}

	var b strings.Builder
	for i, row := range table {
		fmt.Fprintf(&b, "source %d: %v\n", i, row)
	}
	return resultMsg{body: b.String()}
}

func (m runModel) snapAndRank(lats, lons []float64) ([]uint32, error) {
	ranks := make([]uint32, len(lats))
	for i := range lats {
		snapped, err := m.eng.Snap(m.q.Mode, lats[i], lons[i])
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		rank, err := m.eng.FilteredToRank(m.q.Mode, snapped.FilteredID)
		if err != nil {
			return nil, err
		}
		ranks[i] = rank
	}
	return ranks, nil
}

func (m runModel) runIsochrone() tea.Msg {
	origin, err := m.eng.Snap(m.q.Mode, m.q.OriginLat, m.q.OriginLon)
	if err != nil {
		return resultMsg{err: err}
	}
	originRank, err := m.eng.FilteredToRank(m.q.Mode, origin.FilteredID)
	if err != nil {
		return resultMsg{err: err}
	}

	body, err := m.eng.CachedIsochrone(m.store, m.q.Mode, originRank, m.q.ThresholdMs)
	if err != nil {
		return resultMsg{err: err}
	}

	res, err := m.eng.Isochrone(m.q.Mode, originRank, m.q.ThresholdMs)
	if err != nil {
		return resultMsg{err: err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "outer ring: %d vertices, %d holes\n", len(res.OuterRing), len(res.Holes))
	fmt.Fprintf(&b, "stats: %+v\n", res.Stats)
	fmt.Fprintf(&b, "geojson: %d bytes\n", len(body))
	return resultMsg{body: b.String()}
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}
		return m, nil
	case resultMsg:
		m.done = true
		m.result = msg.body
		m.err = msg.err
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m runModel) View() string {
	if !m.done {
		return fmt.Sprintf("%s running %s on %q...\n", m.spinner.View(), m.q.Op, m.q.Mode)
	}
	if m.err != nil {
		return titleStyle.Render(string(m.q.Op)) + "\n" + errStyle.Render(m.err.Error()) + "\n" + dimStyle.Render("press any key to continue")
	}
	return titleStyle.Render(string(m.q.Op)) + "\n" + m.result + dimStyle.Render("press any key to continue")
}
