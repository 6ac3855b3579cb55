package main

import (
	"strconv"

	"github.com/charmbracelet/huh"
)

// opKind names which Boundary API call a query exercises.
type opKind string

const (
	opP2P       opKind = "p2p"
	opPHAST     opKind = "phast"
	opMatrix    opKind = "matrix"
	opIsochrone opKind = "isochrone"
)

// query is the fully-collected input for one run of the TUI's result
// screen; exactly one of its operation-specific fields is meaningful,
// selected by Op.
type query struct {
	Op   opKind
	Mode string

	// p2p
	SrcFiltered, DstFiltered uint32

	// phast / isochrone shared origin
	OriginLat, OriginLon float64
	Bounded              bool
	ThresholdMs          uint32

	// matrix
	SourcesLat, SourcesLon []float64
	TargetsLat, TargetsLon []float64
}

// promptQuery runs the sequence of huh forms that collects one query. It
// returns huh.ErrUserAborted (wrapped via errors.Is) when the user backs
// out of the first group, the same cancellation signal the teacher pack's
// own wizard propagates from form.Run().
func promptQuery(modes []string) (query, error) {
	var q query
	opOptions := []huh.Option[opKind]{
		huh.NewOption("Point-to-point route (p2p)", opP2P),
		huh.NewOption("One-to-all sweep (phast)", opPHAST),
		huh.NewOption("Many-to-many matrix", opMatrix),
		huh.NewOption("Isochrone polygon", opIsochrone),
	}
	modeOptions := make([]huh.Option[string], len(modes))
	for i, m := range modes {
		modeOptions[i] = huh.NewOption(m, m)
	}
	if len(modeOptions) > 0 {
		q.Mode = modes[0]
	}

	opForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[opKind]().
				Title("What do you want to run?").
				Options(opOptions...).
				Value(&q.Op),
			huh.NewSelect[string]().
				Title("Mode").
				Options(modeOptions...).
				Value(&q.Mode),
		),
	)
	if err := opForm.Run(); err != nil {
		return query{}, err
	}

	switch q.Op {
	case opP2P:
		if err := promptP2P(&q); err != nil {
			return query{}, err
		}
	case opPHAST:
		if err := promptPHAST(&q); err != nil {
			return query{}, err
		}
	case opMatrix:
		if err := promptMatrix(&q); err != nil {
			return query{}, err
		}
	case opIsochrone:
		if err := promptIsochrone(&q); err != nil {
			return query{}, err
		}
	}
	return q, nil
}

func promptP2P(q *query) error {
	var srcStr, dstStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Source filtered-EBG id").Value(&srcStr).Validate(validateUint),
			huh.NewInput().Title("Destination filtered-EBG id").Value(&dstStr).Validate(validateUint),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	src, _ := strconv.ParseUint(srcStr, 10, 32)
	dst, _ := strconv.ParseUint(dstStr, 10, 32)
	q.SrcFiltered, q.DstFiltered = uint32(src), uint32(dst)
	return nil
}

func promptPHAST(q *query) error {
	var latStr, lonStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Origin latitude").Value(&latStr).Validate(validateFloat),
			huh.NewInput().Title("Origin longitude").Value(&lonStr).Validate(validateFloat),
			huh.NewConfirm().Title("Bound to a threshold?").Value(&q.Bounded),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	q.OriginLat, _ = strconv.ParseFloat(latStr, 64)
	q.OriginLon, _ = strconv.ParseFloat(lonStr, 64)
	if q.Bounded {
		var thStr string
		thForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Threshold (ms)").Value(&thStr).Validate(validateUint),
			),
		)
		if err := thForm.Run(); err != nil {
			return err
		}
		th, _ := strconv.ParseUint(thStr, 10, 32)
		q.ThresholdMs = uint32(th)
	}
	return nil
}

func promptIsochrone(q *query) error {
	var latStr, lonStr, thStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Origin latitude").Value(&latStr).Validate(validateFloat),
			huh.NewInput().Title("Origin longitude").Value(&lonStr).Validate(validateFloat),
			huh.NewInput().Title("Threshold (ms)").Value(&thStr).Validate(validateUint).Placeholder("600000"),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	q.OriginLat, _ = strconv.ParseFloat(latStr, 64)
	q.OriginLon, _ = strconv.ParseFloat(lonStr, 64)
	th, _ := strconv.ParseUint(thStr, 10, 32)
	q.ThresholdMs = uint32(th)
	return nil
}

func promptMatrix(q *query) error {
	var srcStr, dstStr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().Title("Source points, one \"lat,lon\" per line").Value(&srcStr),
			huh.NewText().Title("Target points, one \"lat,lon\" per line").Value(&dstStr),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	var err error
	q.SourcesLat, q.SourcesLon, err = parseLatLonLines(srcStr)
	if err != nil {
		return err
	}
	q.TargetsLat, q.TargetsLon, err = parseLatLonLines(dstStr)
	return err
}

func validateUint(s string) error {
	_, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return errInvalidUint
	}
	return nil
}

func validateFloat(s string) error {
	_, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errInvalidFloat
	}
	return nil
}
