package main

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errInvalidUint  = errors.New("not a non-negative integer")
	errInvalidFloat = errors.New("not a number")
)

// parseLatLonLines reads one "lat,lon" pair per non-blank line, the format
// huh.Text collects for the matrix form's source/target lists.
func parseLatLonLines(s string) (lats, lons []float64, err error) {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, nil, errors.New("expected \"lat,lon\", got " + line)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, nil, err
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, nil, err
		}
		lats = append(lats, lat)
		lons = append(lons, lon)
	}
	if len(lats) == 0 {
		return nil, nil, errors.New("at least one point is required")
	}
	return lats, lons, nil
}
