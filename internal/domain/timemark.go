package domain

import (
	"fmt"
	"regexp"
)

// Harvest filenames embed timestamps as YYYY-MM-DDTHH:MM:SS. The pattern is
// deliberately loose about digit counts so legacy single-digit fields still
// match; downstream parsing normalizes them.
var timestampPattern = regexp.MustCompile(`\d+-\d+-\d+T\d+:\d+:\d+`)

// ExtractTimestamps returns every embedded timestamp in a harvest filename,
// in order of appearance. Observation files carry one; model files carry up
// to three (harvest time, forecast initialization, nowcast timemark).
func ExtractTimestamps(filename string) []string {
	return timestampPattern.FindAllString(filename, -1)
}

// SelectTimemark picks the timestamp that identifies a file's logical epoch.
// Forecast sources use the second token, nowcast sources the third, and
// observation sources the first. A file with too few tokens for its
// provenance is malformed.
func SelectTimemark(filename string, p Provenance) (string, error) {
	tokens := ExtractTimestamps(filename)
	idx := 0
	switch p {
	case Forecast:
		idx = 1
	case Nowcast:
		idx = 2
	}
	if len(tokens) <= idx {
		return "", fmt.Errorf("select timemark for %q (%s, %d timestamps): %w",
			filename, p, len(tokens), ErrNoTimestamp)
	}
	return tokens[idx], nil
}
