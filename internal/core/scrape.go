package core

import (
	"regexp"
	"strconv"
	"strings"
)

// TriggerToken marks simulator output lines that must carry counters.
const TriggerToken = "Errors"

// counterLine is "# <label>: <int>, <label>: <int>", e.g.
// "# Errors: 0, Warnings: 2".
var counterLine = regexp.MustCompile(`^#\s*([^:,]+?)\s*:\s*(\d+)\s*,\s*([^:,]+?)\s*:\s*(\d+)\s*$`)

// Counts are the error and warning totals reported by one counter line.
type Counts struct {
	Errors   int
	Warnings int
}

// ScrapeLine inspects one line of simulator output. ok is false for lines
// without the trigger token. A line with the token that does not follow the
// counter grammar yields a ScrapeError.
func ScrapeLine(line string) (c Counts, ok bool, err error) {
	if !strings.Contains(line, TriggerToken) {
		return Counts{}, false, nil
	}
	m := counterLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Counts{}, false, &ScrapeError{Line: line}
	}
	errs, err := strconv.Atoi(m[2])
	if err != nil {
		return Counts{}, false, &ScrapeError{Line: line}
	}
	warns, err := strconv.Atoi(m[4])
	if err != nil {
		return Counts{}, false, &ScrapeError{Line: line}
	}
	return Counts{Errors: errs, Warnings: warns}, true, nil
}
