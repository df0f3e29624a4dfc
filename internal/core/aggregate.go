package core

import (
	"log/slog"
	"strings"

	"simrun/internal/storage"
)

// Summary is the outcome of one run.
type Summary struct {
	Passed int
	Total  int
	// Path is where the table was written; empty when nothing was written.
	Path string
}

// Aggregate writes the result table for records to path and reports the
// pass count. An empty record list writes nothing. An empty path skips the
// file but still counts.
func Aggregate(path string, records []*Record, logger *slog.Logger) (Summary, error) {
	sum := Summary{Total: len(records)}
	rows := make([]storage.SummaryRow, 0, len(records))
	for _, rec := range records {
		if rec.Passed() {
			sum.Passed++
		}
		rows = append(rows, storage.SummaryRow{
			Status:      rec.Status(),
			Errors:      rec.Errors(),
			Warnings:    rec.Warnings(),
			RunComplete: rec.Completed(),
			ExecTime:    rec.ExecTime(),
			Finished:    rec.Finished(),
			LogFile:     rec.LogPath(),
		})
	}

	rule := strings.Repeat("= = = =", 10)
	logger.Info(rule)
	logger.Info("passed jobs", "passed", sum.Passed, "total", sum.Total)

	if len(rows) > 0 && path != "" {
		if err := storage.WriteSummary(path, rows); err != nil {
			return sum, &IOError{Op: "write summary", Path: path, Err: err}
		}
		sum.Path = path
		logger.Info("result file stored", "path", path)
	}
	logger.Info(rule)
	return sum, nil
}
