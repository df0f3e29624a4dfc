package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SummaryColumns is the header of the result table.
var SummaryColumns = []string{"status", "Errors", "Warnings", "run_complete", "exectime", "finished", "logfile"}

// SummaryRow is one job's line in the result table.
type SummaryRow struct {
	Status      string `json:"status"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	RunComplete bool   `json:"run_complete"`
	ExecTime    string `json:"exectime"`
	Finished    bool   `json:"finished"`
	LogFile     string `json:"logfile"`
}

func (r SummaryRow) record() []string {
	return []string{
		r.Status,
		strconv.Itoa(r.Errors),
		strconv.Itoa(r.Warnings),
		strconv.FormatBool(r.RunComplete),
		r.ExecTime,
		strconv.FormatBool(r.Finished),
		r.LogFile,
	}
}

// WriteSummary writes the header and rows to path, replacing any previous
// table.
func WriteSummary(path string, rows []SummaryRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(SummaryColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ReadSummary parses a table written by WriteSummary.
func ReadSummary(path string) ([]SummaryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(SummaryColumns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]SummaryRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("summary %s row %d: %w", path, i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (SummaryRow, error) {
	var (
		row SummaryRow
		err error
	)
	row.Status = rec[0]
	if row.Errors, err = strconv.Atoi(rec[1]); err != nil {
		return row, err
	}
	if row.Warnings, err = strconv.Atoi(rec[2]); err != nil {
		return row, err
	}
	if row.RunComplete, err = strconv.ParseBool(rec[3]); err != nil {
		return row, err
	}
	row.ExecTime = rec[4]
	if row.Finished, err = strconv.ParseBool(rec[5]); err != nil {
		return row, err
	}
	row.LogFile = rec[6]
	return row, nil
}
