package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"simrun/pkg/utils"
)

// Entry is a tamper-evident record of one finished simulation job.
type Entry struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"runId"`
	Benchmark  string `json:"benchmark"`
	Descriptor string `json:"descriptor"`
	Status     string `json:"status"`
	Errors     int    `json:"errors"`
	Warnings   int    `json:"warnings"`
	LogPath    string `json:"logPath"`
	LogHash    string `json:"logHash"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
}

// canonicalData returns the JSON bytes used to compute the entry hash.
// Hash itself is left out.
func (e *Entry) canonicalData() ([]byte, error) {
	view := *e
	view.Hash = ""
	return json.Marshal(view)
}

// ComputeHash calculates the sha256 over canonicalData.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	return utils.HashBytes(data), nil
}

// NewEntry stamps an entry with the current time. Index, PrevHash and Hash
// are assigned when it is appended.
func NewEntry(runID, benchmark, descriptor, status string, errs, warns int, logPath, logHash string) *Entry {
	return &Entry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      runID,
		Benchmark:  benchmark,
		Descriptor: descriptor,
		Status:     status,
		Errors:     errs,
		Warnings:   warns,
		LogPath:    logPath,
		LogHash:    logHash,
	}
}

func (e *Entry) String() string {
	short := e.Hash
	if len(short) > 16 {
		short = short[:16]
	}
	return fmt.Sprintf("Index=%d Benchmark=%s Status=%s Errors=%d Warnings=%d Hash=%s",
		e.Index, e.Benchmark, e.Status, e.Errors, e.Warnings, short)
}
