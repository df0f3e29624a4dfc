package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is the hash-chained manifest of one run's job results, stored as
// JSON lines (one entry per line).
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// Create starts an empty ledger at path, replacing any previous run's file.
func Create(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Ledger{path: path}, nil
}

// Open loads an existing ledger file.
func Open(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	l := &Ledger{path: path}
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		l.entries = append(l.entries, &e)
	}
	return l, nil
}

// Path is the file backing the ledger.
func (l *Ledger) Path() string { return l.path }

// Append links e to the current tail, hashes it and persists it.
func (l *Ledger) Append(e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Index = len(l.entries)
	e.PrevHash = ""
	if n := len(l.entries); n > 0 {
		e.PrevHash = l.entries[n-1].Hash
	}
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a snapshot of the ledger's entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// LastHash returns the tail entry's hash, or "" when empty.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}
