package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"simrun/internal/deck"
	"simrun/internal/ledger"
	"simrun/internal/storage"
)

// resultServer serves the result table and ledger of one run, read-only.
type resultServer struct {
	run    deck.Task
	logs   *storage.LogStorage
	logger *slog.Logger

	mu   sync.Mutex
	addr string
}

func newResultServer(runDir, taskDir string, logger *slog.Logger) *resultServer {
	return &resultServer{
		run:    deck.Task{RunDir: runDir},
		logs:   storage.NewLogStorage(taskDir),
		logger: logger,
	}
}

func (s *resultServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/summary", s.handleSummary)
	r.Get("/ledger", s.handleLedger)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	return r
}

// Addr is the listening address, empty until the server has started.
func (s *resultServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *resultServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.logger.Info("serving run results", "addr", s.addr, "run_dir", s.run.RunDir)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type summaryResponse struct {
	Passed int                  `json:"passed"`
	Total  int                  `json:"total"`
	Rows   []storage.SummaryRow `json:"rows"`
}

// GET /summary
func (s *resultServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := storage.ReadSummary(s.run.SummaryPath())
	if err != nil {
		s.fail(w, "cannot read summary", err)
		return
	}
	resp := summaryResponse{Total: len(rows), Rows: rows}
	for _, row := range rows {
		if row.Status == "passed" {
			resp.Passed++
		}
	}
	s.writeJSON(w, resp)
}

// GET /ledger
func (s *resultServer) handleLedger(w http.ResponseWriter, r *http.Request) {
	l, err := ledger.Open(s.run.LedgerPath())
	if err != nil {
		s.fail(w, "cannot open ledger", err)
		return
	}
	s.writeJSON(w, l.Entries())
}

// GET /ledger/verify
func (s *resultServer) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	l, err := ledger.Open(s.run.LedgerPath())
	if err != nil {
		s.fail(w, "cannot open ledger", err)
		return
	}
	if err := l.VerifyChain(); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := l.VerifyLogs(s.logs.Resolve); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := w.Write([]byte("ledger verification ok")); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

func (s *resultServer) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, msg+": not found", http.StatusNotFound)
		return
	}
	s.logger.Warn(msg, "error", err)
	http.Error(w, msg+": "+err.Error(), http.StatusInternalServerError)
}

func (s *resultServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}
