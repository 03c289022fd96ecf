// Package admin serves a small authenticated HTTP API for inspecting a
// running bot.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joelklabo/bangbot/internal/commands"
	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/metrics"
	"github.com/joelklabo/bangbot/internal/store"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
	maxParseBody      = 16 << 10
)

// Commands is the part of the runner the API reads.
type Commands interface {
	Descriptors() []commands.Descriptor
	Tokenizer() *commands.Tokenizer
}

// AuditReader returns the newest audit entries first.
type AuditReader interface {
	Audit(limit int) ([]store.AuditEntry, error)
}

// Server hosts the admin API.
type Server struct {
	cfg    config.AdminConfig
	cmds   Commands
	help   *commands.Help
	audit  AuditReader
	logger *slog.Logger
	srv    *http.Server
}

// New constructs a Server. help and audit may be nil.
func New(cfg config.AdminConfig, cmds Commands, help *commands.Help, audit AuditReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, cmds: cmds, help: help, audit: audit, logger: logger}
}

// Handler returns the API routes wrapped in auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/commands", s.handleCommands)
	mux.HandleFunc("GET /api/help", s.handleHelp)
	mux.HandleFunc("GET /api/audit", s.handleAudit)
	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.Handle("GET /metrics", metrics.Handler())
	return s.withAuth(mux)
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", slog.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := strings.TrimSpace(s.cfg.AuthToken); tok != "" {
			if r.Header.Get("Authorization") != "Bearer "+tok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type commandInfo struct {
	Identifier  string `json:"identifier"`
	Description string `json:"description,omitempty"`
	Usage       string `json:"usage,omitempty"`
}

func describe(d commands.Descriptor) commandInfo {
	info := commandInfo{Identifier: d.Identifier(), Description: d.Description()}
	if u, ok := d.(interface{ UsageText() string }); ok {
		info.Usage = u.UsageText()
	}
	return info
}

func (s *Server) handleCommands(w http.ResponseWriter, _ *http.Request) {
	descs := s.cmds.Descriptors()
	out := make([]commandInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, describe(d))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	if s.help == nil {
		http.Error(w, "help is disabled", http.StatusNotFound)
		return
	}
	if id := r.URL.Query().Get("command"); id != "" {
		s.writeJSON(w, http.StatusOK, map[string]string{"command": id, "text": s.help.Lookup(id)})
		return
	}
	entries := s.help.Entries()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]string{"command": k, "text": entries[k]})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit is unavailable", http.StatusNotFound)
		return
	}
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAuditLimit)
	}
	entries, err := s.audit.Audit(limit)
	if err != nil {
		s.logger.Error("read audit", slog.String("err", err.Error()))
		http.Error(w, "read audit failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	Identifier   string            `json:"identifier"`
	Flags        []string          `json:"flags"`
	Pairs        map[string]string `json:"pairs"`
	Raw          []string          `json:"raw"`
	ArgumentText string            `json:"argument_text"`
	Matches      []commandInfo     `json:"matches"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxParseBody)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	args, err := s.cmds.Tokenizer().Parse(req.Text)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	resp := parseResponse{
		Identifier:   args.Identifier(),
		Flags:        args.Flags(),
		Pairs:        args.Pairs(),
		Raw:          args.Raw(),
		ArgumentText: args.ArgumentText(),
		Matches:      []commandInfo{},
	}
	for _, d := range s.cmds.Descriptors() {
		if d.Identifier() == args.Identifier() {
			resp.Matches = append(resp.Matches, describe(d))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", slog.String("err", err.Error()))
	}
}
