// Package check runs preflight dependency checks before the bot starts.
package check

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joelklabo/bangbot/internal/config"
)

const (
	StatusOK      = "OK"
	StatusMissing = "MISSING"
	StatusWarn    = "WARN"
)

var dialTimeout = 3 * time.Second

// Result represents a single dependency check outcome.
type Result struct {
	Name     string
	Type     string
	Status   string // OK|MISSING|WARN
	Details  string
	Optional bool
}

// Checker defines an interface for running checks.
type Checker interface {
	Check(dep DepInput) Result
}

// DepInput describes one prerequisite.
type DepInput struct {
	Name        string
	Type        string
	Version     string
	Optional    bool
	Description string
	Hint        string
}

// Checkers maps dependency types to their checker.
func Checkers() map[string]Checker {
	return map[string]Checker{
		"binary":   BinaryChecker{},
		"env":      EnvChecker{},
		"file":     FileChecker{},
		"url":      URLChecker{},
		"port":     PortChecker{},
		"relay":    RelayChecker{},
		"dirwrite": DirWriteChecker{},
	}
}

// Run checks every dep. Unknown types are reported as warnings.
func Run(deps []DepInput) []Result {
	checkers := Checkers()
	out := make([]Result, 0, len(deps))
	for _, d := range deps {
		chk, ok := checkers[d.Type]
		if !ok {
			out = append(out, Result{Name: d.Name, Type: d.Type, Status: StatusWarn, Details: "unknown check type", Optional: d.Optional})
			continue
		}
		res := chk.Check(d)
		res.Optional = d.Optional
		out = append(out, res)
	}
	return out
}

// Missing counts results with StatusMissing.
func Missing(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusMissing {
			n++
		}
	}
	return n
}

// ForConfig derives checks from a loaded config and appends preset deps.
func ForConfig(cfg *config.Config, preset string, presetDeps map[string][]DepInput) []DepInput {
	deps := []DepInput{{Name: existingAncestor(filepath.Dir(cfg.Storage.Path)), Type: "dirwrite", Hint: "storage.path directory"}}
	if cfg.Help.File != "" && !cfg.Help.Disable {
		deps = append(deps, DepInput{Name: cfg.Help.File, Type: "file", Hint: "help.file"})
	}
	if cfg.Logging.File != "" {
		deps = append(deps, DepInput{Name: existingAncestor(filepath.Dir(cfg.Logging.File)), Type: "dirwrite", Hint: "logging.file directory"})
	}
	for _, t := range cfg.Transports {
		switch t.Type {
		case "nostr":
			for _, r := range t.Relays {
				deps = append(deps, DepInput{Name: r, Type: "relay", Optional: true, Hint: "relay for " + t.ID})
			}
		case "email":
			if host, _ := t.Config["host"].(string); host != "" {
				port := 993
				if p, ok := t.Config["port"].(int); ok && p > 0 {
					port = p
				}
				deps = append(deps, DepInput{Name: net.JoinHostPort(host, fmt.Sprint(port)), Type: "port", Optional: true, Hint: "imap for " + t.ID})
			}
		}
	}
	deps = append(deps, presetDeps[preset]...)
	return dedupe(deps)
}

// existingAncestor returns dir or its closest parent that exists, since
// missing directories are created on start.
func existingAncestor(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func dedupe(deps []DepInput) []DepInput {
	seen := make(map[string]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		key := d.Type + "|" + d.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// BinaryChecker checks for a binary on PATH and optional version substring.
type BinaryChecker struct{}

func (BinaryChecker) Check(dep DepInput) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK}
	path, err := exec.LookPath(dep.Name)
	if err != nil {
		res.Status = missingStatus(dep.Optional)
		res.Details = fmt.Sprintf("not found in PATH (%s)", dep.Hint)
		return res
	}
	if dep.Version != "" {
		out, _ := exec.Command(path, "--version").CombinedOutput()
		if !strings.Contains(string(out), dep.Version) {
			res.Status = missingStatus(dep.Optional)
			res.Details = fmt.Sprintf("found %s but version mismatch (need %s)", strings.TrimSpace(string(out)), dep.Version)
			return res
		}
	}
	res.Details = path
	return res
}

// EnvChecker requires a non-empty environment variable.
type EnvChecker struct{}

func (EnvChecker) Check(dep DepInput) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK, Details: "set"}
	if strings.TrimSpace(os.Getenv(dep.Name)) == "" {
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint("not set", dep.Hint)
	}
	return res
}

// FileChecker requires a readable regular file.
type FileChecker struct{}

func (FileChecker) Check(dep DepInput) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK}
	info, err := os.Stat(dep.Name)
	switch {
	case err != nil:
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint(err.Error(), dep.Hint)
	case info.IsDir():
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint("is a directory", dep.Hint)
	default:
		res.Details = fmt.Sprintf("%d bytes", info.Size())
	}
	return res
}

// URLChecker requires an HTTP endpoint to answer without a 5xx.
type URLChecker struct{}

func (URLChecker) Check(dep DepInput) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK}
	client := &http.Client{Timeout: dialTimeout}
	resp, err := client.Head(dep.Name)
	if err != nil {
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint(err.Error(), dep.Hint)
		return res
	}
	_ = resp.Body.Close()
	res.Details = resp.Status
	if resp.StatusCode >= 500 {
		res.Status = missingStatus(dep.Optional)
	}
	return res
}

// PortChecker requires a TCP listener at host:port.
type PortChecker struct{}

func (PortChecker) Check(dep DepInput) Result {
	return dialCheck(dep, dep.Name)
}

// RelayChecker dials a relay's host; a bare host:port is accepted too.
type RelayChecker struct{}

func (RelayChecker) Check(dep DepInput) Result {
	addr := dep.Name
	if u, err := url.Parse(dep.Name); err == nil && u.Host != "" {
		addr = u.Host
		if u.Port() == "" {
			port := "443"
			if u.Scheme == "ws" || u.Scheme == "http" {
				port = "80"
			}
			addr = net.JoinHostPort(u.Hostname(), port)
		}
	}
	return dialCheck(dep, addr)
}

func dialCheck(dep DepInput, addr string) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK, Details: "reachable"}
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint(err.Error(), dep.Hint)
		return res
	}
	_ = conn.Close()
	return res
}

// DirWriteChecker requires an existing, writable directory.
type DirWriteChecker struct{}

func (DirWriteChecker) Check(dep DepInput) Result {
	res := Result{Name: dep.Name, Type: dep.Type, Status: StatusOK, Details: "writable"}
	info, err := os.Stat(dep.Name)
	if err != nil || !info.IsDir() {
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint("directory does not exist", dep.Hint)
		return res
	}
	f, err := os.CreateTemp(dep.Name, ".bangbot-check-*")
	if err != nil {
		res.Status = missingStatus(dep.Optional)
		res.Details = withHint(err.Error(), dep.Hint)
		return res
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return res
}

func missingStatus(optional bool) string {
	if optional {
		return StatusWarn
	}
	return StatusMissing
}

func withHint(details, hint string) string {
	if hint == "" {
		return details
	}
	return details + " (" + hint + ")"
}
