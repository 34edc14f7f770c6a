// Package envprobe snapshots the local shell environment for translation
// requests.
package envprobe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

const (
	defaultMaxFiles = 20
	gitTimeout      = 2 * time.Second
)

// DefaultTools are looked up on PATH once per probe.
var DefaultTools = []string{"docker", "kubectl", "git", "npm", "yarn", "pnpm", "python3", "go", "node", "cargo", "make"}

// Probe implements ports.EnvironmentProbe.
type Probe struct {
	tools    []string
	maxFiles int
	getwd    func() (string, error)
	lookPath func(string) (string, error)

	once      sync.Once
	available []string
}

// Option customises a Probe.
type Option func(*Probe)

// WithTools replaces the tool list.
func WithTools(tools ...string) Option {
	return func(p *Probe) { p.tools = tools }
}

// WithMaxFiles caps the directory listing. Zero disables it.
func WithMaxFiles(n int) Option {
	return func(p *Probe) { p.maxFiles = n }
}

// WithWorkingDir pins the directory instead of os.Getwd.
func WithWorkingDir(dir string) Option {
	return func(p *Probe) { p.getwd = func() (string, error) { return dir, nil } }
}

// New builds a probe.
func New(opts ...Option) *Probe {
	p := &Probe{
		tools:    DefaultTools,
		maxFiles: defaultMaxFiles,
		getwd:    os.Getwd,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot collects the environment. Missing pieces are left empty.
func (p *Probe) Snapshot(ctx context.Context) domain.Environment {
	wd, _ := p.getwd()
	env := domain.Environment{
		WorkingDir: wd,
		Shell:      detectShell(),
		OS:         runtime.GOOS,
		User:       os.Getenv("USER"),
		Tools:      p.detectTools(),
	}
	if wd != "" {
		env.Files = listFiles(wd, p.maxFiles)
		env.GitBranch = gitBranch(ctx, wd)
	}
	return env
}

func (p *Probe) detectTools() []string {
	p.once.Do(func() {
		for _, tool := range p.tools {
			if _, err := p.lookPath(tool); err == nil {
				p.available = append(p.available, tool)
			}
		}
		sort.Strings(p.available)
	})
	return append([]string(nil), p.available...)
}

func listFiles(dir string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if len(files) >= limit {
			break
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		files = append(files, name)
	}
	return files
}

func detectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return filepath.Base(shell)
	}
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	return "sh"
}

func gitBranch(ctx context.Context, dir string) string {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

var _ ports.EnvironmentProbe = (*Probe)(nil)
