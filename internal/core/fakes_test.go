package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

const testDistList = `aix/ppc64
darwin/amd64
darwin/arm64
linux/386
linux/amd64
linux/arm64
windows/386
windows/amd64
windows/arm64
`

// MockRunner answers the go and git invocations xbuild issues. Builds write
// a small artifact to the -o path unless the platform is listed in Fail.
type MockRunner struct {
	mu    sync.Mutex
	Calls []Command

	DistList  string
	Host      string // "linux amd64"
	GoVersion string
	Revision  string
	Fail      map[string]bool // platforms whose go build exits 1
	Pack      bool            // upx appends to the artifact instead of leaving it untouched

	// Err forces an error for commands whose String() has this prefix.
	ErrPrefix string
	Err       error

	// OnBuild runs before a build completes, e.g. to block or cancel.
	OnBuild func(ctx context.Context, c Command) error
}

func newMockRunner() *MockRunner {
	return &MockRunner{
		DistList:  testDistList,
		Host:      "linux amd64",
		GoVersion: "go version go1.23.4 linux/amd64",
		Revision:  "0123456789abcdef0123456789abcdef01234567",
		Fail:      map[string]bool{},
	}
}

func (m *MockRunner) Run(ctx context.Context, c Command) (Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, c)
	m.mu.Unlock()

	if m.Err != nil && strings.HasPrefix(c.String(), m.ErrPrefix) {
		return Result{}, m.Err
	}

	switch {
	case c.Name == "git" && len(c.Args) > 0 && c.Args[0] == "rev-parse":
		return Result{Output: []byte(m.Revision + "\n")}, nil
	case len(c.Args) == 0:
		return Result{ExitCode: 2}, nil
	case c.Args[0] == "tool":
		return Result{Output: []byte(m.DistList)}, nil
	case c.Args[0] == "env":
		return Result{Output: []byte(strings.ReplaceAll(m.Host, " ", "\n") + "\n")}, nil
	case c.Args[0] == "version":
		return Result{Output: []byte(m.GoVersion + "\n")}, nil
	case c.Args[0] == "build":
		return m.build(ctx, c)
	case c.Name == "upx":
		if m.Pack {
			return Result{}, m.pack(c.Args[len(c.Args)-1])
		}
		return Result{}, nil
	}
	return Result{ExitCode: 127, Output: []byte("unknown command " + c.String())}, nil
}

func (m *MockRunner) pack(artifact string) error {
	f, err := os.OpenFile(artifact, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(" packed"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *MockRunner) build(ctx context.Context, c Command) (Result, error) {
	if m.OnBuild != nil {
		if err := m.OnBuild(ctx, c); err != nil {
			return Result{}, err
		}
	}
	goos := envValue(c.Env, "GOOS")
	if m.Fail[goos] {
		return Result{ExitCode: 1, Output: []byte("# example.com/prog\n./main.go:3:2: undefined: syscall.Foo\n")}, nil
	}
	out := argValue(c.Args, "-o")
	if err := os.WriteFile(out, []byte("binary for "+goos+"/"+envValue(c.Env, "GOARCH")), 0o755); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// Builds returns the go build commands in call order.
func (m *MockRunner) Builds() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Command
	for _, c := range m.Calls {
		if len(c.Args) > 0 && c.Args[0] == "build" {
			out = append(out, c)
		}
	}
	return out
}

func envValue(env []string, key string) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return v
		}
	}
	return ""
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)
}

func testMetadata() BuildMetadata {
	return BuildMetadata{
		DateStamp:        "2024-05-01_03:04:05PM",
		RevisionHash:     "0123456789abcdef0123456789abcdef01234567",
		ToolchainVersion: "go version go1.23.4 linux/amd64",
		ProgramVersion:   "0.1.2",
	}
}

func mustMatrix(t *testing.T, out string) *TargetMatrix {
	t.Helper()
	m, err := ParseDistList([]byte(out))
	if err != nil {
		t.Fatalf("parse dist list: %v", err)
	}
	return m
}

func targets(specs ...string) TargetSet {
	var ts []Target
	for _, s := range specs {
		tg, ok := ParseTarget(s)
		if !ok {
			panic(fmt.Sprintf("bad target %q", s))
		}
		ts = append(ts, tg)
	}
	return ts
}
