package core

import (
	"context"
	"fmt"
	"strings"
)

// GoToolchain issues the handful of go commands the orchestrator needs.
type GoToolchain struct {
	Runner Runner
	Binary string // defaults to "go"
	Dir    string // project directory the commands run in
}

// NewGoToolchain returns a toolchain running the go binary found on PATH.
func NewGoToolchain(r Runner, dir string) *GoToolchain {
	return &GoToolchain{Runner: r, Binary: "go", Dir: dir}
}

// BuildRequest carries everything one go build invocation needs.
type BuildRequest struct {
	Target   Target
	Package  string
	Output   string
	LDFlags  string
	Tags     []string
	CGO      bool
	Trimpath bool
	Verbose  bool
}

func (g *GoToolchain) command(args ...string) Command {
	bin := g.Binary
	if bin == "" {
		bin = "go"
	}
	return Command{Name: bin, Args: args, Dir: g.Dir}
}

// DistList returns the raw output of `go tool dist list`.
func (g *GoToolchain) DistList(ctx context.Context) ([]byte, error) {
	cmd := g.command("tool", "dist", "list")
	res, err := g.Runner.Run(ctx, cmd)
	if err := checkResult(cmd, res, err); err != nil {
		return nil, err
	}
	return res.Output, nil
}

// HostTarget asks the toolchain for the platform and architecture it
// builds for when nothing is overridden.
func (g *GoToolchain) HostTarget(ctx context.Context) (Target, error) {
	cmd := g.command("env", "GOOS", "GOARCH")
	res, err := g.Runner.Run(ctx, cmd)
	if err := checkResult(cmd, res, err); err != nil {
		return Target{}, err
	}
	fields := strings.Fields(string(res.Output))
	if len(fields) != 2 {
		return Target{}, fmt.Errorf("unexpected go env output %q", strings.TrimSpace(string(res.Output)))
	}
	return Target{Platform: fields[0], Arch: fields[1]}, nil
}

// Version returns the `go version` line, e.g. "go version go1.23.4 linux/amd64".
func (g *GoToolchain) Version(ctx context.Context) (string, error) {
	cmd := g.command("version")
	res, err := g.Runner.Run(ctx, cmd)
	if err := checkResult(cmd, res, err); err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(res.Output))
	if v == "" {
		return "", fmt.Errorf("empty go version output")
	}
	return v, nil
}

// Build runs go build for one target. The result is returned as-is; the
// caller decides what a non-zero exit means.
func (g *GoToolchain) Build(ctx context.Context, req BuildRequest) (Result, error) {
	args := []string{"build"}
	if req.Verbose {
		args = append(args, "-x")
	}
	if req.Trimpath {
		args = append(args, "-trimpath")
	}
	if len(req.Tags) > 0 {
		args = append(args, "-tags", strings.Join(req.Tags, ","))
	}
	if req.LDFlags != "" {
		args = append(args, "-ldflags", req.LDFlags)
	}
	args = append(args, "-o", req.Output)

	pkg := req.Package
	if pkg == "" {
		pkg = "."
	}
	args = append(args, pkg)

	cgo := "0"
	if req.CGO {
		cgo = "1"
	}
	cmd := g.command(args...)
	cmd.Env = []string{
		"GOOS=" + req.Target.Platform,
		"GOARCH=" + req.Target.Arch,
		"CGO_ENABLED=" + cgo,
	}
	return g.Runner.Run(ctx, cmd)
}
