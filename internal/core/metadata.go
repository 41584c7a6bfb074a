package core

import (
	"context"
	"strings"
	"time"
)

// DateStampLayout formats the build timestamp, e.g. 2024-05-01_03:04:05PM.
const DateStampLayout = "2006-01-02_03:04:05PM"

// Names of the package-level string variables the metadata is injected into.
const (
	SymbolBuildStamp = "buildStamp"
	SymbolGitHash    = "gitHash"
	SymbolGoVersion  = "goVersion"
	SymbolVersion    = "version"
)

// BuildMetadata is the provenance record embedded into every artifact of a run.
type BuildMetadata struct {
	DateStamp        string `json:"date_stamp"`
	RevisionHash     string `json:"revision_hash"`
	ToolchainVersion string `json:"toolchain_version"`
	ProgramVersion   string `json:"program_version"`
}

// LinkerFlags renders the -X assignments for the variables in pkg
// ("main" if empty). Values containing blanks are quoted so go build keeps
// them as a single argument.
func (m BuildMetadata) LinkerFlags(pkg string) []string {
	if pkg == "" {
		pkg = "main"
	}
	assign := func(name, value string) string {
		return "-X " + quoteFlag(pkg+"."+name+"="+value)
	}
	return []string{
		assign(SymbolBuildStamp, m.DateStamp),
		assign(SymbolGitHash, m.RevisionHash),
		assign(SymbolGoVersion, m.ToolchainVersion),
		assign(SymbolVersion, m.ProgramVersion),
	}
}

// LDFlags joins the linker flags with any extra flags into one -ldflags value.
func (m BuildMetadata) LDFlags(pkg string, extra ...string) string {
	return strings.Join(append(m.LinkerFlags(pkg), extra...), " ")
}

// quoteFlag wraps s in whichever quote character it does not contain.
// go build splits -ldflags without backslash unescaping, so a value holding
// both quote characters cannot be passed; CheckLinkerValue rejects those.
func quoteFlag(s string) string {
	if !strings.ContainsAny(s, " \t\n'\"") {
		return s
	}
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

// CheckLinkerValue reports whether value can be embedded with -X. Values
// containing both ' and " have no quoting go build accepts.
func CheckLinkerValue(name, value string) error {
	if strings.Contains(value, "'") && strings.Contains(value, `"`) {
		return configErrorf("%s %q cannot be embedded: it contains both single and double quotes", name, value)
	}
	return nil
}

// Check verifies every field can be embedded with -X.
func (m BuildMetadata) Check() error {
	for _, f := range []struct{ name, value string }{
		{SymbolBuildStamp, m.DateStamp},
		{SymbolGitHash, m.RevisionHash},
		{SymbolGoVersion, m.ToolchainVersion},
		{SymbolVersion, m.ProgramVersion},
	} {
		if err := CheckLinkerValue(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// MetadataEmbedder gathers the provenance record once per run.
type MetadataEmbedder struct {
	Go      *GoToolchain
	Runner  Runner
	Dir     string           // repository the revision is read from
	Version string           // release version of the program being built
	Clock   func() time.Time // defaults to time.Now
}

// Build queries the clock, the VCS revision and the toolchain version. A
// missing revision or toolchain version aborts the run; artifacts without
// traceable provenance are not produced. A value that cannot be passed to
// the linker is an ErrConfiguration.
func (e *MetadataEmbedder) Build(ctx context.Context) (BuildMetadata, error) {
	clock := e.Clock
	if clock == nil {
		clock = time.Now
	}

	rev, err := e.revision(ctx)
	if err != nil {
		return BuildMetadata{}, metadataErrorf(err, "read VCS revision")
	}
	goVersion, err := e.Go.Version(ctx)
	if err != nil {
		return BuildMetadata{}, metadataErrorf(err, "read toolchain version")
	}

	version := strings.TrimSpace(e.Version)
	if version == "" {
		version = "dev"
	}

	md := BuildMetadata{
		DateStamp:        clock().Format(DateStampLayout),
		RevisionHash:     rev,
		ToolchainVersion: goVersion,
		ProgramVersion:   version,
	}
	if err := md.Check(); err != nil {
		return BuildMetadata{}, err
	}
	return md, nil
}

func (e *MetadataEmbedder) revision(ctx context.Context) (string, error) {
	cmd := Command{Name: "git", Args: []string{"rev-parse", "HEAD"}, Dir: e.Dir}
	res, err := e.Runner.Run(ctx, cmd)
	if err := checkResult(cmd, res, err); err != nil {
		return "", err
	}
	rev := strings.TrimSpace(string(res.Output))
	if rev == "" {
		return "", errEmptyRevision
	}
	return rev, nil
}
