package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/3cpo-dev/xbuild/internal/telemetry"
	"github.com/3cpo-dev/xbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// BuildOutcome is the result of building one target. Artifact, Size and
// SHA256 are only set when Status is api.BuildSucceeded. Size and SHA256
// describe the linker output; upx later rewrites the file in place, see
// Report.Final for the digest of what is published.
type BuildOutcome struct {
	Target   Target
	Status   api.BuildStatus
	Artifact string
	Err      error
	Output   string
	Duration time.Duration
	Size     int64
	SHA256   string
}

// Succeeded reports whether the target produced an artifact.
func (o BuildOutcome) Succeeded() bool { return o.Status == api.BuildSucceeded }

// Reason is the failure detail, or "" for a successful build.
func (o BuildOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// BatchResult holds one outcome per requested target, in request order.
type BatchResult struct {
	Outcomes []BuildOutcome
}

func (r BatchResult) Succeeded() []BuildOutcome { return r.filter(api.BuildSucceeded) }
func (r BatchResult) Failed() []BuildOutcome    { return r.filter(api.BuildFailed) }

func (r BatchResult) filter(status api.BuildStatus) []BuildOutcome {
	var out []BuildOutcome
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// BatchBuilder compiles a target set one target at a time.
type BatchBuilder struct {
	Go            *GoToolchain
	Program       string
	Package       string
	OutputDir     string
	SymbolPackage string        // package holding the metadata variables, "main" by default
	Strip         bool          // adds -s -w to the linker flags
	CGO           bool
	Trimpath      bool
	Verbose       bool
	Tags          []string
	Timeout       time.Duration // per target, zero means none
	Metrics       *telemetry.Collector
}

// ArtifactName is the file name produced for t.
func (b *BatchBuilder) ArtifactName(t Target) string {
	return fmt.Sprintf("%s_%s_%s", b.Program, t.Platform, t.Arch)
}

// Run builds every target in order. A failing target never stops the batch.
// If ctx is cancelled, the targets not yet started are recorded as failed
// without being built and ctx's error is returned alongside the result.
func (b *BatchBuilder) Run(ctx context.Context, targets TargetSet, md BuildMetadata) (BatchResult, error) {
	result := BatchResult{Outcomes: make([]BuildOutcome, 0, len(targets))}

	ctx, span := telemetry.StartBatch(ctx, b.Program, len(targets))
	defer span.End()

	if b.OutputDir != "" {
		if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
			return result, newError(ErrConfiguration, err, "create output directory %s", b.OutputDir)
		}
	}

	var extra []string
	if b.Strip {
		extra = append(extra, "-s", "-w")
	}
	ldflags := md.LDFlags(b.SymbolPackage, extra...)

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			for _, rest := range targets[i:] {
				result.Outcomes = append(result.Outcomes, b.skipped(rest, err))
			}
			log.Warn().Err(err).Int("skipped", len(targets)-i).Msg("Batch cancelled")
			return result, err
		}
		result.Outcomes = append(result.Outcomes, b.buildOne(ctx, t, ldflags))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (b *BatchBuilder) skipped(t Target, cause error) BuildOutcome {
	o := BuildOutcome{
		Target: t,
		Status: api.BuildFailed,
		Err:    newError(ErrBuild, cause, "%s not started", t),
	}
	b.Metrics.RecordBuild(t.Platform, t.Arch, string(o.Status), 0)
	return o
}

func (b *BatchBuilder) buildOne(ctx context.Context, t Target, ldflags string) BuildOutcome {
	ctx, span := telemetry.StartBuild(ctx, t.Platform, t.Arch)

	artifact := filepath.Join(b.OutputDir, b.ArtifactName(t))
	req := BuildRequest{
		Target:   t,
		Package:  b.Package,
		Output:   artifact,
		LDFlags:  ldflags,
		Tags:     b.Tags,
		CGO:      b.CGO,
		Trimpath: b.Trimpath,
		Verbose:  b.Verbose,
	}

	buildCtx := ctx
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	log.Info().Str("target", t.String()).Str("artifact", artifact).Msg("Building")
	start := time.Now()
	res, err := b.Go.Build(buildCtx, req)
	o := BuildOutcome{Target: t, Duration: time.Since(start), Output: string(res.Output)}

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		o.Err = newError(ErrBuild, err, "%s timed out after %s", t, b.Timeout)
	case err != nil:
		o.Err = newError(ErrBuild, err, "%s", t)
	case res.ExitCode != 0:
		o.Err = newError(ErrBuild, nil, "%s: go build exited with code %d: %s", t, res.ExitCode, tail(res.Output, 20))
	default:
		size, sum, serr := checksum(artifact)
		if serr != nil {
			o.Err = newError(ErrBuild, serr, "%s: artifact not readable", t)
			break
		}
		o.Artifact, o.Size, o.SHA256 = artifact, size, sum
	}

	if o.Err != nil {
		o.Status = api.BuildFailed
		log.Error().Str("target", t.String()).Dur("duration", o.Duration).Err(o.Err).Msg("Build failed")
	} else {
		o.Status = api.BuildSucceeded
		log.Info().Str("target", t.String()).Dur("duration", o.Duration).Int64("size", o.Size).Msg("Build succeeded")
	}
	if b.Verbose && o.Output != "" {
		log.Debug().Str("target", t.String()).Msg(o.Output)
	}

	b.Metrics.RecordBuild(t.Platform, t.Arch, string(o.Status), o.Duration)
	telemetry.EndSpan(span, string(o.Status), o.Err)
	return o
}

func checksum(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
