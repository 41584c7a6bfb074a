package core

import (
	"context"
	"time"

	"github.com/3cpo-dev/xbuild/internal/publish"
	"github.com/3cpo-dev/xbuild/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the entrypoint for one xbuild invocation: it discovers
// the matrix, gathers metadata, selects targets and runs the batch with
// its optional follow-up stages.
type Orchestrator struct {
	Config   Config
	Runner   Runner
	Dir      string // project directory, "" for the working directory
	Metrics  *telemetry.Collector
	Store    *Store            // nil disables history
	Uploader *publish.Uploader // nil disables publishing
	Clock    func() time.Time
}

// RunRequest holds the per-invocation switches that are not part of Config.
type RunRequest struct {
	Selection SelectionRequest
	Verbose   bool
}

// Report summarizes a finished run.
type Report struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Metadata   BuildMetadata
	Targets    TargetSet
	Result     BatchResult
	Compressed int
	Final      []ArtifactDigest // after compression, one per succeeded target
	Published  publish.Result
}

// ArtifactDigest describes an artifact as it sits on disk once the
// compression stage has run. These are the bytes that get published.
type ArtifactDigest struct {
	Target Target
	Path   string
	Size   int64
	SHA256 string
}

func finalDigests(result BatchResult) []ArtifactDigest {
	var out []ArtifactDigest
	for _, o := range result.Succeeded() {
		size, sum, err := checksum(o.Artifact)
		if err != nil {
			log.Warn().Err(err).Str("artifact", o.Artifact).Msg("Failed to checksum artifact")
			continue
		}
		out = append(out, ArtifactDigest{Target: o.Target, Path: o.Artifact, Size: size, SHA256: sum})
	}
	return out
}

func NewOrchestrator(cfg Config, r Runner) *Orchestrator {
	return &Orchestrator{Config: cfg, Runner: r, Clock: time.Now}
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

func (o *Orchestrator) toolchain() *GoToolchain {
	return NewGoToolchain(o.Runner, o.Dir)
}

// Matrix discovers the targets the installed toolchain supports.
func (o *Orchestrator) Matrix(ctx context.Context) (*TargetMatrix, error) {
	return (&Introspector{Go: o.toolchain()}).Discover(ctx)
}

// Run executes one full build. Errors before the batch are returned without
// anything being built. Per-target failures are only reported in the
// result; the returned error is non-nil for those only when ctx was
// cancelled mid-batch.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Report, error) {
	cfg := o.Config
	gt := o.toolchain()
	started := o.now()

	matrix, err := (&Introspector{Go: gt}).Discover(ctx)
	if err != nil {
		return nil, err
	}
	md, err := (&MetadataEmbedder{Go: gt, Runner: o.Runner, Dir: o.Dir, Version: cfg.Version, Clock: o.Clock}).Build(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := (&Selector{Host: gt}).Select(ctx, req.Selection, matrix)
	if err != nil {
		return nil, err
	}
	log.Info().
		Strs("targets", targets.Strings()).
		Str("revision", md.RevisionHash).
		Str("version", md.ProgramVersion).
		Msg("Starting batch")

	compressor, err := NewCompressor(cfg.Compress.Method, o.Runner, cfg.Compress.Level)
	if err != nil {
		return nil, err
	}

	builder := &BatchBuilder{
		Go:            gt,
		Program:       cfg.Program,
		Package:       cfg.Package,
		OutputDir:     cfg.OutputDir,
		SymbolPackage: cfg.Build.SymbolPackage,
		Strip:         cfg.Build.StripSymbols(),
		CGO:           cfg.Build.CGO,
		Trimpath:      cfg.Build.Trimpath,
		Verbose:       req.Verbose,
		Tags:          cfg.Build.Tags,
		Timeout:       cfg.Build.Timeout,
		Metrics:       o.Metrics,
	}
	result, batchErr := builder.Run(ctx, targets, md)

	report := &Report{
		ID:        uuid.New(),
		StartedAt: started,
		Metadata:  md,
		Targets:   targets,
		Result:    result,
	}

	if batchErr == nil {
		stage := &CompressionStage{Compressor: compressor, Platforms: cfg.Compress.Platforms, Metrics: o.Metrics}
		report.Compressed = stage.Apply(ctx, result)
		report.Final = finalDigests(result)

		if o.Uploader != nil {
			var artifacts []string
			for _, out := range result.Succeeded() {
				artifacts = append(artifacts, out.Artifact)
			}
			report.Published = o.Uploader.PublishAll(ctx, artifacts)
		}
	}

	report.FinishedAt = o.now()
	o.Metrics.RecordBatch(len(targets), report.FinishedAt)

	if o.Store != nil {
		// A cancelled ctx would abort the insert; history is written regardless.
		_, err := o.Store.RecordRun(context.WithoutCancel(ctx), Run{
			ID:         report.ID,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Metadata:   md,
			Outcomes:   result.Outcomes,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record build history")
		}
	}

	log.Info().
		Int("succeeded", len(result.Succeeded())).
		Int("failed", len(result.Failed())).
		Dur("elapsed", report.FinishedAt.Sub(started)).
		Msg("Batch finished")
	return report, batchErr
}
