package api

// v0 contains public types shared by the CLI's JSON output and the history store.

type BuildStatus string

const (
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// TargetSpec is one platform/architecture pair as printed by `xbuild targets --json`.
type TargetSpec struct {
	Platform string `json:"platform" yaml:"platform"`
	Arch     string `json:"arch" yaml:"arch"`
}

// OutcomeSummary is the persisted view of one target's build.
type OutcomeSummary struct {
	Platform   string      `json:"platform"`
	Arch       string      `json:"arch"`
	Status     BuildStatus `json:"status"`
	Artifact   string      `json:"artifact,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Size       int64       `json:"size,omitempty"`
	SHA256     string      `json:"sha256,omitempty"`
}

// RunSummary is one row of `xbuild history`.
type RunSummary struct {
	ID               string `json:"id"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at"`
	RevisionHash     string `json:"revision_hash"`
	ToolchainVersion string `json:"toolchain_version"`
	ProgramVersion   string `json:"program_version"`
	Succeeded        int    `json:"succeeded"`
	Failed           int    `json:"failed"`
}
