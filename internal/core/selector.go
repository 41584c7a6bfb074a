package core

import (
	"context"
	"strings"
)

// SelectionRequest is what the user asked to build. Empty strings mean
// "not given".
type SelectionRequest struct {
	Platform string
	Arch     string
	All      bool
}

// HostDetector reports the host's own platform and architecture.
type HostDetector interface {
	HostTarget(ctx context.Context) (Target, error)
}

// Selector narrows a matrix down to the targets of one run.
type Selector struct {
	Host HostDetector
}

// Select returns the targets req refers to. Unknown platforms or
// architectures, invalid pairs, and --all mixed with explicit filters are
// configuration errors. The host is only queried when a value is missing.
func (s *Selector) Select(ctx context.Context, req SelectionRequest, m *TargetMatrix) (TargetSet, error) {
	platform := strings.TrimSpace(req.Platform)
	arch := strings.TrimSpace(req.Arch)

	if req.All {
		if platform != "" || arch != "" {
			return nil, configErrorf("--all cannot be combined with --platform or --arch")
		}
		return m.Targets(), nil
	}

	if platform != "" && !m.HasPlatform(platform) {
		return nil, configErrorf("unknown platform %q (supported: %s)", platform, strings.Join(m.Platforms(), ", "))
	}
	if arch != "" && !m.HasArchitecture(arch) {
		return nil, configErrorf("unknown architecture %q (supported: %s)", arch, strings.Join(m.Architectures(), ", "))
	}

	if platform == "" || arch == "" {
		host, err := s.Host.HostTarget(ctx)
		if err != nil {
			return nil, toolchainErrorf(err, "detect host target")
		}
		if platform == "" {
			platform = host.Platform
		}
		if arch == "" {
			arch = host.Arch
		}
	}

	t := Target{Platform: platform, Arch: arch}
	if !m.Contains(t) {
		return nil, configErrorf("architecture %q is not supported on platform %q (valid: %s)",
			arch, platform, strings.Join(m.ArchitecturesFor(platform), ", "))
	}
	return TargetSet{t}, nil
}
