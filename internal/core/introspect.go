package core

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Introspector discovers the target matrix from the installed toolchain.
type Introspector struct {
	Go *GoToolchain
}

// Discover runs `go tool dist list` and builds the matrix from its output.
func (i *Introspector) Discover(ctx context.Context) (*TargetMatrix, error) {
	out, err := i.Go.DistList(ctx)
	if err != nil {
		return nil, toolchainErrorf(err, "query supported targets")
	}
	m, err := ParseDistList(out)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("targets", m.Len()).
		Int("platforms", len(m.Platforms())).
		Int("architectures", len(m.Architectures())).
		Msg("Discovered target matrix")
	return m, nil
}

// ParseDistList turns "platform/arch" lines into a matrix. Blank and
// malformed lines are skipped; no usable line at all is an error.
func ParseDistList(out []byte) (*TargetMatrix, error) {
	var targets []Target
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, ok := ParseTarget(line)
		if !ok {
			log.Debug().Str("line", line).Msg("Skipping malformed target line")
			continue
		}
		targets = append(targets, t)
	}
	if err := s.Err(); err != nil {
		return nil, toolchainErrorf(err, "read target list")
	}
	m, err := NewTargetMatrix(targets)
	if err != nil {
		return nil, toolchainErrorf(err, "toolchain reported no targets")
	}
	return m, nil
}
