package core

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/3cpo-dev/xbuild/internal/telemetry"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Compression methods accepted in configuration and on the command line.
const (
	CompressNone = "none"
	CompressUPX  = "upx"
	CompressZstd = "zstd"
)

// Compressor post-processes a built artifact.
type Compressor interface {
	Compress(ctx context.Context, artifact string) error
}

// NewCompressor returns the compressor for method, or nil for "none".
func NewCompressor(method string, r Runner, level int) (Compressor, error) {
	switch method {
	case "", CompressNone:
		return nil, nil
	case CompressUPX:
		return &UPX{Runner: r, Level: level}, nil
	case CompressZstd:
		return &Zstd{Level: level}, nil
	default:
		return nil, configErrorf("unknown compression method %q", method)
	}
}

// UPX packs the executable in place with the upx binary.
type UPX struct {
	Runner Runner
	Binary string // defaults to "upx"
	Level  int    // 1-9, defaults to 9
}

func (u *UPX) Compress(ctx context.Context, artifact string) error {
	bin := u.Binary
	if bin == "" {
		bin = "upx"
	}
	level := u.Level
	if level < 1 || level > 9 {
		level = 9
	}
	cmd := Command{Name: bin, Args: []string{"-" + strconv.Itoa(level), artifact}}
	res, err := u.Runner.Run(ctx, cmd)
	if err := checkResult(cmd, res, err); err != nil {
		return newError(ErrCompression, err, "upx %s", artifact)
	}
	return nil
}

// Zstd writes a zstd-compressed copy of the artifact next to it as <artifact>.zst.
type Zstd struct {
	Level int // mapped onto the encoder's speed levels, defaults to the library default
}

func (z *Zstd) Compress(ctx context.Context, artifact string) error {
	if err := ctx.Err(); err != nil {
		return newError(ErrCompression, err, "zstd %s", artifact)
	}
	if err := z.compressFile(artifact, artifact+".zst"); err != nil {
		os.Remove(artifact + ".zst")
		return newError(ErrCompression, err, "zstd %s", artifact)
	}
	return nil
}

func (z *Zstd) compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := z.encode(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (z *Zstd) encode(w io.Writer, r io.Reader) error {
	opts := []zstd.EOption{}
	if z.Level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.Level)))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// DefaultCompressPlatforms are the platforms compressed when none are configured.
var DefaultCompressPlatforms = []string{"windows", "darwin"}

// CompressionStage applies a Compressor to the successful outcomes of a
// batch. Compression is best effort: failures are logged and dropped and
// outcomes are never modified.
type CompressionStage struct {
	Compressor Compressor
	Platforms  []string
	Metrics    *telemetry.Collector
}

// Apply compresses eligible artifacts and returns how many were compressed.
func (s *CompressionStage) Apply(ctx context.Context, result BatchResult) int {
	if s == nil || s.Compressor == nil {
		return 0
	}
	platforms := s.Platforms
	if len(platforms) == 0 {
		platforms = DefaultCompressPlatforms
	}
	wanted := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		wanted[p] = true
	}

	n := 0
	for _, o := range result.Outcomes {
		if !o.Succeeded() || !wanted[o.Target.Platform] {
			continue
		}
		if err := s.Compressor.Compress(ctx, o.Artifact); err != nil {
			log.Debug().Err(err).Str("artifact", o.Artifact).Msg("Compression failed, keeping uncompressed artifact")
			s.Metrics.RecordCompression("failed")
			continue
		}
		s.Metrics.RecordCompression("succeeded")
		n++
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("Compressed artifacts")
	}
	return n
}
