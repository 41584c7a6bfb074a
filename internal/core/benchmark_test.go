package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/3cpo-dev/xbuild/internal/telemetry"
)

func BenchmarkParseDistList(b *testing.B) {
	var sb strings.Builder
	for _, p := range []string{"aix", "android", "darwin", "dragonfly", "freebsd", "illumos", "ios", "js", "linux", "netbsd", "openbsd", "plan9", "solaris", "wasip1", "windows"} {
		for _, a := range []string{"386", "amd64", "arm", "arm64", "loong64", "mips", "ppc64", "riscv64", "s390x"} {
			sb.WriteString(p + "/" + a + "\n")
		}
	}
	out := []byte(sb.String())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseDistList(out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLinkerFlags(b *testing.B) {
	md := testMetadata()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = md.LDFlags("main", "-s", "-w")
	}
}

func BenchmarkMetricsRecording(b *testing.B) {
	metrics := telemetry.NewCollector(true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		status := "succeeded"
		if i%10 == 0 {
			status = "failed"
		}
		metrics.RecordBuild("linux", "amd64", status, time.Millisecond)
	}
}

func BenchmarkSelectAll(b *testing.B) {
	m, err := ParseDistList([]byte(testDistList))
	if err != nil {
		b.Fatal(err)
	}
	s := &Selector{Host: &fakeHost{target: Target{"linux", "amd64"}}}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Select(ctx, SelectionRequest{All: true}, m); err != nil {
			b.Fatal(err)
		}
	}
}
