package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector(true)
	c.RecordBuild("linux", "amd64", "succeeded", 2*time.Second)
	c.RecordBuild("linux", "amd64", "succeeded", 3*time.Second)
	c.RecordBuild("windows", "amd64", "failed", time.Second)
	c.RecordCompression("succeeded")
	c.RecordPublish("s3", "failed")
	c.RecordBatch(2, time.Unix(1714575845, 0))

	if got := testutil.ToFloat64(c.builds.WithLabelValues("linux", "amd64", "succeeded")); got != 2 {
		t.Errorf("linux builds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.targets); got != 2 {
		t.Errorf("batch targets = %v", got)
	}
	if got := testutil.ToFloat64(c.lastRun); got != 1714575845 {
		t.Errorf("last run = %v", got)
	}
	if got := testutil.CollectAndCount(c.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(c.publishes.WithLabelValues("s3", "failed")); got != 1 {
		t.Errorf("publishes = %v", got)
	}
}

func TestDisabledAndNilCollector(t *testing.T) {
	for _, c := range []*Collector{nil, NewCollector(false)} {
		c.RecordBuild("linux", "amd64", "succeeded", time.Second)
		c.RecordBatch(1, time.Now())
		c.RecordCompression("failed")
		c.RecordPublish("sftp", "succeeded")
		if err := c.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if n, err := testutil.GatherAndCount(c.Registry()); err != nil || n != 0 {
			t.Fatalf("disabled collector gathered %d series (%v)", n, err)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector(true)
	c.RecordBuild("darwin", "arm64", "succeeded", time.Second)
	path := filepath.Join(t.TempDir(), "xbuild.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `xbuild_builds_total{arch="arm64",platform="darwin",status="succeeded"} 1`) {
		t.Fatalf("textfile missing build counter:\n%s", data)
	}
}

func TestSpansWithoutProvider(t *testing.T) {
	ctx, batch := StartBatch(context.Background(), "transfer", 2)
	_, span := StartBuild(ctx, "linux", "amd64")
	EndSpan(span, "failed", errors.New("exit 1"))
	EndSpan(batch, "succeeded", nil)
}
