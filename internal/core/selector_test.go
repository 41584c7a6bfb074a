package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeHost struct {
	target Target
	err    error
	calls  int
}

func (f *fakeHost) HostTarget(ctx context.Context) (Target, error) {
	f.calls++
	return f.target, f.err
}

func TestSelect(t *testing.T) {
	m := mustMatrix(t, testDistList)
	tests := []struct {
		name      string
		req       SelectionRequest
		want      []string
		wantErr   error
		errSubstr string
		hostCalls int
	}{
		{name: "host only", req: SelectionRequest{}, want: []string{"linux/amd64"}, hostCalls: 1},
		{name: "platform defaults arch", req: SelectionRequest{Platform: "windows"}, want: []string{"windows/amd64"}, hostCalls: 1},
		{name: "arch defaults platform", req: SelectionRequest{Arch: "arm64"}, want: []string{"linux/arm64"}, hostCalls: 1},
		{name: "both given", req: SelectionRequest{Platform: "darwin", Arch: "arm64"}, want: []string{"darwin/arm64"}},
		{name: "all", req: SelectionRequest{All: true}, want: []string{
			"aix/ppc64", "darwin/amd64", "darwin/arm64", "linux/386", "linux/amd64", "linux/arm64",
			"windows/386", "windows/amd64", "windows/arm64",
		}},
		{name: "unknown platform", req: SelectionRequest{Platform: "plan10"}, wantErr: ErrConfiguration, errSubstr: "plan10"},
		{name: "unknown arch", req: SelectionRequest{Arch: "z80"}, wantErr: ErrConfiguration, errSubstr: "z80"},
		{name: "invalid pair", req: SelectionRequest{Platform: "darwin", Arch: "386"}, wantErr: ErrConfiguration, errSubstr: "darwin"},
		{name: "all with platform", req: SelectionRequest{All: true, Platform: "linux"}, wantErr: ErrConfiguration},
		{name: "all with arch", req: SelectionRequest{All: true, Arch: "amd64"}, wantErr: ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{target: Target{"linux", "amd64"}}
			got, err := (&Selector{Host: host}).Select(context.Background(), tt.req, m)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("error %q does not name %q", err, tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if !reflect.DeepEqual(got.Strings(), tt.want) {
				t.Fatalf("got %v, want %v", got.Strings(), tt.want)
			}
			if host.calls != tt.hostCalls {
				t.Fatalf("host queried %d times, want %d", host.calls, tt.hostCalls)
			}
		})
	}
}

func TestSelectAllIsNotCrossProduct(t *testing.T) {
	m := mustMatrix(t, testDistList)
	got, err := (&Selector{Host: &fakeHost{}}).Select(context.Background(), SelectionRequest{All: true}, m)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for _, tg := range got {
		if !m.Contains(tg) {
			t.Errorf("%s is not a valid pair", tg)
		}
	}
	if len(got) >= len(m.Platforms())*len(m.Architectures()) {
		t.Fatalf("selection looks like a cross product: %d targets", len(got))
	}
}

func TestSelectHostFailure(t *testing.T) {
	m := mustMatrix(t, testDistList)
	host := &fakeHost{err: errors.New("go env failed")}
	_, err := (&Selector{Host: host}).Select(context.Background(), SelectionRequest{Platform: "linux"}, m)
	if !errors.Is(err, ErrToolchainUnavailable) {
		t.Fatalf("expected ErrToolchainUnavailable, got %v", err)
	}
}

func TestSelectHostNotInMatrix(t *testing.T) {
	m := mustMatrix(t, "linux/amd64\n")
	host := &fakeHost{target: Target{"freebsd", "riscv64"}}
	_, err := (&Selector{Host: host}).Select(context.Background(), SelectionRequest{}, m)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
