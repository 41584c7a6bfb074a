package core

import (
	"errors"
	"sort"
	"strings"
)

// Target is one (platform, architecture) pair, e.g. linux/amd64.
type Target struct {
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
}

func (t Target) String() string { return t.Platform + "/" + t.Arch }

// ParseTarget parses "platform/arch". Surrounding whitespace is trimmed;
// whitespace inside either half makes the line invalid.
func ParseTarget(s string) (Target, bool) {
	platform, arch, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || platform == "" || arch == "" || strings.Contains(arch, "/") {
		return Target{}, false
	}
	if strings.ContainsAny(platform, " \t\r\n") || strings.ContainsAny(arch, " \t\r\n") {
		return Target{}, false
	}
	return Target{Platform: platform, Arch: arch}, true
}

func targetLess(a, b Target) bool {
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	return a.Arch < b.Arch
}

// TargetSet is an ordered, duplicate-free list of targets.
type TargetSet []Target

// NewTargetSet sorts targets by platform then architecture and drops duplicates.
func NewTargetSet(targets ...Target) TargetSet {
	set := make(TargetSet, 0, len(targets))
	seen := make(map[Target]struct{}, len(targets))
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		set = append(set, t)
	}
	sort.Slice(set, func(i, j int) bool { return targetLess(set[i], set[j]) })
	return set
}

// Strings renders every target as "platform/arch".
func (s TargetSet) Strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.String()
	}
	return out
}

var errEmptyMatrix = errors.New("target matrix has no entries")

// TargetMatrix is the set of targets the toolchain supports, grouped by
// platform. It is immutable once built.
type TargetMatrix struct {
	byPlatform map[string]map[string]struct{}
	arches     map[string]struct{}
	size       int
}

// NewTargetMatrix builds a matrix from the given pairs. An empty input is
// rejected since nothing downstream can work with it.
func NewTargetMatrix(targets []Target) (*TargetMatrix, error) {
	m := &TargetMatrix{
		byPlatform: make(map[string]map[string]struct{}),
		arches:     make(map[string]struct{}),
	}
	for _, t := range targets {
		if t.Platform == "" || t.Arch == "" {
			continue
		}
		archSet, ok := m.byPlatform[t.Platform]
		if !ok {
			archSet = make(map[string]struct{})
			m.byPlatform[t.Platform] = archSet
		}
		if _, dup := archSet[t.Arch]; dup {
			continue
		}
		archSet[t.Arch] = struct{}{}
		m.arches[t.Arch] = struct{}{}
		m.size++
	}
	if m.size == 0 {
		return nil, errEmptyMatrix
	}
	return m, nil
}

// Len is the number of valid pairs.
func (m *TargetMatrix) Len() int { return m.size }

// Platforms lists every platform key, sorted.
func (m *TargetMatrix) Platforms() []string { return sortedKeys(m.byPlatform) }

// Architectures lists the flat set of architectures seen under any platform, sorted.
func (m *TargetMatrix) Architectures() []string { return sortedKeys(m.arches) }

// ArchitecturesFor lists the architectures valid for platform, sorted.
func (m *TargetMatrix) ArchitecturesFor(platform string) []string {
	return sortedKeys(m.byPlatform[platform])
}

func (m *TargetMatrix) HasPlatform(platform string) bool {
	_, ok := m.byPlatform[platform]
	return ok
}

func (m *TargetMatrix) HasArchitecture(arch string) bool {
	_, ok := m.arches[arch]
	return ok
}

// Contains reports whether t is a valid pair, i.e. its architecture is
// supported for its platform specifically.
func (m *TargetMatrix) Contains(t Target) bool {
	_, ok := m.byPlatform[t.Platform][t.Arch]
	return ok
}

// Targets returns every valid pair in deterministic order.
func (m *TargetMatrix) Targets() TargetSet {
	set := make(TargetSet, 0, m.size)
	for _, p := range m.Platforms() {
		for _, a := range m.ArchitecturesFor(p) {
			set = append(set, Target{Platform: p, Arch: a})
		}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
