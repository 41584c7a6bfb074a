package publish

import (
	"context"
	"fmt"
	"sort"

	"github.com/3cpo-dev/xbuild/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Publisher uploads a finished artifact somewhere outside the build host.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, artifact string) error
}

type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: map[string]Publisher{}}
}

func (r *Registry) Register(p Publisher) {
	r.publishers[p.Name()] = p
}

func (r *Registry) Get(name string) (Publisher, error) {
	p, ok := r.publishers[name]
	if !ok {
		return nil, fmt.Errorf("publisher not registered: %s", name)
	}
	return p, nil
}

// Names returns the registered publisher names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.publishers))
	for n := range r.publishers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int { return len(r.publishers) }

// Uploader sends artifacts to every registered publisher with retries.
// Failures are logged and counted, never returned.
type Uploader struct {
	Registry *Registry
	Retry    RetryConfig
	Metrics  *telemetry.Collector
}

// Result counts uploads per outcome.
type Result struct {
	Succeeded int
	Failed    int
}

func (u *Uploader) PublishAll(ctx context.Context, artifacts []string) Result {
	var res Result
	if u == nil || u.Registry == nil {
		return res
	}
	for _, artifact := range artifacts {
		for _, name := range u.Registry.Names() {
			p := u.Registry.publishers[name]
			err := Retry(ctx, u.Retry, name+" "+artifact, func(ctx context.Context) error {
				return p.Publish(ctx, artifact)
			})
			if err != nil {
				log.Error().Err(err).Str("publisher", name).Str("artifact", artifact).Msg("Publish failed")
				u.Metrics.RecordPublish(name, "failed")
				res.Failed++
				continue
			}
			log.Info().Str("publisher", name).Str("artifact", artifact).Msg("Published")
			u.Metrics.RecordPublish(name, "succeeded")
			res.Succeeded++
		}
	}
	return res
}
