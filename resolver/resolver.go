package resolver

import (
	"context"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/version"
)

// Binding is the resolved answer for one requirement: a value, not a
// lease. It is invalidated implicitly whenever the provider's manifest or
// health changes; watchers receive the replacement.
type Binding struct {
	Interface string       `json:"interface"`
	Range     string       `json:"range"`
	Provider  string       `json:"provider"`
	Endpoint  string       `json:"endpoint"`
	Version   string       `json:"version"`
	Health    health.State `json:"health"`
}

// Source is the provider view the resolver works against; satisfied by
// *manifest.Store.
type Source interface {
	Providers(name string) []manifest.Entry
}

// States reports current plugin health; satisfied by *health.Tracker.
type States interface {
	State(pluginID string) health.State
}

type Resolver struct {
	src    Source
	states States
}

func New(src Source, states States) *Resolver {
	return &Resolver{
		src:    src,
		states: states,
	}
}

type options struct {
	bestEffort bool
}

type Option func(*options)

// BestEffort lets DEGRADED providers satisfy a requirement when no healthy
// provider exists. Off by default; degraded providers never serve plain
// required resolution.
func BestEffort() Option {
	return func(o *options) {
		o.bestEffort = true
	}
}

// ResolveOne finds the best compatible healthy provider for a requirement.
// Returns (nil, nil) for an optional requirement nothing can satisfy.
func (r *Resolver) ResolveOne(ctx context.Context, req manifest.Requirement, opts ...Option) (*Binding, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromError(err)
	}

	providers := r.src.Providers(req.Interface)
	healthy := make([]version.Candidate, 0, len(providers))
	degraded := make([]version.Candidate, 0)
	for _, entry := range providers {
		state := r.states.State(entry.Manifest.ID)
		if state != health.StateHealthy && state != health.StateDegraded {
			continue
		}
		for _, p := range entry.Manifest.Provided(req.Interface) {
			cand := version.Candidate{
				Provider:     entry.Manifest.ID,
				Endpoint:     entry.Manifest.Endpoint,
				Version:      p.Version,
				Priority:     entry.Manifest.Priority,
				RegisteredAt: entry.RegisteredAt,
			}
			if state == health.StateHealthy {
				healthy = append(healthy, cand)
			} else {
				degraded = append(degraded, cand)
			}
		}
	}

	best, err := version.SelectBest(healthy, req.VersionRange)
	if err != nil {
		return nil, err
	}
	state := health.StateHealthy
	if best == nil && o.bestEffort {
		best, err = version.SelectBest(degraded, req.VersionRange)
		if err != nil {
			return nil, err
		}
		state = health.StateDegraded
	}
	if best == nil {
		if req.Optional {
			return nil, nil
		}
		return nil, errors.NoProvider(req.Interface, req.VersionRange)
	}
	return &Binding{
		Interface: req.Interface,
		Range:     req.VersionRange,
		Provider:  best.Provider,
		Endpoint:  best.Endpoint,
		Version:   best.Version,
		Health:    state,
	}, nil
}

// ResolveAll resolves every requirement of a manifest, keyed by interface
// name. All-or-nothing for required deps: one failure fails the whole
// call, so a consumer never starts half-wired. Optional requirements with
// no provider are simply absent from the result.
func (r *Resolver) ResolveAll(ctx context.Context, m *manifest.Manifest, opts ...Option) (map[string]*Binding, error) {
	bindings := make(map[string]*Binding, len(m.Requires))
	for _, req := range m.Requires {
		binding, err := r.ResolveOne(ctx, req, opts...)
		if err != nil {
			return nil, errors.Resolution(err)
		}
		if binding == nil {
			continue
		}
		bindings[req.Interface] = binding
	}
	return bindings, nil
}
