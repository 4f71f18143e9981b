package registry

import (
	"context"
	"sync"
	"time"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/pkg/routine"
	"github.com/go-upf/upf/resolver"
	"github.com/go-upf/upf/version"
)

// Backend persists the manifest table outside the process. Persistence is
// best effort: a failed write is logged, never surfaced to the caller, and
// the in-memory table stays authoritative.
type Backend interface {
	Save(ctx context.Context, entry manifest.Entry) error
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context) ([]manifest.Entry, error)
}

// Plugin is the external view of one registered plugin.
type Plugin struct {
	Manifest     *manifest.Manifest `json:"manifest"`
	RegisteredAt time.Time          `json:"registered_at"`
	Health       health.Record      `json:"health"`
}

// ListFilter narrows ListPlugins; zero value matches everything.
type ListFilter struct {
	Type      manifest.Type `json:"type,omitempty"`
	Interface string        `json:"interface,omitempty"`
}

// RequirementCheck is one row of a validation dry run.
type RequirementCheck struct {
	Interface  string `json:"interface"`
	Range      string `json:"range"`
	Optional   bool   `json:"optional"`
	Resolvable bool   `json:"resolvable"`
	Provider   string `json:"provider,omitempty"`
	Version    string `json:"version,omitempty"`
}

// Validation reports whether a manifest could register right now, without
// mutating anything.
type Validation struct {
	Valid        bool               `json:"valid"`
	Error        string             `json:"error,omitempty"`
	Requirements []RequirementCheck `json:"requirements,omitempty"`
}

// ResolutionUpdate is one frame of a resolution watch: the consumer's full
// binding set after a change, or a terminal error when the consumer itself
// goes away.
type ResolutionUpdate struct {
	ConsumerID string                       `json:"consumer_id"`
	Bindings   map[string]*resolver.Binding `json:"bindings,omitempty"`
	Err        string                       `json:"error,omitempty"`
	At         time.Time                    `json:"at"`
}

type Registry struct {
	store    *manifest.Store
	tracker  *health.Tracker
	resolver *resolver.Resolver
	hub      *hub
	backend  Backend
	logger   logger.Logger
	now      func() time.Time

	// serializes registry-level mutations so events are published in the
	// order mutations are applied
	mu sync.Mutex

	// coalescing trigger for dependency-health recomputation
	kick chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	trackerOpts []health.TrackerOption
	storeOpts   []manifest.StoreOption
	buffer      int
}

type Option func(*Registry)

func WithBackend(b Backend) Option {
	return func(r *Registry) {
		r.backend = b
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

func WithTrackerOptions(opts ...health.TrackerOption) Option {
	return func(r *Registry) {
		r.trackerOpts = append(r.trackerOpts, opts...)
	}
}

func WithStoreOptions(opts ...manifest.StoreOption) Option {
	return func(r *Registry) {
		r.storeOpts = append(r.storeOpts, opts...)
	}
}

func WithBuffer(n int) Option {
	return func(r *Registry) {
		r.buffer = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(prober health.Prober, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		logger: logger.GetLogger(),
		now:    time.Now,
		kick:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		buffer: 64,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.store = manifest.NewStore(r.storeOpts...)
	r.hub = newHub(r.buffer)
	trackerOpts := append([]health.TrackerOption{
		health.OnTransition(r.onTransition),
		health.OnExhausted(r.onExhausted),
		health.TrackerLogger(r.logger),
	}, r.trackerOpts...)
	r.tracker = health.NewTracker(prober, trackerOpts...)
	r.resolver = resolver.New(r.store, r.tracker)
	routine.GoSafe(ctx, r.recomputeLoop)
	return r
}

// Restore loads persisted manifests from the backend into the store and
// starts tracking each of them. Meant to run once before serving.
func (r *Registry) Restore(ctx context.Context) error {
	if r.backend == nil {
		return nil
	}
	entries, err := r.backend.Load(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := r.store.Register(entry.Manifest); err != nil {
			r.logger.Log(ctx, logger.WarnLevel,
				logger.Fields(logger.Plugin(entry.Manifest.ID), logger.Error(err)),
				"restore skipped manifest")
			continue
		}
		r.tracker.Track(entry.Manifest.ID, entry.Manifest.Endpoint)
	}
	return nil
}

func (r *Registry) Register(ctx context.Context, m *manifest.Manifest) (*Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.store.Register(m)
	if err != nil {
		return nil, err
	}
	r.persist(ctx, entry)
	// registration enters the hub before the tracker can emit the first
	// transition, keeping per-plugin event order
	r.hub.publish(Event{
		Type:     EventRegistered,
		PluginID: entry.Manifest.ID,
		Manifest: entry.Manifest,
		At:       r.now(),
	})
	rec := r.tracker.Track(entry.Manifest.ID, entry.Manifest.Endpoint)
	r.recompute()
	return &Plugin{Manifest: entry.Manifest, RegisteredAt: entry.RegisteredAt, Health: rec}, nil
}

func (r *Registry) Unregister(ctx context.Context, id string) error {
	return r.unregister(ctx, id, ReasonRequested)
}

func (r *Registry) unregister(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.store.Unregister(id)
	if err != nil {
		return err
	}
	r.tracker.Forget(id)
	if r.backend != nil {
		if err := r.backend.Delete(ctx, id); err != nil {
			r.logger.Log(ctx, logger.ErrorLevel,
				logger.Fields(logger.Plugin(id), logger.Error(err)),
				"backend delete failed")
		}
	}
	r.hub.publish(Event{
		Type:     EventUnregistered,
		PluginID: id,
		Manifest: entry.Manifest,
		Reason:   reason,
		At:       r.now(),
	})
	r.recompute()
	return nil
}

// UpdateManifest atomically replaces the manifest for id. Unless force is
// set, a replacement that would leave a healthy dependent's required,
// currently resolvable requirement without any compatible provider is
// rejected.
func (r *Registry) UpdateManifest(ctx context.Context, id string, m *manifest.Manifest, force bool) (*Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !force {
		if err := r.replacementGuard(ctx, id, m); err != nil {
			return nil, err
		}
	}
	old, ok := r.store.Get(id)
	entry, err := r.store.Replace(id, m)
	if err != nil {
		return nil, err
	}
	if ok && old.Manifest.Endpoint != entry.Manifest.Endpoint {
		r.tracker.Track(id, entry.Manifest.Endpoint)
	}
	r.persist(ctx, entry)
	r.hub.publish(Event{
		Type:     EventUpdated,
		PluginID: id,
		Manifest: entry.Manifest,
		At:       r.now(),
	})
	r.recompute()
	rec, _ := r.tracker.Get(id)
	return &Plugin{Manifest: entry.Manifest, RegisteredAt: entry.RegisteredAt, Health: rec}, nil
}

// replacementGuard simulates the manifest table with the replacement
// applied and rejects when a live dependent would lose its only compatible
// provider for a required requirement it can resolve today.
func (r *Registry) replacementGuard(ctx context.Context, id string, m *manifest.Manifest) error {
	for _, dep := range r.store.List() {
		if dep.Manifest.ID == id {
			continue
		}
		state := r.tracker.State(dep.Manifest.ID)
		if state != health.StateHealthy && state != health.StateDegraded {
			continue
		}
		for _, req := range dep.Manifest.Requires {
			if req.Optional {
				continue
			}
			cur, err := r.resolver.ResolveOne(ctx, req)
			if err != nil || cur == nil || cur.Provider != id {
				continue
			}
			if !r.wouldResolve(req, id, m) {
				return errors.Downgrade(id, req.Interface)
			}
		}
	}
	return nil
}

// wouldResolve answers requirement resolvability against the hypothetical
// table where replacedID carries replacement instead of its stored
// manifest.
func (r *Registry) wouldResolve(req manifest.Requirement, replacedID string, replacement *manifest.Manifest) bool {
	var candidates []version.Candidate
	add := func(m *manifest.Manifest, at time.Time) {
		for _, p := range m.Provided(req.Interface) {
			candidates = append(candidates, version.Candidate{
				Provider:     m.ID,
				Endpoint:     m.Endpoint,
				Version:      p.Version,
				Priority:     m.Priority,
				RegisteredAt: at,
			})
		}
	}
	for _, entry := range r.store.List() {
		if r.tracker.State(entry.Manifest.ID) != health.StateHealthy {
			continue
		}
		if entry.Manifest.ID == replacedID {
			add(replacement, entry.RegisteredAt)
			continue
		}
		add(entry.Manifest, entry.RegisteredAt)
	}
	best, err := version.SelectBest(candidates, req.VersionRange)
	return err == nil && best != nil
}

func (r *Registry) GetPlugin(_ context.Context, id string) (*Plugin, error) {
	entry, ok := r.store.Get(id)
	if !ok {
		return nil, errors.NotFound(id)
	}
	rec, _ := r.tracker.Get(id)
	return &Plugin{Manifest: entry.Manifest, RegisteredAt: entry.RegisteredAt, Health: rec}, nil
}

func (r *Registry) ListPlugins(_ context.Context, filter ListFilter) []*Plugin {
	var out []*Plugin
	for _, entry := range r.store.List() {
		if filter.Type != "" && entry.Manifest.Type != filter.Type {
			continue
		}
		if filter.Interface != "" && len(entry.Manifest.Provided(filter.Interface)) == 0 {
			continue
		}
		rec, _ := r.tracker.Get(entry.Manifest.ID)
		out = append(out, &Plugin{Manifest: entry.Manifest, RegisteredAt: entry.RegisteredAt, Health: rec})
	}
	return out
}

// ResolveDependencies resolves every requirement of a registered consumer.
func (r *Registry) ResolveDependencies(ctx context.Context, consumerID string, opts ...resolver.Option) (map[string]*resolver.Binding, error) {
	entry, ok := r.store.Get(consumerID)
	if !ok {
		return nil, errors.NotFound(consumerID)
	}
	return r.resolver.ResolveAll(ctx, entry.Manifest, opts...)
}

// Resolve answers one ad hoc requirement without a registered consumer.
func (r *Registry) Resolve(ctx context.Context, req manifest.Requirement, opts ...resolver.Option) (*resolver.Binding, error) {
	return r.resolver.ResolveOne(ctx, req, opts...)
}

// ValidateManifest dry-runs registration: structural validation, duplicate
// check, and per-requirement resolvability. Nothing is stored.
func (r *Registry) ValidateManifest(ctx context.Context, m *manifest.Manifest) *Validation {
	v := &Validation{Valid: true}
	if err := m.Validate(); err != nil {
		v.Valid = false
		v.Error = errors.FromError(err).Message
		return v
	}
	if _, ok := r.store.Get(m.ID); ok {
		v.Valid = false
		v.Error = "plugin id already registered"
		return v
	}
	for _, req := range m.Requires {
		check := RequirementCheck{
			Interface: req.Interface,
			Range:     req.VersionRange,
			Optional:  req.Optional,
		}
		binding, err := r.resolver.ResolveOne(ctx, manifest.Requirement{
			Interface:    req.Interface,
			VersionRange: req.VersionRange,
			Optional:     true,
		})
		if err == nil && binding != nil {
			check.Resolvable = true
			check.Provider = binding.Provider
			check.Version = binding.Version
		}
		v.Requirements = append(v.Requirements, check)
	}
	return v
}

// WatchHealth subscribes to lifecycle and health-transition events, scoped
// to one plugin when pluginID is non-empty.
func (r *Registry) WatchHealth(pluginID string) *Subscription {
	return r.hub.subscribe(func(e Event) bool {
		if pluginID != "" && e.PluginID != pluginID {
			return false
		}
		switch e.Type {
		case EventHealth, EventRegistered, EventUnregistered, EventUpdated:
			return true
		}
		return false
	})
}

// WatchResolution re-resolves one consumer's requirements after every
// registry change and streams the binding set whenever it differs from the
// last one delivered. The stream ends with a terminal error frame when the
// consumer is unregistered, or silently when ctx is done.
func (r *Registry) WatchResolution(ctx context.Context, consumerID string) (<-chan ResolutionUpdate, error) {
	if _, ok := r.store.Get(consumerID); !ok {
		return nil, errors.NotFound(consumerID)
	}
	out := make(chan ResolutionUpdate, 1)
	sub := r.hub.subscribe(nil)
	routine.GoSafe(ctx, func() {
		defer close(out)
		defer sub.Cancel()
		var last map[string]*resolver.Binding
		var sent bool
		send := func(u ResolutionUpdate) bool {
			select {
			case out <- u:
				return true
			case <-ctx.Done():
				return false
			case <-r.ctx.Done():
				return false
			}
		}
		emit := func() bool {
			entry, ok := r.store.Get(consumerID)
			if !ok {
				send(ResolutionUpdate{ConsumerID: consumerID, Err: errors.NotFound(consumerID).Message, At: r.now()})
				return false
			}
			bindings, err := r.resolver.ResolveAll(ctx, entry.Manifest)
			if err != nil {
				if sent && bindingsEqual(last, nil) {
					return true
				}
				last = nil
				sent = true
				return send(ResolutionUpdate{ConsumerID: consumerID, Err: errors.FromError(err).Message, At: r.now()})
			}
			if sent && bindingsEqual(last, bindings) {
				return true
			}
			last = bindings
			sent = true
			return send(ResolutionUpdate{ConsumerID: consumerID, Bindings: bindings, At: r.now()})
		}
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if e.Type == EventUnregistered && e.PluginID == consumerID {
					send(ResolutionUpdate{ConsumerID: consumerID, Err: "consumer unregistered: " + e.Reason, At: r.now()})
					return
				}
				if !emit() {
					return
				}
			}
		}
	})
	return out, nil
}

func bindingsEqual(a, b map[string]*resolver.Binding) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if *av != *bv {
			return false
		}
	}
	return true
}

func (r *Registry) Tracker() *health.Tracker {
	return r.tracker
}

func (r *Registry) Close() {
	r.cancel()
	r.tracker.Stop()
	r.hub.close()
}

func (r *Registry) persist(ctx context.Context, entry manifest.Entry) {
	if r.backend == nil {
		return
	}
	if err := r.backend.Save(ctx, entry); err != nil {
		r.logger.Log(ctx, logger.ErrorLevel, map[string]interface{}{
			"plugin": entry.Manifest.ID,
			"error":  err.Error(),
		}, "backend save failed")
	}
}

// onTransition runs inside the tracker's emit section; anything heavier
// than publish goes through the recompute trigger.
func (r *Registry) onTransition(rec health.Record) {
	out := rec
	r.hub.publish(Event{
		Type:     EventHealth,
		PluginID: rec.PluginID,
		Health:   &out,
		At:       r.now(),
	})
	r.recompute()
}

func (r *Registry) onExhausted(pluginID string) {
	routine.GoSafe(r.ctx, func() {
		err := r.unregister(r.ctx, pluginID, ReasonExhausted)
		if err != nil && errors.Reason(err) != errors.PluginNotFound {
			r.logger.Log(r.ctx, logger.ErrorLevel, map[string]interface{}{
				"plugin": pluginID,
				"error":  err.Error(),
			}, "exhaustion unregister failed")
		}
	})
}

func (r *Registry) recompute() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Registry) recomputeLoop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.kick:
			r.recomputeDependencyHealth()
		}
	}
}

// recomputeDependencyHealth propagates provider outages to consumers: a
// plugin whose optional requirement has registered providers but no
// healthy one reads DEGRADED until a provider recovers. Transitions this
// causes retrigger the loop, which converges because SetDependencyDown is
// a no-op once the flag matches.
func (r *Registry) recomputeDependencyHealth() {
	for _, entry := range r.store.List() {
		down := false
		for _, req := range entry.Manifest.Requires {
			if !req.Optional {
				continue
			}
			if len(r.store.Providers(req.Interface)) == 0 {
				continue
			}
			binding, err := r.resolver.ResolveOne(r.ctx, manifest.Requirement{
				Interface:    req.Interface,
				VersionRange: req.VersionRange,
				Optional:     true,
			})
			if err == nil && binding == nil {
				down = true
				break
			}
		}
		r.tracker.SetDependencyDown(entry.Manifest.ID, down)
	}
}
