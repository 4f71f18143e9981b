package registry

import (
	"context"
	"testing"
	"time"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/manifest"
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	base := []Option{
		// probe loops stay idle: tests drive Apply directly
		WithTrackerOptions(health.Interval(time.Hour), health.Grace(0)),
	}
	r := New(health.ProbeFunc(func(context.Context, string, string) health.Signal {
		return health.SignalServing
	}), append(base, opts...)...)
	t.Cleanup(r.Close)
	return r
}

func storageManifest(id, ver string) *manifest.Manifest {
	return &manifest.Manifest{
		ID:      id,
		Version: ver,
		Type:    manifest.TypeInfrastructure,
		Provides: []manifest.Interface{
			{Name: "IStorage", Version: ver},
		},
		Endpoint: "127.0.0.1:50051",
	}
}

func appManifest(reqs ...manifest.Requirement) *manifest.Manifest {
	return &manifest.Manifest{
		ID:       "app",
		Version:  "1.0.0",
		Type:     manifest.TypeBusiness,
		Requires: reqs,
		Endpoint: "127.0.0.1:40001",
	}
}

func mustRegister(t *testing.T, r *Registry, m *manifest.Manifest) {
	t.Helper()
	if _, err := r.Register(context.TODO(), m); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestRegisterGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))

	p, err := r.GetPlugin(context.TODO(), "storage-pg")
	if err != nil {
		t.Fatal(err)
	}
	if p.Manifest.Version != "1.0.0" || p.Health.State != health.StateUnknown {
		t.Fatalf("plugin = %+v", p)
	}

	_, err = r.Register(context.TODO(), storageManifest("storage-pg", "1.1.0"))
	if errors.Reason(err) != errors.DuplicateID {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestUnregisterRemovesPlugin(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	if err := r.Unregister(context.TODO(), "storage-pg"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetPlugin(context.TODO(), "storage-pg"); errors.Reason(err) != errors.PluginNotFound {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
	if err := r.Unregister(context.TODO(), "storage-pg"); errors.Reason(err) != errors.PluginNotFound {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestListPluginsFilters(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, appManifest())

	if got := len(r.ListPlugins(context.TODO(), ListFilter{})); got != 2 {
		t.Fatalf("plugins = %d", got)
	}
	byType := r.ListPlugins(context.TODO(), ListFilter{Type: manifest.TypeBusiness})
	if len(byType) != 1 || byType[0].Manifest.ID != "app" {
		t.Fatalf("plugins = %+v", byType)
	}
	byIface := r.ListPlugins(context.TODO(), ListFilter{Interface: "IStorage"})
	if len(byIface) != 1 || byIface[0].Manifest.ID != "storage-pg" {
		t.Fatalf("plugins = %+v", byIface)
	}
}

func TestResolveDependencies(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, storageManifest2("storage-mongo", "1.1.0"))
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IStorage", VersionRange: ">=1.0.0"}))
	r.Tracker().Apply("storage-pg", health.SignalServing)
	r.Tracker().Apply("storage-mongo", health.SignalServing)

	bindings, err := r.ResolveDependencies(context.TODO(), "app")
	if err != nil {
		t.Fatal(err)
	}
	b := bindings["IStorage"]
	if b == nil || b.Provider != "storage-mongo" || b.Version != "1.1.0" {
		t.Fatalf("bindings = %+v", bindings)
	}
}

func storageManifest2(id, ver string) *manifest.Manifest {
	m := storageManifest(id, ver)
	m.Endpoint = "127.0.0.1:50052"
	return m
}

func TestValidateManifestDryRun(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	r.Tracker().Apply("storage-pg", health.SignalServing)

	v := r.ValidateManifest(context.TODO(), &manifest.Manifest{ID: "bad"})
	if v.Valid {
		t.Fatal("structurally invalid manifest passed")
	}

	v = r.ValidateManifest(context.TODO(), storageManifest("storage-pg", "2.0.0"))
	if v.Valid {
		t.Fatal("duplicate id passed")
	}

	v = r.ValidateManifest(context.TODO(), appManifest(
		manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"},
		manifest.Requirement{Interface: "IMetrics", VersionRange: "^1.0.0", Optional: true},
	))
	if !v.Valid || len(v.Requirements) != 2 {
		t.Fatalf("validation = %+v", v)
	}
	if !v.Requirements[0].Resolvable || v.Requirements[0].Provider != "storage-pg" {
		t.Fatalf("requirements = %+v", v.Requirements)
	}
	if v.Requirements[1].Resolvable {
		t.Fatalf("requirements = %+v", v.Requirements)
	}
	if _, err := r.GetPlugin(context.TODO(), "app"); errors.Reason(err) != errors.PluginNotFound {
		t.Fatal("dry run must not register")
	}
}

func TestUpdateManifestDowngradeGuard(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"}))
	r.Tracker().Apply("storage-pg", health.SignalServing)
	r.Tracker().Apply("app", health.SignalServing)

	// 2.0.0 falls out of app's ^1.0.0 range and no other provider exists
	_, err := r.UpdateManifest(context.TODO(), "storage-pg", storageManifest("storage-pg", "2.0.0"), false)
	if errors.Reason(err) != errors.VersionDowngrade {
		t.Fatalf("reason = %s", errors.Reason(err))
	}

	p, err := r.UpdateManifest(context.TODO(), "storage-pg", storageManifest("storage-pg", "2.0.0"), true)
	if err != nil {
		t.Fatal(err)
	}
	if p.Manifest.Version != "2.0.0" {
		t.Fatalf("plugin = %+v", p)
	}
}

func TestUpdateManifestCompatibleReplacement(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"}))
	r.Tracker().Apply("storage-pg", health.SignalServing)
	r.Tracker().Apply("app", health.SignalServing)

	if _, err := r.UpdateManifest(context.TODO(), "storage-pg", storageManifest("storage-pg", "1.2.0"), false); err != nil {
		t.Fatal(err)
	}
}

func TestWatchHealthDeliversLifecycleAndTransitions(t *testing.T) {
	r := newTestRegistry(t)
	sub := r.WatchHealth("storage-pg")
	defer sub.Cancel()

	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, appManifest()) // filtered out
	r.Tracker().Apply("storage-pg", health.SignalServing)

	e := <-sub.C
	if e.Type != EventRegistered || e.PluginID != "storage-pg" {
		t.Fatalf("event = %+v", e)
	}
	e = <-sub.C
	if e.Type != EventHealth || e.Health == nil || e.Health.State != health.StateHealthy {
		t.Fatalf("event = %+v", e)
	}
}

func TestExhaustionAutoUnregisters(t *testing.T) {
	r := newTestRegistry(t, WithTrackerOptions(health.FailureThreshold(1)))
	sub := r.WatchHealth("storage-pg")
	defer sub.Cancel()
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))

	r.Tracker().Apply("storage-pg", health.SignalError)

	waitFor(t, func() bool {
		_, err := r.GetPlugin(context.TODO(), "storage-pg")
		return errors.Reason(err) == errors.PluginNotFound
	})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.C:
			if e.Type != EventUnregistered {
				continue
			}
			if e.Reason != ReasonExhausted {
				t.Fatalf("event = %+v", e)
			}
			return
		case <-deadline:
			t.Fatal("no unregister event observed")
		}
	}
}

func TestOptionalProviderOutageDegradesConsumer(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, metricsManifest())
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IMetrics", VersionRange: "^1.0.0", Optional: true}))
	r.Tracker().Apply("metrics", health.SignalServing)
	r.Tracker().Apply("app", health.SignalServing)

	r.Tracker().Apply("metrics", health.SignalNotServing)
	waitFor(t, func() bool {
		return r.Tracker().State("app") == health.StateDegraded
	})

	r.Tracker().Apply("metrics", health.SignalServing)
	waitFor(t, func() bool {
		return r.Tracker().State("app") == health.StateHealthy
	})
}

func metricsManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ID:      "metrics",
		Version: "1.0.0",
		Type:    manifest.TypeInfrastructure,
		Provides: []manifest.Interface{
			{Name: "IMetrics", Version: "1.0.0"},
		},
		Endpoint: "127.0.0.1:50060",
	}
}

func TestWatchResolutionStreamsChanges(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IStorage", VersionRange: ">=1.0.0"}))
	r.Tracker().Apply("storage-pg", health.SignalServing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := r.WatchResolution(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}

	first := <-updates
	if first.Bindings["IStorage"] == nil || first.Bindings["IStorage"].Provider != "storage-pg" {
		t.Fatalf("update = %+v", first)
	}

	mustRegister(t, r, storageManifest2("storage-mongo", "1.1.0"))
	r.Tracker().Apply("storage-mongo", health.SignalServing)
	waitForUpdate(t, updates, func(u ResolutionUpdate) bool {
		b := u.Bindings["IStorage"]
		return b != nil && b.Provider == "storage-mongo"
	})

	if err := r.Unregister(context.TODO(), "app"); err != nil {
		t.Fatal(err)
	}
	waitForUpdate(t, updates, func(u ResolutionUpdate) bool {
		return u.Err != ""
	})
	if _, ok := <-updates; ok {
		// stream must terminate after the error frame
		for range updates {
		}
		t.Fatal("stream kept producing after terminal frame")
	}
}

func waitForUpdate(t *testing.T, updates <-chan ResolutionUpdate, cond func(ResolutionUpdate) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				t.Fatal("stream closed before expected update")
			}
			if cond(u) {
				return
			}
		case <-deadline:
			t.Fatal("expected update not observed")
		}
	}
}

func TestWatchResolutionUnknownConsumer(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.WatchResolution(context.TODO(), "ghost"); errors.Reason(err) != errors.PluginNotFound {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestWatchResolutionSurfacesInitialFailure(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, appManifest(manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := r.WatchResolution(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}

	// no provider for the required interface: the very first frame must
	// carry the resolution error, not silence
	waitForUpdate(t, updates, func(u ResolutionUpdate) bool {
		return u.Err != "" && u.Bindings == nil
	})

	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))
	r.Tracker().Apply("storage-pg", health.SignalServing)
	waitForUpdate(t, updates, func(u ResolutionUpdate) bool {
		b := u.Bindings["IStorage"]
		return b != nil && b.Provider == "storage-pg"
	})
}

func TestRegisteredEventPrecedesFirstTransition(t *testing.T) {
	r := newTestRegistry(t, WithTrackerOptions(health.Interval(time.Millisecond)))
	sub := r.WatchHealth("storage-pg")
	defer sub.Cancel()
	mustRegister(t, r, storageManifest("storage-pg", "1.0.0"))

	deadline := time.After(2 * time.Second)
	select {
	case e := <-sub.C:
		if e.Type != EventRegistered {
			t.Fatalf("first event = %+v", e)
		}
	case <-deadline:
		t.Fatal("no registration event")
	}
	select {
	case e := <-sub.C:
		if e.Type != EventHealth || e.Health == nil || e.Health.State != health.StateHealthy {
			t.Fatalf("second event = %+v", e)
		}
	case <-deadline:
		t.Fatal("no health transition")
	}
}
