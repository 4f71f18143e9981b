package resolver

import (
	"context"
	"testing"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/health"
	"github.com/go-upf/upf/manifest"
)

type states map[string]health.State

func (s states) State(id string) health.State {
	st, ok := s[id]
	if !ok {
		return health.StateUnknown
	}
	return st
}

func provider(id, iface, ver string) *manifest.Manifest {
	return &manifest.Manifest{
		ID:      id,
		Version: ver,
		Type:    manifest.TypeInfrastructure,
		Provides: []manifest.Interface{
			{Name: iface, Version: ver},
		},
		Endpoint: "127.0.0.1:50051",
	}
}

func storeWith(t *testing.T, manifests ...*manifest.Manifest) *manifest.Store {
	t.Helper()
	s := manifest.NewStore()
	for _, m := range manifests {
		if _, err := s.Register(m); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestResolveOnePicksHighestSatisfying(t *testing.T) {
	s := storeWith(t,
		provider("storage-pg", "IStorage", "1.0.0"),
		provider("storage-mongo", "IStorage", "1.1.0"),
	)
	r := New(s, states{"storage-pg": health.StateHealthy, "storage-mongo": health.StateHealthy})
	for i := 0; i < 10; i++ {
		b, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: ">=1.0.0"})
		if err != nil {
			t.Fatal(err)
		}
		if b.Provider != "storage-mongo" || b.Version != "1.1.0" {
			t.Fatalf("binding = %+v", b)
		}
	}
}

func TestResolveOneSkipsUnhealthy(t *testing.T) {
	s := storeWith(t,
		provider("storage-pg", "IStorage", "1.0.0"),
		provider("storage-mongo", "IStorage", "1.1.0"),
	)
	r := New(s, states{"storage-pg": health.StateHealthy, "storage-mongo": health.StateUnhealthy})
	b, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: ">=1.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Provider != "storage-pg" {
		t.Fatalf("binding = %+v", b)
	}
}

func TestResolveOneUnknownIsNotEligible(t *testing.T) {
	s := storeWith(t, provider("storage-pg", "IStorage", "1.0.0"))
	r := New(s, states{})
	_, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"})
	if errors.Reason(err) != errors.NoCompatibleProvider {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestResolveOneDegradedNeedsBestEffort(t *testing.T) {
	s := storeWith(t, provider("storage-pg", "IStorage", "1.0.0"))
	r := New(s, states{"storage-pg": health.StateDegraded})

	_, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"})
	if errors.Reason(err) != errors.NoCompatibleProvider {
		t.Fatalf("reason = %s", errors.Reason(err))
	}

	b, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: "^1.0.0"}, BestEffort())
	if err != nil {
		t.Fatal(err)
	}
	if b.Provider != "storage-pg" || b.Health != health.StateDegraded {
		t.Fatalf("binding = %+v", b)
	}
}

func TestBestEffortStillPrefersHealthy(t *testing.T) {
	s := storeWith(t,
		provider("storage-pg", "IStorage", "1.0.0"),
		provider("storage-mongo", "IStorage", "1.1.0"),
	)
	r := New(s, states{"storage-pg": health.StateHealthy, "storage-mongo": health.StateDegraded})
	b, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IStorage", VersionRange: ">=1.0.0"}, BestEffort())
	if err != nil {
		t.Fatal(err)
	}
	if b.Provider != "storage-pg" {
		t.Fatalf("binding = %+v", b)
	}
}

func TestResolveOneOptionalAbsent(t *testing.T) {
	s := storeWith(t)
	r := New(s, states{})
	b, err := r.ResolveOne(context.TODO(), manifest.Requirement{Interface: "IMetrics", VersionRange: "^1.0.0", Optional: true})
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Fatalf("binding = %+v", b)
	}
}

func TestResolveAllOptionalAbsentSucceeds(t *testing.T) {
	s := storeWith(t, provider("storage-pg", "IStorage", "1.0.0"))
	r := New(s, states{"storage-pg": health.StateHealthy})
	consumer := &manifest.Manifest{
		ID: "app", Version: "1.0.0", Type: manifest.TypeBusiness, Endpoint: "127.0.0.1:1",
		Requires: []manifest.Requirement{
			{Interface: "IStorage", VersionRange: "^1.0.0"},
			{Interface: "IMetrics", VersionRange: "^1.0.0", Optional: true},
		},
	}
	bindings, err := r.ResolveAll(context.TODO(), consumer)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 1 {
		t.Fatalf("bindings = %+v", bindings)
	}
	if _, ok := bindings["IMetrics"]; ok {
		t.Fatal("optional absent requirement must be absent, not bound")
	}
}

func TestResolveAllRequiredAbsentFailsWhole(t *testing.T) {
	s := storeWith(t, provider("storage-pg", "IStorage", "1.0.0"))
	r := New(s, states{"storage-pg": health.StateHealthy})
	consumer := &manifest.Manifest{
		ID: "app", Version: "1.0.0", Type: manifest.TypeBusiness, Endpoint: "127.0.0.1:1",
		Requires: []manifest.Requirement{
			{Interface: "IStorage", VersionRange: "^1.0.0"},
			{Interface: "IMetrics", VersionRange: "^1.0.0"},
		},
	}
	bindings, err := r.ResolveAll(context.TODO(), consumer)
	if errors.Reason(err) != errors.ResolutionFail {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
	if bindings != nil {
		t.Fatal("no partial bindings on failure")
	}
}
