package manifest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-upf/upf/errors"
	"github.com/google/go-cmp/cmp"
)

func TestRegisterGetRoundTrip(t *testing.T) {
	s := NewStore()
	m := storageProvider()
	if _, err := s.Register(m); err != nil {
		t.Fatal(err)
	}
	entry, ok := s.Get(m.ID)
	if !ok {
		t.Fatal("not found after register")
	}
	if diff := cmp.Diff(m, entry.Manifest); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := NewStore()
	if _, err := s.Register(storageProvider()); err != nil {
		t.Fatal(err)
	}
	_, err := s.Register(storageProvider())
	if errors.Reason(err) != errors.DuplicateID {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestUnregisterThenRegister(t *testing.T) {
	s := NewStore()
	m := storageProvider()
	if _, err := s.Register(m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Unregister(m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(m); err != nil {
		t.Fatalf("re-register after unregister: %v", err)
	}
}

func TestUnregisterMissing(t *testing.T) {
	s := NewStore()
	_, err := s.Unregister("ghost")
	if errors.Reason(err) != errors.PluginNotFound {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestReplacePreservesRegistrationInstant(t *testing.T) {
	s := NewStore()
	m := storageProvider()
	first, err := s.Register(m)
	if err != nil {
		t.Fatal(err)
	}
	next := storageProvider()
	next.Version = "1.1.0"
	replaced, err := s.Replace(m.ID, next)
	if err != nil {
		t.Fatal(err)
	}
	if !replaced.RegisteredAt.Equal(first.RegisteredAt) {
		t.Fatal("replace must keep the original registration instant")
	}
}

func TestConcurrentRegistersNoLostWrites(t *testing.T) {
	s := NewStore()
	const n = 100
	wg := sync.WaitGroup{}
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			m := storageProvider()
			m.ID = fmt.Sprintf("plugin-%03d", i)
			if _, err := s.Register(m); err != nil {
				t.Errorf("register %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if got := s.Len(); got != n {
		t.Fatalf("len = %d, want %d", got, n)
	}
	if got := len(s.List()); got != n {
		t.Fatalf("list = %d, want %d", got, n)
	}
}

func TestProvidersSnapshot(t *testing.T) {
	s := NewStore()
	a := storageProvider()
	b := storageProvider()
	b.ID = "storage-mongo"
	b.Provides[0].Version = "1.1.0"
	if _, err := s.Register(a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(b); err != nil {
		t.Fatal(err)
	}
	providers := s.Providers("IStorage")
	if len(providers) != 2 {
		t.Fatalf("providers = %d", len(providers))
	}
	if providers := s.Providers("INothing"); len(providers) != 0 {
		t.Fatalf("providers = %d", len(providers))
	}
}

func TestWriteLockTimeout(t *testing.T) {
	s := NewStore(LockWait(20 * time.Millisecond))
	if err := s.acquire("test"); err != nil {
		t.Fatal(err)
	}
	defer s.release()
	_, err := s.Register(storageProvider())
	if errors.Reason(err) != errors.LockTimeout {
		t.Fatalf("reason = %s", errors.Reason(err))
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	m := storageProvider()
	if _, err := s.Register(m); err != nil {
		t.Fatal(err)
	}
	entry, _ := s.Get(m.ID)
	entry.Manifest.Provides[0].Name = "IMutated"
	again, _ := s.Get(m.ID)
	if again.Manifest.Provides[0].Name != "IStorage" {
		t.Fatal("store leaked a mutable reference")
	}
}
