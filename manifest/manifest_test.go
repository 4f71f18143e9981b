package manifest

import (
	"testing"

	"github.com/go-upf/upf/errors"
)

func storageProvider() *Manifest {
	return &Manifest{
		ID:      "storage-pg",
		Version: "1.0.0",
		Type:    TypeInfrastructure,
		Provides: []Interface{
			{Name: "IStorage", Version: "1.0.0", Methods: []string{"Get", "Put"}},
		},
		Endpoint: "127.0.0.1:50051",
	}
}

func TestValidateOK(t *testing.T) {
	if err := storageProvider().Validate(); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Manifest){
		"empty id":          func(m *Manifest) { m.ID = "" },
		"bad version":       func(m *Manifest) { m.Version = "one" },
		"bad type":          func(m *Manifest) { m.Type = "extension" },
		"bad endpoint":      func(m *Manifest) { m.Endpoint = "nowhere" },
		"dup provides":      func(m *Manifest) { m.Provides = append(m.Provides, m.Provides[0]) },
		"bad provide ver":   func(m *Manifest) { m.Provides[0].Version = "x" },
		"empty provide":     func(m *Manifest) { m.Provides[0].Name = "" },
		"bad require range": func(m *Manifest) { m.Requires = []Requirement{{Interface: "ILog", VersionRange: "[["}} },
		"empty require":     func(m *Manifest) { m.Requires = []Requirement{{VersionRange: "^1.0.0"}} },
	}
	for name, mutate := range cases {
		m := storageProvider()
		mutate(m)
		err := m.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if errors.Reason(err) != errors.InvalidManifest {
			t.Fatalf("%s: reason = %s", name, errors.Reason(err))
		}
	}
}

func TestSameInterfaceTwoVersionsAllowed(t *testing.T) {
	m := storageProvider()
	m.Provides = append(m.Provides, Interface{Name: "IStorage", Version: "2.0.0"})
	if err := m.Validate(); err != nil {
		t.Fatalf("err = %v", err)
	}
	if got := len(m.Provided("IStorage")); got != 2 {
		t.Fatalf("provided = %d", got)
	}
}

func TestCloneDetaches(t *testing.T) {
	m := storageProvider()
	c := m.Clone()
	c.Provides[0].Name = "IOther"
	c.Provides[0].Methods[0] = "Del"
	if m.Provides[0].Name != "IStorage" || m.Provides[0].Methods[0] != "Get" {
		t.Fatal("clone shares memory with original")
	}
}
