package manifest

import (
	"fmt"
	"net"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/version"
)

type Type string

const (
	TypeCore           Type = "core"
	TypeInfrastructure Type = "infrastructure"
	TypeBusiness       Type = "business"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCore, TypeInfrastructure, TypeBusiness:
		return true
	}
	return false
}

// Interface describes one capability a plugin provides. Immutable once the
// owning manifest is stored.
type Interface struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Methods []string `json:"methods,omitempty"`
}

// Requirement declares a dependency on a named interface within a semver
// range. Optional requirements resolve to an absent binding when no
// provider exists instead of failing the consumer.
type Requirement struct {
	Interface    string `json:"interface"`
	VersionRange string `json:"version_range"`
	Optional     bool   `json:"optional,omitempty"`
}

type Manifest struct {
	ID       string        `json:"id"`
	Version  string        `json:"version"`
	Type     Type          `json:"type"`
	Provides []Interface   `json:"provides,omitempty"`
	Requires []Requirement `json:"requires,omitempty"`
	Endpoint string        `json:"endpoint"`
	Priority int           `json:"priority,omitempty"`
}

func (m *Manifest) Validate() error {
	if m == nil {
		return errors.Invalid("manifest is empty")
	}
	if len(m.ID) == 0 {
		return errors.Invalid("manifest id is empty")
	}
	if err := version.Valid(m.Version); err != nil {
		return errors.Invalid(fmt.Sprintf("plugin version %q is not semver", m.Version)).WithMetadata(map[string]string{"id": m.ID})
	}
	if !m.Type.Valid() {
		return errors.Invalid(fmt.Sprintf("unrecognized plugin type %q", m.Type)).WithMetadata(map[string]string{"id": m.ID})
	}
	if _, _, err := net.SplitHostPort(m.Endpoint); err != nil {
		return errors.Invalid(fmt.Sprintf("endpoint %q is not host:port", m.Endpoint)).WithMetadata(map[string]string{"id": m.ID})
	}
	seen := make(map[string]struct{}, len(m.Provides))
	for _, p := range m.Provides {
		if len(p.Name) == 0 {
			return errors.Invalid("provided interface name is empty").WithMetadata(map[string]string{"id": m.ID})
		}
		if err := version.Valid(p.Version); err != nil {
			return errors.Invalid(fmt.Sprintf("interface %s version %q is not semver", p.Name, p.Version)).WithMetadata(map[string]string{"id": m.ID})
		}
		key := p.Name + "@" + p.Version
		if _, ok := seen[key]; ok {
			return errors.Invalid(fmt.Sprintf("duplicate provided interface %s", key)).WithMetadata(map[string]string{"id": m.ID})
		}
		seen[key] = struct{}{}
	}
	for _, r := range m.Requires {
		if len(r.Interface) == 0 {
			return errors.Invalid("required interface name is empty").WithMetadata(map[string]string{"id": m.ID})
		}
		if err := version.ValidRange(r.VersionRange); err != nil {
			return errors.Invalid(fmt.Sprintf("requirement %s range %q is malformed", r.Interface, r.VersionRange)).WithMetadata(map[string]string{"id": m.ID})
		}
	}
	return nil
}

// Provided returns the provides entries matching an interface name; a
// manifest may offer several versions of the same interface.
func (m *Manifest) Provided(name string) []Interface {
	var out []Interface
	for _, p := range m.Provides {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	c.Provides = make([]Interface, len(m.Provides))
	for i, p := range m.Provides {
		c.Provides[i] = p
		c.Provides[i].Methods = append([]string(nil), p.Methods...)
	}
	c.Requires = append([]Requirement(nil), m.Requires...)
	return &c
}
