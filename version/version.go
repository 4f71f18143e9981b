package version

import (
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-upf/upf/errors"
)

// Satisfies reports whether a concrete semver version matches a range
// expression (^, ~, >=, exact and composites). Malformed input is an error,
// never a panic; manifests are expected to be validated at registration so
// resolution-time errors indicate registry corruption.
func Satisfies(rng, ver string) (bool, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return false, errors.Invalid("malformed version range").WithMetadata(map[string]string{"range": rng}).WithError(err)
	}
	v, err := semver.NewVersion(ver)
	if err != nil {
		return false, errors.Invalid("malformed version").WithMetadata(map[string]string{"version": ver}).WithError(err)
	}
	return c.Check(v), nil
}

func Valid(ver string) error {
	_, err := semver.NewVersion(ver)
	if err != nil {
		return errors.Invalid("malformed version").WithMetadata(map[string]string{"version": ver}).WithError(err)
	}
	return nil
}

func ValidRange(rng string) error {
	_, err := semver.NewConstraint(rng)
	if err != nil {
		return errors.Invalid("malformed version range").WithMetadata(map[string]string{"range": rng}).WithError(err)
	}
	return nil
}

// Candidate is one provider offer for an interface.
type Candidate struct {
	Provider     string
	Endpoint     string
	Version      string
	Priority     int
	RegisteredAt time.Time
}

// SelectBest picks the candidate satisfying rng with the highest version.
// Exact version ties break on higher priority, then earliest registration,
// so the incumbent keeps winning and consumers are not rebound needlessly.
func SelectBest(candidates []Candidate, rng string) (*Candidate, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return nil, errors.Invalid("malformed version range").WithMetadata(map[string]string{"range": rng}).WithError(err)
	}
	type offer struct {
		v *semver.Version
		c Candidate
	}
	offers := make([]offer, 0, len(candidates))
	for _, cand := range candidates {
		v, err := semver.NewVersion(cand.Version)
		if err != nil {
			return nil, errors.Invalid("malformed version").WithMetadata(map[string]string{"version": cand.Version}).WithError(err)
		}
		if !c.Check(v) {
			continue
		}
		offers = append(offers, offer{v: v, c: cand})
	}
	if len(offers) == 0 {
		return nil, nil
	}
	sort.SliceStable(offers, func(i, j int) bool {
		if !offers[i].v.Equal(offers[j].v) {
			return offers[i].v.GreaterThan(offers[j].v)
		}
		if offers[i].c.Priority != offers[j].c.Priority {
			return offers[i].c.Priority > offers[j].c.Priority
		}
		return offers[i].c.RegisteredAt.Before(offers[j].c.RegisteredAt)
	})
	best := offers[0].c
	return &best, nil
}
