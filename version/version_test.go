package version

import (
	"testing"
	"time"
)

func TestSatisfies(t *testing.T) {
	cases := []struct {
		rng  string
		ver  string
		want bool
	}{
		{"^1.2.0", "1.3.0", true},
		{"^1.2.0", "2.0.0", false},
		{">=1.0.0", "1.0.0", true},
		{"~1.2.0", "1.2.9", true},
		{"~1.2.0", "1.3.0", false},
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.0.1", false},
	}
	for _, c := range cases {
		got, err := Satisfies(c.rng, c.ver)
		if err != nil {
			t.Fatalf("Satisfies(%s, %s) err: %v", c.rng, c.ver, err)
		}
		if got != c.want {
			t.Fatalf("Satisfies(%s, %s) = %v, want %v", c.rng, c.ver, got, c.want)
		}
	}
}

func TestSatisfiesMalformed(t *testing.T) {
	if _, err := Satisfies("not-a-range", "1.0.0"); err == nil {
		t.Fatal("expected error for malformed range")
	}
	if _, err := Satisfies("^1.0.0", "not-a-version"); err == nil {
		t.Fatal("expected error for malformed version")
	}
}

func TestSelectBestHighestWins(t *testing.T) {
	best, err := SelectBest([]Candidate{
		{Provider: "storage-pg", Version: "1.0.0"},
		{Provider: "storage-mongo", Version: "1.1.0"},
	}, ">=1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if best == nil || best.Provider != "storage-mongo" {
		t.Fatalf("best = %+v", best)
	}
}

func TestSelectBestPriorityBreaksTie(t *testing.T) {
	best, err := SelectBest([]Candidate{
		{Provider: "a", Version: "1.0.0", Priority: 1},
		{Provider: "b", Version: "1.0.0", Priority: 5},
	}, "^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if best.Provider != "b" {
		t.Fatalf("best = %+v", best)
	}
}

func TestSelectBestIncumbentKeepsExactTie(t *testing.T) {
	early := time.Now().Add(-time.Hour)
	late := time.Now()
	best, err := SelectBest([]Candidate{
		{Provider: "late", Version: "1.0.0", RegisteredAt: late},
		{Provider: "early", Version: "1.0.0", RegisteredAt: early},
	}, "^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if best.Provider != "early" {
		t.Fatalf("best = %+v", best)
	}
}

func TestSelectBestNoneSatisfy(t *testing.T) {
	best, err := SelectBest([]Candidate{{Provider: "a", Version: "0.9.0"}}, "^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if best != nil {
		t.Fatalf("best = %+v", best)
	}
}
