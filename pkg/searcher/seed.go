package searcher

import (
	"math/rand"

	"github.com/vecgraph/ngt/pkg/objectstore"
)

// SeedProvider supplies the initial frontier for a Search call that was not
// given an explicit seed list.
type SeedProvider interface {
	Seeds(store *objectstore.Store) []ObjectID
}

// NoneSeeder never supplies seeds; every Search call using it must pass an
// explicit seed list, or Search returns an error.
type NoneSeeder struct{}

func (NoneSeeder) Seeds(*objectstore.Store) []ObjectID { return nil }

// RandomSeeder picks up to N distinct live ids at random. Size defaults to
// 10, matching the source library's default random seed-set size.
type RandomSeeder struct {
	Size int
	Rand *rand.Rand
}

// NewRandomSeeder builds a RandomSeeder with the default sentinel size.
func NewRandomSeeder() *RandomSeeder {
	return &RandomSeeder{Size: 10, Rand: rand.New(rand.NewSource(1))}
}

func (s *RandomSeeder) Seeds(store *objectstore.Store) []ObjectID {
	live := store.LiveIDs()
	n := s.Size
	if n <= 0 {
		n = 10
	}
	if n >= len(live) {
		return live
	}
	r := s.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	perm := r.Perm(len(live))[:n]
	out := make([]ObjectID, n)
	for i, idx := range perm {
		out[i] = live[idx]
	}
	return out
}

// FixedSeeder always returns a caller-supplied, constant seed list,
// filtered down to still-live ids.
type FixedSeeder struct {
	IDs []ObjectID
}

func (s FixedSeeder) Seeds(store *objectstore.Store) []ObjectID {
	live := make(map[ObjectID]bool)
	for _, id := range store.LiveIDs() {
		live[id] = true
	}
	out := make([]ObjectID, 0, len(s.IDs))
	for _, id := range s.IDs {
		if live[id] {
			out = append(out, id)
		}
	}
	return out
}

// FirstSeeder returns the single smallest live id, a cheap deterministic
// entry point when the graph is known to be well connected from any start.
type FirstSeeder struct{}

func (FirstSeeder) Seeds(store *objectstore.Store) []ObjectID {
	live := store.LiveIDs()
	if len(live) == 0 {
		return nil
	}
	return live[:1]
}

// AllLeafSeeder returns every id in an externally supplied leaf set — the
// leaves of an auxiliary seed-selection tree built outside this package,
// rather than anything derived from graph adjacency itself.
type AllLeafSeeder struct {
	Leaves []ObjectID
}

func (s AllLeafSeeder) Seeds(store *objectstore.Store) []ObjectID {
	live := make(map[ObjectID]bool)
	for _, id := range store.LiveIDs() {
		live[id] = true
	}
	out := make([]ObjectID, 0, len(s.Leaves))
	for _, id := range s.Leaves {
		if live[id] {
			out = append(out, id)
		}
	}
	return out
}
