// Package sampling draws reproducible per-group uniform samples.
package sampling

import (
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"thorswap-lab/internal/domain"
)

// DefaultSeed matches the seed used for published mini datasets.
const DefaultSeed int64 = 42

// ErrInvalidTarget is returned when a target has neither a positive count nor a fraction in (0,1].
var ErrInvalidTarget = errors.New("invalid sample target")

// Target is a per-group sample size: a fixed Count, or a Fraction of the group.
// Count takes precedence when both are set.
type Target struct {
	Count    int
	Fraction float64
}

// Validate checks the target.
func (t Target) Validate() error {
	if t.Count > 0 {
		return nil
	}
	if t.Fraction > 0 && t.Fraction <= 1 {
		return nil
	}
	return ErrInvalidTarget
}

// Size returns min(target, n) for a group of n records.
func (t Target) Size(n int) int {
	var k int
	if t.Count > 0 {
		k = t.Count
	} else {
		k = int(math.Round(t.Fraction * float64(n)))
	}
	if k > n {
		k = n
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Sampler draws uniformly without replacement. Each group gets its own
// random stream derived from the seed and the group name, so results do not
// depend on map iteration or on which other groups are sampled.
type Sampler struct {
	seed int64
}

// New creates a sampler.
func New(seed int64) *Sampler {
	return &Sampler{seed: seed}
}

// Seed returns the base seed.
func (s *Sampler) Seed() int64 { return s.seed }

// Sample draws target records from every group.
func (s *Sampler) Sample(groups map[domain.PairGroup][]*domain.CanonicalRecord, target Target) (map[domain.PairGroup][]*domain.CanonicalRecord, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	out := make(map[domain.PairGroup][]*domain.CanonicalRecord, len(groups))
	for g, recs := range groups {
		out[g] = s.SampleGroup(g, recs, target.Size(len(recs)))
	}
	return out, nil
}

// SampleGroup takes the first k records of a seeded permutation of the
// group. The permutation depends only on the seed, the group and the
// population ids, so a larger k always yields a superset of a smaller k.
func (s *Sampler) SampleGroup(group domain.PairGroup, population []*domain.CanonicalRecord, k int) []*domain.CanonicalRecord {
	pop := canonicalOrder(population)
	if k > len(pop) {
		k = len(pop)
	}
	if k <= 0 {
		return nil
	}
	r := rand.New(rand.NewSource(deriveSeed(s.seed, group.String())))
	perm := r.Perm(len(pop))
	out := make([]*domain.CanonicalRecord, k)
	for i := 0; i < k; i++ {
		out[i] = pop[perm[i]]
	}
	return out
}

// Extend grows previous to min(target, |population|) records by drawing
// uniformly from the records not already in previous. previous is kept as
// the prefix of the result. If previous is already large enough it is
// returned unchanged.
func (s *Sampler) Extend(group domain.PairGroup, population, previous []*domain.CanonicalRecord, target int) []*domain.CanonicalRecord {
	want := target
	if want > len(population) {
		want = len(population)
	}
	out := append([]*domain.CanonicalRecord(nil), previous...)
	if len(out) >= want {
		return out
	}

	taken := make(map[string]struct{}, len(previous))
	for _, r := range previous {
		taken[r.ID] = struct{}{}
	}
	rest := make([]*domain.CanonicalRecord, 0, len(population)-len(previous))
	for _, r := range canonicalOrder(population) {
		if _, ok := taken[r.ID]; !ok {
			rest = append(rest, r)
		}
	}

	r := rand.New(rand.NewSource(deriveSeed(s.seed, group.String()+"#extend#"+strconv.Itoa(len(previous)))))
	r.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	need := want - len(out)
	if need > len(rest) {
		need = len(rest)
	}
	return append(out, rest[:need]...)
}

// canonicalOrder returns population sorted by id so the draw does not
// depend on input order.
func canonicalOrder(population []*domain.CanonicalRecord) []*domain.CanonicalRecord {
	pop := append([]*domain.CanonicalRecord(nil), population...)
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].ID < pop[j].ID })
	return pop
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}

// GroupByPair partitions 1-in/1-out records by directional pair.
// Records without both sides are skipped.
func GroupByPair(records []*domain.CanonicalRecord) map[domain.PairGroup][]*domain.CanonicalRecord {
	groups := make(map[domain.PairGroup][]*domain.CanonicalRecord)
	for _, r := range records {
		if p, ok := r.Pair(); ok {
			groups[p] = append(groups[p], r)
		}
	}
	return groups
}
