package sampling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/domain"
)

var btcEth = domain.PairGroup{InChain: "BTC", OutChain: "ETH"}

func population(n int) []*domain.CanonicalRecord {
	recs := make([]*domain.CanonicalRecord, n)
	for i := range recs {
		recs[i] = &domain.CanonicalRecord{ID: fmt.Sprintf("id-%04d", i)}
	}
	return recs
}

func ids(recs []*domain.CanonicalRecord) map[string]bool {
	m := make(map[string]bool, len(recs))
	for _, r := range recs {
		m[r.ID] = true
	}
	return m
}

func TestTarget_Size(t *testing.T) {
	assert.Equal(t, 10, Target{Count: 10}.Size(100))
	assert.Equal(t, 5, Target{Count: 10}.Size(5))
	assert.Equal(t, 25, Target{Fraction: 0.25}.Size(100))
	assert.Equal(t, 3, Target{Count: 3, Fraction: 0.5}.Size(100))
	assert.ErrorIs(t, Target{}.Validate(), ErrInvalidTarget)
	assert.ErrorIs(t, Target{Fraction: 1.5}.Validate(), ErrInvalidTarget)
}

func TestSampleGroup_Reproducible(t *testing.T) {
	pop := population(200)
	a := New(7).SampleGroup(btcEth, pop, 20)

	reversed := make([]*domain.CanonicalRecord, len(pop))
	for i, r := range pop {
		reversed[len(pop)-1-i] = r
	}
	b := New(7).SampleGroup(btcEth, reversed, 20)

	assert.Equal(t, a, b, "same seed and population must give the same draw regardless of input order")

	c := New(8).SampleGroup(btcEth, pop, 20)
	assert.NotEqual(t, a, c)
}

func TestSampleGroup_MonotonicSuperset(t *testing.T) {
	pop := population(500)
	s := New(DefaultSeed)

	small := s.SampleGroup(btcEth, pop, 30)
	large := s.SampleGroup(btcEth, pop, 120)

	require.Len(t, small, 30)
	require.Len(t, large, 120)
	largeIDs := ids(large)
	for _, r := range small {
		assert.True(t, largeIDs[r.ID], "record %s missing from larger sample", r.ID)
	}
}

func TestSampleGroup_SmallGroupTakesAll(t *testing.T) {
	pop := population(4)
	got := New(1).SampleGroup(btcEth, pop, 10)
	assert.Len(t, got, 4)
	assert.Len(t, ids(got), 4)
}

func TestSample_PerGroupIndependent(t *testing.T) {
	ethBtc := btcEth.Reverse()
	pop := population(100)
	groups := map[domain.PairGroup][]*domain.CanonicalRecord{
		btcEth: pop,
		ethBtc: pop[:3],
	}

	out, err := New(3).Sample(groups, Target{Count: 10})
	require.NoError(t, err)
	assert.Len(t, out[btcEth], 10)
	assert.Len(t, out[ethBtc], 3)

	alone, err := New(3).Sample(map[domain.PairGroup][]*domain.CanonicalRecord{btcEth: pop}, Target{Count: 10})
	require.NoError(t, err)
	assert.Equal(t, out[btcEth], alone[btcEth])

	_, err = New(3).Sample(groups, Target{})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestExtend_KeepsPreviousAndAddsDisjoint(t *testing.T) {
	pop := population(300)
	s := New(11)

	previous := s.SampleGroup(btcEth, pop, 40)
	extended := s.Extend(btcEth, pop, previous, 100)

	require.Len(t, extended, 100)
	assert.Equal(t, previous, extended[:40])
	assert.Len(t, ids(extended), 100, "extension must not repeat records")

	again := s.Extend(btcEth, pop, previous, 100)
	assert.Equal(t, extended, again)
}

func TestExtend_CapsAtPopulation(t *testing.T) {
	pop := population(12)
	s := New(5)

	previous := s.SampleGroup(btcEth, pop, 5)
	extended := s.Extend(btcEth, pop, previous, 50)
	assert.Len(t, extended, 12)
	assert.Len(t, ids(extended), 12)

	same := s.Extend(btcEth, pop, previous, 3)
	assert.Equal(t, previous, same)
}

func TestGroupByPair(t *testing.T) {
	recs := []*domain.CanonicalRecord{
		{ID: "1", In: []domain.Leg{{Chain: "BTC"}}, Out: []domain.Leg{{Chain: "ETH"}}},
		{ID: "2", In: []domain.Leg{{Chain: "ETH"}}, Out: []domain.Leg{{Chain: "BTC"}}},
		{ID: "3", In: []domain.Leg{{Chain: "BTC"}}, Out: []domain.Leg{{Chain: "ETH"}}},
		{ID: "4", In: []domain.Leg{{Chain: "BTC"}}},
	}

	groups := GroupByPair(recs)
	assert.Len(t, groups, 2)
	assert.Len(t, groups[btcEth], 2)
	assert.Len(t, groups[btcEth.Reverse()], 1)
}
