package pipeline

import (
	"testing"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/fitting"
)

func values(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestSufficiencyChecker_AllPass(t *testing.T) {
	c := NewSufficiencyChecker(10, 0.5)
	res := c.Check(SufficiencyInput{
		Pairs:          1,
		Records:        20,
		WithCompletion: 10,
		Samples: map[fitting.Key][]float64{
			{Pair: btcEth, Feature: domain.FeatureFeeRate}:          values(10),
			{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}: values(12),
		},
	})

	if !res.AllPass {
		for _, ch := range res.Checks {
			if !ch.Pass {
				t.Errorf("check %q failed: %s vs %s", ch.Name, ch.Actual, ch.Threshold)
			}
		}
	}
	if len(res.Checks) != 5 {
		t.Errorf("Checks = %d, want 5", len(res.Checks))
	}
}

func TestSufficiencyChecker_Failures(t *testing.T) {
	c := NewSufficiencyChecker(10, 0.5)
	res := c.Check(SufficiencyInput{
		Pairs:          2,
		Records:        10,
		WithCompletion: 4,
		Samples: map[fitting.Key][]float64{
			{Pair: btcEth, Feature: domain.FeatureFeeRate}: values(9),
			{Pair: ethBtc, Feature: domain.FeatureFeeRate}: values(30),
		},
		Duplicates: 1,
		Anomalies:  2,
	})
	if res.AllPass {
		t.Fatal("expected failures")
	}

	want := map[string]struct {
		actual string
		pass   bool
	}{
		"Pairs with records":     {"2", true},
		"Fits at sample floor":   {"1/2", false},
		"Completion coverage":    {"40.00%", false},
		"Duplicate ids in files": {"1", false},
		"Content anomalies":      {"2", false},
	}
	for _, ch := range res.Checks {
		w, ok := want[ch.Name]
		if !ok {
			t.Errorf("unexpected check %q", ch.Name)
			continue
		}
		if ch.Actual != w.actual || ch.Pass != w.pass {
			t.Errorf("%s = (%s, %t), want (%s, %t)", ch.Name, ch.Actual, ch.Pass, w.actual, w.pass)
		}
	}
}

func TestSufficiencyChecker_NoData(t *testing.T) {
	res := NewSufficiencyChecker(0, 0).Check(SufficiencyInput{})
	if res.AllPass {
		t.Fatal("empty input must not pass")
	}
	rows := convertToRows(res)
	if len(rows) != len(res.Checks) || rows[0].Name != "Pairs with records" || rows[0].Pass {
		t.Errorf("unexpected rows %+v", rows)
	}
}
