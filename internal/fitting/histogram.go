package fitting

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"thorswap-lab/internal/domain"
)

// Histogram is an empirical density over equal-width bins.
type Histogram struct {
	Edges   []float64 // len(Density)+1
	Centers []float64
	Density []float64 // count / (n * width)
}

// NewHistogram bins x into bins equal-width bins spanning [min, max].
// A sample without spread gets a unit-width range around its value.
func NewHistogram(x []float64, bins int) Histogram {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	// stat.Histogram treats the last divider as exclusive.
	edges[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, edges, sorted, nil)

	h := Histogram{
		Edges:   edges,
		Centers: make([]float64, bins),
		Density: make([]float64, bins),
	}
	n := float64(len(sorted))
	for i := 0; i < bins; i++ {
		h.Centers[i] = lo + (float64(i)+0.5)*width
		h.Density[i] = counts[i] / (n * width)
	}
	return h
}

// RMSE returns the root-mean-square error between the density of p at the
// bin centers and the empirical bin densities.
func (h Histogram) RMSE(p domain.Params) float64 {
	var sum float64
	for i, c := range h.Centers {
		d := Density(p, c) - h.Density[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(h.Centers)))
}
