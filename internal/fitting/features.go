package fitting

import "thorswap-lab/internal/domain"

// Observation extracts the scored features of one record. Features that
// cannot be computed are absent from the map.
func Observation(rec *domain.CanonicalRecord) map[domain.Feature]float64 {
	obs := make(map[domain.Feature]float64, len(domain.AllFeatures))
	if elapsed, ok := rec.ElapsedSeconds(); ok && elapsed > 0 {
		obs[domain.FeatureTimeToCompletion] = elapsed
	}
	if fee, ok := rec.FeeRate(); ok && fee >= 0 && fee <= 1 {
		obs[domain.FeatureFeeRate] = fee
	}
	return obs
}

// Samples builds per-(pair, feature) samples from grouped records.
// Every pair gets an entry for every feature, possibly empty, so that a
// requested fit with no data is reported rather than silently skipped.
func Samples(groups map[domain.PairGroup][]*domain.CanonicalRecord) map[Key][]float64 {
	out := make(map[Key][]float64, len(groups)*len(domain.AllFeatures))
	for pair, recs := range groups {
		for _, feat := range domain.AllFeatures {
			out[Key{Pair: pair, Feature: feat}] = nil
		}
		for _, r := range recs {
			for feat, v := range Observation(r) {
				k := Key{Pair: pair, Feature: feat}
				out[k] = append(out[k], v)
			}
		}
	}
	return out
}
