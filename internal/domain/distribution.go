package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Family tags a candidate distribution family.
type Family int

// Order is the fixed tie-break order used when RMSE and parameter counts are equal.
const (
	FamilyGaussian Family = iota + 1
	FamilyLogNormal
	FamilyGamma
	FamilyExponential
	FamilySigmoid
)

// AllFamilies lists every candidate family in tie-break order.
var AllFamilies = []Family{FamilyGaussian, FamilyLogNormal, FamilyGamma, FamilyExponential, FamilySigmoid}

func (f Family) String() string {
	switch f {
	case FamilyGaussian:
		return "gaussian"
	case FamilyLogNormal:
		return "lognormal"
	case FamilyGamma:
		return "gamma"
	case FamilyExponential:
		return "exponential"
	case FamilySigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// NumParams returns the number of free parameters of the family.
func (f Family) NumParams() int {
	if f == FamilyExponential {
		return 1
	}
	return 2
}

// ParseFamily parses a family name as produced by String.
func ParseFamily(s string) (Family, error) {
	for _, f := range AllFamilies {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown distribution family %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(b []byte) error {
	parsed, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Params is the typed parameter payload of a fitted family.
// Implementations are GaussianParams, LogNormalParams, GammaParams,
// ExponentialParams and SigmoidParams.
type Params interface {
	Family() Family
}

// GaussianParams: N(Mu, Sigma).
type GaussianParams struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// LogNormalParams: ln X ~ N(Mu, Sigma).
type LogNormalParams struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// GammaParams uses shape/rate parameterization.
type GammaParams struct {
	Shape float64 `json:"shape"`
	Rate  float64 `json:"rate"`
}

// ExponentialParams: rate lambda.
type ExponentialParams struct {
	Rate float64 `json:"rate"`
}

// SigmoidParams is the logistic distribution with location Mu and scale S.
type SigmoidParams struct {
	Mu float64 `json:"mu"`
	S  float64 `json:"s"`
}

func (GaussianParams) Family() Family    { return FamilyGaussian }
func (LogNormalParams) Family() Family   { return FamilyLogNormal }
func (GammaParams) Family() Family       { return FamilyGamma }
func (ExponentialParams) Family() Family { return FamilyExponential }
func (SigmoidParams) Family() Family     { return FamilySigmoid }

// Feature is a scored per-record quantity.
type Feature string

const (
	FeatureTimeToCompletion Feature = "time_to_completion" // seconds, > 0
	FeatureFeeRate          Feature = "fee_rate"           // fraction in [0,1]
)

// AllFeatures lists fitted features.
var AllFeatures = []Feature{FeatureTimeToCompletion, FeatureFeeRate}

// FittedDistribution is the best-fit model for one (pair, feature).
type FittedDistribution struct {
	Pair        PairGroup
	Feature     Feature
	Params      Params  // selected family and its parameters
	RMSE        float64 // histogram-density error of the selected family
	SampleSize  int
	Provisional bool // sample smaller than the configured floor
}

// Family returns the selected family tag.
func (d *FittedDistribution) Family() Family {
	if d.Params == nil {
		return 0
	}
	return d.Params.Family()
}

// DecodeParams decodes a JSON parameter payload for the given family.
func DecodeParams(f Family, data []byte) (Params, error) {
	var (
		p   Params
		err error
	)
	switch f {
	case FamilyGaussian:
		var v GaussianParams
		err = json.Unmarshal(data, &v)
		p = v
	case FamilyLogNormal:
		var v LogNormalParams
		err = json.Unmarshal(data, &v)
		p = v
	case FamilyGamma:
		var v GammaParams
		err = json.Unmarshal(data, &v)
		p = v
	case FamilyExponential:
		var v ExponentialParams
		err = json.Unmarshal(data, &v)
		p = v
	case FamilySigmoid:
		var v SigmoidParams
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode params: unknown family %d", int(f))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s params: %w", f, err)
	}
	return p, nil
}

type fittedDistributionJSON struct {
	Pair        PairGroup       `json:"pair"`
	Feature     Feature         `json:"feature"`
	Family      Family          `json:"family"`
	Params      json.RawMessage `json:"params"`
	RMSE        float64         `json:"rmse"`
	SampleSize  int             `json:"sampleSize"`
	Provisional bool            `json:"provisional"`
}

// MarshalJSON writes the family tag next to its parameters.
func (d FittedDistribution) MarshalJSON() ([]byte, error) {
	if d.Params == nil {
		return nil, fmt.Errorf("marshal fitted distribution %s/%s: no params", d.Pair, d.Feature)
	}
	params, err := json.Marshal(d.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fittedDistributionJSON{
		Pair:        d.Pair,
		Feature:     d.Feature,
		Family:      d.Params.Family(),
		Params:      params,
		RMSE:        d.RMSE,
		SampleSize:  d.SampleSize,
		Provisional: d.Provisional,
	})
}

// UnmarshalJSON restores the typed parameter payload from the family tag.
func (d *FittedDistribution) UnmarshalJSON(b []byte) error {
	var w fittedDistributionJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	params, err := DecodeParams(w.Family, w.Params)
	if err != nil {
		return err
	}
	*d = FittedDistribution{
		Pair:        w.Pair,
		Feature:     w.Feature,
		Params:      params,
		RMSE:        w.RMSE,
		SampleSize:  w.SampleSize,
		Provisional: w.Provisional,
	}
	return nil
}
