package reporting

import (
	"fmt"

	"thorswap-lab/internal/domain"
)

// FormatParams renders distribution parameters as "name=value" pairs.
func FormatParams(p domain.Params) string {
	switch v := p.(type) {
	case domain.GaussianParams:
		return fmt.Sprintf("mu=%.6g sigma=%.6g", v.Mu, v.Sigma)
	case domain.LogNormalParams:
		return fmt.Sprintf("mu=%.6g sigma=%.6g", v.Mu, v.Sigma)
	case domain.GammaParams:
		return fmt.Sprintf("shape=%.6g rate=%.6g", v.Shape, v.Rate)
	case domain.ExponentialParams:
		return fmt.Sprintf("rate=%.6g", v.Rate)
	case domain.SigmoidParams:
		return fmt.Sprintf("mu=%.6g s=%.6g", v.Mu, v.S)
	default:
		return ""
	}
}
