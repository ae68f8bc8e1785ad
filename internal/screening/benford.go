package screening

import (
	"math"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
)

// benfordExpected is the leading-digit probability P(d) = log10(1+1/d)
// for d = 1..9.
var benfordExpected = [9]float64{
	0.30103, 0.17609, 0.12494, 0.09691, 0.07918,
	0.06695, 0.05799, 0.05115, 0.04576,
}

// distOutcome is the result of a distribution check on one symbol.
type distOutcome struct {
	skipped bool
	flagged bool
	pValue  float64
	obs     int
}

// evalDistribution runs a chi-square goodness-of-fit test of the
// leading digits of a fundamental field across a symbol's filings
// against the Benford distribution. Symbols with too few usable
// observations are skipped. A low p-value flags the symbol; the flag is
// advisory only and never rejects by itself.
func evalDistribution(rule *contracts.DistributionParams, filings []contracts.Fundamental) (distOutcome, error) {
	limit := len(filings)
	if rule.Periods > 0 && rule.Periods < limit {
		limit = rule.Periods
	}

	var counts [9]int
	n := 0
	for _, f := range filings[:limit] {
		value, err := fundamentalField(f, rule.Field)
		if err != nil {
			return distOutcome{}, err
		}
		d, ok := leadingDigit(value)
		if !ok {
			continue
		}
		counts[d-1]++
		n++
	}

	if n < rule.MinObs {
		return distOutcome{skipped: true, obs: n}, nil
	}

	chi2 := 0.0
	for i := 0; i < 9; i++ {
		expected := benfordExpected[i] * float64(n)
		diff := float64(counts[i]) - expected
		chi2 += diff * diff / expected
	}

	// 9 bins, 8 degrees of freedom.
	p := chiSquareSurvival(chi2, 8)

	return distOutcome{
		flagged: p < rule.PFloor,
		pValue:  p,
		obs:     n,
	}, nil
}

// leadingDigit extracts the first significant digit of |v|. Zero and
// non-finite values carry no digit information and are dropped.
func leadingDigit(v float64) (int, bool) {
	v = math.Abs(v)
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	for v >= 10 {
		v /= 10
	}
	for v < 1 {
		v *= 10
	}
	return int(v), true
}

// chiSquareSurvival returns P(X >= chi2) for a chi-square distribution
// with k degrees of freedom, via the regularized upper incomplete gamma
// function Q(k/2, chi2/2).
func chiSquareSurvival(chi2 float64, k int) float64 {
	if chi2 <= 0 {
		return 1
	}
	return upperGammaRegularized(float64(k)/2, chi2/2)
}

// upperGammaRegularized computes Q(a, x) using the series expansion for
// x < a+1 and a continued fraction otherwise (Numerical Recipes 6.2).
func upperGammaRegularized(a, x float64) float64 {
	if x < a+1 {
		return 1 - lowerGammaSeries(a, x)
	}
	return upperGammaContinuedFraction(a, x)
}

func lowerGammaSeries(a, x float64) float64 {
	const maxIter = 200
	const eps = 1e-14

	ap := a
	sum := 1.0 / a
	del := sum
	for i := 0; i < maxIter; i++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			break
		}
	}
	lg, _ := math.Lgamma(a)
	return sum * math.Exp(-x+a*math.Log(x)-lg)
}

func upperGammaContinuedFraction(a, x float64) float64 {
	const maxIter = 200
	const eps = 1e-14
	const tiny = 1e-300

	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i <= maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	lg, _ := math.Lgamma(a)
	return math.Exp(-x+a*math.Log(x)-lg) * h
}
