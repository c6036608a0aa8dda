package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

const (
	period = domain.MonthsPerYear

	defaultMaxEvaluations = 4000
)

// MinObservations is the shortest series the engine will fit. It keeps enough
// differenced data after conditioning on the first 26 months.
const MinObservations = 4 * period

// sarimaParams are the coefficients of SARIMA(1,1,1)(1,1,1)[12] in the
// sign convention (1-φB)(1-ΦB¹²)∇∇₁₂y = (1+θB)(1+ΘB¹²)ε.
type sarimaParams struct {
	AR  float64 // φ
	MA  float64 // θ
	SAR float64 // Φ
	SMA float64 // Θ
}

// Free-space mapping: each coefficient is tanh of an unconstrained value, so
// every candidate the optimizer proposes is stationary and invertible.
func paramsFromFree(x []float64) sarimaParams {
	return sarimaParams{
		AR:  math.Tanh(x[0]),
		MA:  math.Tanh(x[1]),
		SAR: math.Tanh(x[2]),
		SMA: math.Tanh(x[3]),
	}
}

func (p sarimaParams) free() []float64 {
	return []float64{math.Atanh(p.AR), math.Atanh(p.MA), math.Atanh(p.SAR), math.Atanh(p.SMA)}
}

// arPoly returns φ(B)Φ(B¹²)(1-B)(1-B¹²), constant term first.
func (p sarimaParams) arPoly() []float64 {
	stationary := polyMul(lagPoly(1, -p.AR), lagPoly(period, -p.SAR))
	integrated := polyMul(lagPoly(1, -1), lagPoly(period, -1))
	return polyMul(stationary, integrated)
}

// maPoly returns θ(B)Θ(B¹²), constant term first.
func (p sarimaParams) maPoly() []float64 {
	return polyMul(lagPoly(1, p.MA), lagPoly(period, p.SMA))
}

func (p sarimaParams) coefficients() map[string]float64 {
	return map[string]float64{
		"ar.L1":    p.AR,
		"ma.L1":    p.MA,
		"ar.S.L12": p.SAR,
		"ma.S.L12": p.SMA,
	}
}

// lagPoly returns 1 + c·B^lag.
func lagPoly(lag int, c float64) []float64 {
	out := make([]float64, lag+1)
	out[0] = 1
	out[lag] += c
	return out
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// residuals runs the model filter over y and returns the sum of squared
// innovations. The first len(ar)-1 innovations are conditioned to zero.
func residuals(y, ar, ma, resid []float64) float64 {
	start := len(ar) - 1
	for t := 0; t < start && t < len(y); t++ {
		resid[t] = 0
	}

	var sse float64
	for t := start; t < len(y); t++ {
		e := 0.0
		for k, a := range ar {
			if a != 0 {
				e += a * y[t-k]
			}
		}
		for k := 1; k < len(ma) && k <= t; k++ {
			if ma[k] != 0 {
				e -= ma[k] * resid[t-k]
			}
		}
		resid[t] = e
		sse += e * e
	}
	return sse
}

// psiWeights returns the first n coefficients of ma(B)/ar(B).
func psiWeights(ar, ma []float64, n int) []float64 {
	psi := make([]float64, n)
	for j := 0; j < n; j++ {
		v := 0.0
		if j < len(ma) {
			v = ma[j]
		}
		for k := 1; k <= j && k < len(ar); k++ {
			v -= ar[k] * psi[j-k]
		}
		psi[j] = v
	}
	return psi
}

// sarimaModel is a fitted model together with the in-sample innovations
// needed to forecast from the end of the series.
type sarimaModel struct {
	params sarimaParams
	ar     []float64
	ma     []float64
	resid  []float64
	nObs   int
	nEff   int
	sigma2 float64
	logLik float64
}

type fitSettings struct {
	runtime        time.Duration
	maxEvaluations int
}

// fitSARIMA estimates the model by conditional sum of squares, which is the
// Gaussian likelihood conditional on the first 26 observations with the
// innovation variance concentrated out.
func fitSARIMA(ctx context.Context, y []float64, settings fitSettings) (*sarimaModel, error) {
	if len(y) < MinObservations {
		return nil, fmt.Errorf("series has %d observations, need at least %d", len(y), MinObservations)
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("observation %d is not finite", i)
		}
	}

	nEff := len(y) - (2*period + 2)
	resid := make([]float64, len(y))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := paramsFromFree(x)
			sse := residuals(y, p.arPoly(), p.maPoly(), resid)
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return math.Inf(1)
			}
			return sse / float64(nEff)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	maxEvals := settings.maxEvaluations
	if maxEvals <= 0 {
		maxEvals = defaultMaxEvaluations
	}
	opts := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Runtime:         settings.runtime,
		Converger:       &optimize.FunctionConverge{Relative: 1e-9, Iterations: 50},
	}

	start := sarimaParams{AR: 0.1, MA: -0.3, SAR: 0.1, SMA: -0.5}
	result, err := optimize.Minimize(problem, start.free(), opts, &optimize.NelderMead{SimplexSize: 0.5})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	// The runtime limit mirrors the context deadline and can fire just before it.
	if result != nil && result.Status == optimize.RuntimeLimit {
		return nil, fmt.Errorf("optimize: %w", context.DeadlineExceeded)
	}
	if result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		if err == nil {
			err = errors.New("objective is not finite")
		}
		return nil, fmt.Errorf("optimize: %w", err)
	}

	params := paramsFromFree(result.X)
	m := &sarimaModel{
		params: params,
		ar:     params.arPoly(),
		ma:     params.maPoly(),
		resid:  resid,
		nObs:   len(y),
		nEff:   nEff,
	}
	sse := residuals(y, m.ar, m.ma, m.resid)
	m.sigma2 = sse / float64(nEff)
	if !(m.sigma2 > 0) || math.IsInf(m.sigma2, 0) {
		return nil, fmt.Errorf("degenerate residual variance %v", m.sigma2)
	}
	m.logLik = -0.5 * float64(nEff) * (math.Log(2*math.Pi*m.sigma2) + 1)
	return m, nil
}

// forecast extends y by steps months. Future innovations are zero, so the
// mean follows the integrated AR recursion and the variance accumulates the
// squared psi-weights.
func (m *sarimaModel) forecast(y []float64, steps int, z float64) (mean, lower, upper []float64) {
	n := len(y)
	ext := make([]float64, n+steps)
	copy(ext, y)
	eps := make([]float64, n+steps)
	copy(eps, m.resid)

	for t := n; t < n+steps; t++ {
		v := 0.0
		for k := 1; k < len(m.ar); k++ {
			if m.ar[k] != 0 {
				v -= m.ar[k] * ext[t-k]
			}
		}
		for k := 1; k < len(m.ma); k++ {
			if m.ma[k] != 0 {
				v += m.ma[k] * eps[t-k]
			}
		}
		ext[t] = v
	}

	psi := psiWeights(m.ar, m.ma, steps)
	mean = make([]float64, steps)
	lower = make([]float64, steps)
	upper = make([]float64, steps)

	var cum float64
	for h := 0; h < steps; h++ {
		cum += psi[h] * psi[h]
		se := math.Sqrt(m.sigma2 * cum)
		mean[h] = ext[n+h]
		lower[h] = mean[h] - z*se
		upper[h] = mean[h] + z*se
	}
	return mean, lower, upper
}

func (m *sarimaModel) summary() domain.ModelSummary {
	const k = 5 // four coefficients plus sigma2
	return domain.ModelSummary{
		Order:         [3]int{1, 1, 1},
		SeasonalOrder: [4]int{1, 1, 1, period},
		Coefficients:  m.params.coefficients(),
		Sigma2:        m.sigma2,
		LogLikelihood: m.logLik,
		AIC:           2*k - 2*m.logLik,
		Observations:  m.nObs,
	}
}
