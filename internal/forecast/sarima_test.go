package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolyMul(t *testing.T) {
	// (1 - B)(1 + B) = 1 - B²
	got := polyMul([]float64{1, -1}, []float64{1, 1})
	assert.InDeltaSlice(t, []float64{1, 0, -1}, got, 1e-12)
}

func TestArPoly_Degree(t *testing.T) {
	p := sarimaParams{AR: 0.5, SAR: 0.25}
	ar := p.arPoly()

	assert.Len(t, ar, 2*period+3)
	assert.InDelta(t, 1.0, ar[0], 1e-12)
	// Lag 1 collects -φ from the AR factor and -1 from the first difference.
	assert.InDelta(t, -1.5, ar[1], 1e-12)
}

func TestMaPoly(t *testing.T) {
	p := sarimaParams{MA: -0.4, SMA: -0.6}
	ma := p.maPoly()

	assert.Len(t, ma, period+2)
	assert.InDelta(t, -0.4, ma[1], 1e-12)
	assert.InDelta(t, -0.6, ma[12], 1e-12)
	assert.InDelta(t, 0.24, ma[13], 1e-12)
}

func TestResiduals_ZeroParamsIsDoubleDifference(t *testing.T) {
	y := make([]float64, 40)
	for i := range y {
		y[i] = float64(i*i) + float64(i%period)
	}
	p := sarimaParams{}
	resid := make([]float64, len(y))
	residuals(y, p.arPoly(), p.maPoly(), resid)

	for t0 := 0; t0 < 2*period+2; t0++ {
		assert.Zero(t, resid[t0])
	}
	for t0 := 2*period + 2; t0 < len(y); t0++ {
		want := y[t0] - y[t0-1] - y[t0-period] + y[t0-period-1]
		assert.InDelta(t, want, resid[t0], 1e-9)
	}
}

func TestPsiWeights_RandomWalk(t *testing.T) {
	psi := psiWeights([]float64{1, -1}, []float64{1}, 5)
	assert.InDeltaSlice(t, []float64{1, 1, 1, 1, 1}, psi, 1e-12)
}

func TestParamsRoundTrip(t *testing.T) {
	p := sarimaParams{AR: 0.3, MA: -0.7, SAR: -0.2, SMA: 0.9}
	got := paramsFromFree(p.free())
	assert.InDelta(t, p.AR, got.AR, 1e-12)
	assert.InDelta(t, p.MA, got.MA, 1e-12)
	assert.InDelta(t, p.SAR, got.SAR, 1e-12)
	assert.InDelta(t, p.SMA, got.SMA, 1e-12)
}
