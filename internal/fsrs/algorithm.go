package fsrs

import (
	"math"

	"github.com/conorfennell/lingosrs/internal/domain"
)

const (
	minStability  = 0.001
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// algo holds the weights and the constants derived from them.
type algo struct {
	w      [21]float64
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newAlgo(w [21]float64) algo {
	decay := -w[20]
	return algo{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1/decay) - 1,
	}
}

// retrievability: R(t, S) = (1 + factor * t / S) ^ decay
func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+a.factor*elapsedDays/stability, a.decay)
}

// initStability: S0(G) = w[G-1]
func (a *algo) initStability(r domain.Rating) float64 {
	return clampS(a.w[r-1])
}

// initDifficulty: D0(G) = w[4] - e^(w[5] * (G - 1)) + 1
func (a *algo) initDifficulty(r domain.Rating, clamp bool) float64 {
	d := a.w[4] - math.Exp(a.w[5]*float64(r-1)) + 1
	if clamp {
		return clampD(d)
	}
	return d
}

// nextInterval is the number of days after which recall probability falls
// to the requested retention: I = S / factor * (r^(1/decay) - 1),
// rounded and clamped to [1, maxIvl].
func (a *algo) nextInterval(stability, retention float64, maxIvl int) int {
	ivl := stability / a.factor * (math.Pow(retention, 1/a.decay) - 1)
	days := int(math.Round(ivl))
	return max(1, min(days, maxIvl))
}

// shortTermStability is used for reviews less than a day apart.
// SInc = e^(w[17] * (G - 3 + w[18])) * S^(-w[19]), at least 1 for Good and Easy.
func (a *algo) shortTermStability(stability float64, r domain.Rating) float64 {
	sInc := math.Exp(a.w[17]*(float64(r)-3+a.w[18])) * math.Pow(stability, -a.w[19])
	if r == domain.Good || r == domain.Easy {
		sInc = math.Max(sInc, 1)
	}
	return clampS(stability * sInc)
}

// nextDifficulty applies linear damping toward 10 and mean reversion
// toward D0(Easy):
//
//	D'  = D + (10 - D) * (-w[6] * (G - 3)) / 9
//	D'' = w[7] * D0(Easy) + (1 - w[7]) * D'
func (a *algo) nextDifficulty(d float64, r domain.Rating) float64 {
	delta := -a.w[6] * (float64(r) - 3)
	damped := d + (10-d)*delta/9
	target := a.initDifficulty(domain.Easy, false)
	return clampD(a.w[7]*target + (1-a.w[7])*damped)
}

func (a *algo) nextStability(d, s, r float64, rating domain.Rating) float64 {
	if rating == domain.Again {
		return a.forgetStability(d, s, r)
	}
	return a.recallStability(d, s, r, rating)
}

// recallStability: S' = S * (1 + e^w[8] * (11 - D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hard * easy)
func (a *algo) recallStability(d, s, r float64, rating domain.Rating) float64 {
	hardPenalty := 1.0
	if rating == domain.Hard {
		hardPenalty = a.w[15]
	}
	easyBonus := 1.0
	if rating == domain.Easy {
		easyBonus = a.w[16]
	}
	return clampS(s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-r)*a.w[10])-1)*
		hardPenalty*easyBonus))
}

// forgetStability is the lapse formula, capped so a lapse never raises
// stability above S / e^(w[17] * w[18]):
//
//	long = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14])
func (a *algo) forgetStability(d, s, r float64) float64 {
	long := a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp((1-r)*a.w[14])
	short := s / math.Exp(a.w[17]*a.w[18])
	return clampS(math.Min(long, short))
}

func clampS(s float64) float64 {
	return math.Max(s, minStability)
}

func clampD(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
