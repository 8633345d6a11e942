package schedule

import (
	"fmt"
	"math"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/rng"
	"floracraft.ai/internal/sim/tuning"
)

// Modifiers carry event-kind specific inputs beyond the suitability multiplier.
type Modifiers struct {
	// Wind in [0,1] raises the drop rate only.
	Wind float64
	// GrowthBlocked is set by callers that know the part's prerequisite is immature.
	GrowthBlocked bool
}

// Rates are effective per-tick probabilities. Grow+Drop never exceeds 1.
type Rates struct {
	Grow float64
	Drop float64
}

func (r Rates) Total() float64 { return r.Grow + r.Drop }

// Next is the tick at which a part's next stochastic event fires, and which one it is.
type Next struct {
	Tick uint64
	Kind model.Kind
}

const defaultMaxWait = uint64(1) << 62

// RatesFor combines base probabilities with the multiplier, wind and the structural slowdown.
// A part at capacity cannot grow; an empty part cannot drop.
func RatesFor(part model.Part, multiplier float64, mod Modifiers, t tuning.Tuning) (Rates, error) {
	if err := finite(part.Name, "multiplier", multiplier); err != nil {
		return Rates{}, err
	}
	if err := finite(part.Name, "wind", mod.Wind); err != nil {
		return Rates{}, err
	}
	if err := probability(part.Name, "grow_prob", part.GrowProb); err != nil {
		return Rates{}, err
	}
	if err := probability(part.Name, "drop_prob", part.DropProb); err != nil {
		return Rates{}, err
	}
	m := math.Max(0, multiplier)
	g := t.Growth

	var r Rates
	if part.Qty < part.MaxQty && !mod.GrowthBlocked {
		r.Grow = part.GrowProb * g.GrowScale * m
	}
	if part.Qty > 0 {
		r.Drop = part.DropProb * g.DropScale * m * (1 + g.WindDropBoost*clamp01(mod.Wind))
	}
	if part.Structural() {
		r.Grow *= g.StructuralRateScale
		r.Drop *= g.StructuralRateScale
	}
	r.Grow = clamp01(r.Grow)
	r.Drop = clamp01(r.Drop)
	if total := r.Total(); total > 1 {
		r.Grow /= total
		r.Drop /= total
	}
	return r, nil
}

// Decide maps one uniform draw onto an outcome: growth claims the low end of [0,1), drops the
// high end, and the middle is a quiet tick.
func Decide(u float64, r Rates) model.Kind {
	switch {
	case r.Grow > 0 && u < r.Grow:
		return model.KindGrow
	case r.Drop > 0 && u >= 1-r.Drop:
		return model.KindDrop
	default:
		return model.KindNone
	}
}

// NextEvent samples the wait until a part's next event instead of rolling every tick.
// ok is false when no event can fire under current conditions; callers should not poll the
// part again until the multiplier, wind or quantities change. nowTick at the maximum tick is
// an E_OUT_OF_RANGE error.
func NextEvent(part model.Part, multiplier float64, nowTick uint64, seed string, t tuning.Tuning, mod Modifiers) (Next, bool, error) {
	r, err := RatesFor(part, multiplier, mod, t)
	if err != nil {
		return Next{}, false, err
	}
	p := r.Total()
	if p <= 0 {
		return Next{}, false, nil
	}
	if nowTick == math.MaxUint64 {
		// No tick exists after the last one.
		return Next{}, false, &model.DataError{Code: model.ErrOutOfRange, Part: part.Name, Field: "tick", Detail: "no tick after the maximum"}
	}

	src := rng.New(rng.DeriveTick(seed, nowTick, "schedule", part.Name))
	wait := GeometricWait(src.Float64(), p, t.Growth.MaxWaitTicks)
	if headroom := math.MaxUint64 - nowTick; wait > headroom {
		wait = headroom
	}

	kind := model.KindDrop
	if rng.Chance(src, r.Grow/p) {
		kind = model.KindGrow
	}
	return Next{Tick: nowTick + wait, Kind: kind}, true, nil
}

// GeometricWait inverse-samples the number of Bernoulli(p) trials up to and including the
// first success. The result is always >= 1 and never above maxWait.
func GeometricWait(u, p float64, maxWait uint64) uint64 {
	if maxWait == 0 {
		maxWait = defaultMaxWait
	}
	if p >= 1 || u <= 0 {
		return 1
	}
	if p <= 0 || u >= 1 {
		return maxWait
	}
	w := math.Ceil(math.Log1p(-u) / math.Log1p(-p))
	if !(w >= 1) {
		return 1
	}
	if w >= float64(maxWait) {
		return maxWait
	}
	return uint64(w)
}

func finite(partName, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &model.DataError{Code: model.ErrNonFinite, Part: partName, Field: field, Detail: fmt.Sprintf("%v", v)}
	}
	return nil
}

func probability(partName, field string, v float64) error {
	if err := finite(partName, field, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return &model.DataError{Code: model.ErrOutOfRange, Part: partName, Field: field, Detail: fmt.Sprintf("%g outside [0,1]", v)}
	}
	return nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
