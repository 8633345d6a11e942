package rng

// Chance reports whether a draw lands under p. p <= 0 never hits, p >= 1 always does; one
// value is consumed from src either way so callers keep a stable draw count.
func Chance(src Source, p float64) bool {
	u := src.Float64()
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return u < p
}

// Range returns an integer in [lo,hi]. Inverted bounds are swapped.
func Range(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Pick returns one element uniformly. ok is false for an empty slice.
func Pick[T any](src Source, items []T) (v T, ok bool) {
	if len(items) == 0 {
		return v, false
	}
	return items[src.IntN(len(items))], true
}

// WeightedIndex picks an index with probability proportional to its weight. Non-positive
// weights are never chosen; -1 means nothing was eligible.
func WeightedIndex(src Source, weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	target := src.Float64() * total

	var acc float64
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

// Shuffle permutes items in place (Fisher-Yates).
func Shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
