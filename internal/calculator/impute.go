package calculator

import "github.com/guregu/null/v6"

// Interpolate fills interior null runs by linear interpolation on sequence
// position between the nearest non-null neighbours. Leading and trailing
// runs have only one neighbour and are left untouched.
func Interpolate(values []null.Float) {
	prev := -1
	for i, v := range values {
		if !v.Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo, hi := values[prev].Float64, v.Float64
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / span
				values[j] = null.FloatFrom(lo + (hi-lo)*frac)
			}
		}
		prev = i
	}
}

// ForwardFill propagates the last non-null value forward.
func ForwardFill(values []null.Float) {
	var last null.Float
	for i, v := range values {
		if v.Valid {
			last = v
			continue
		}
		if last.Valid {
			values[i] = last
		}
	}
}

// BackwardFill propagates the next non-null value backward.
func BackwardFill(values []null.Float) {
	var next null.Float
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].Valid {
			next = values[i]
			continue
		}
		if next.Valid {
			values[i] = next
		}
	}
}

// Impute runs the full chain in order: interpolate, forward-fill,
// backward-fill. A column with no valid value stays null.
func Impute(values []null.Float) {
	Interpolate(values)
	ForwardFill(values)
	BackwardFill(values)
}

// CountNull returns the number of null entries.
func CountNull(values []null.Float) int {
	n := 0
	for _, v := range values {
		if !v.Valid {
			n++
		}
	}
	return n
}
