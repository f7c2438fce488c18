package score

import "fmt"

// Weights is a validated list of non-negative weights with a positive sum.
type Weights struct {
	w     []float64
	scale Scale
}

// NewWeights validates w.
func NewWeights(w ...float64) (Weights, error) {
	var sum float64
	for _, x := range w {
		if x < 0 {
			return Weights{}, fmt.Errorf("weight %v: %w", x, ErrInvalidWeights)
		}
		sum += x
	}
	if sum <= 0 {
		return Weights{}, fmt.Errorf("weight sum %v: %w", sum, ErrInvalidWeights)
	}
	return Weights{
		w:     append([]float64(nil), w...),
		scale: Scale{lo: sum, hi: Max * sum},
	}, nil
}

// MustWeights is NewWeights for weights fixed at compile time.
func MustWeights(w ...float64) Weights {
	ws, err := NewWeights(w...)
	if err != nil {
		panic(err)
	}
	return ws
}

// Len reports the number of weights.
func (ws Weights) Len() int { return len(ws.w) }

// Combine returns the weighted combination of values on the 1-10 scale.
// A weighted sum of all-1 values maps to 1 and of all-10 values to 10.
// Pairs are zipped to the shorter of the two lists.
func (ws Weights) Combine(values ...float64) float64 {
	n := min(len(ws.w), len(values))
	var sum float64
	for i := 0; i < n; i++ {
		sum += ws.w[i] * values[i]
	}
	return ws.scale.Linear(sum)
}

// Aggregate combines values with weights in one call.
func Aggregate(weights, values []float64) (float64, error) {
	ws, err := NewWeights(weights...)
	if err != nil {
		return 0, err
	}
	return ws.Combine(values...), nil
}
