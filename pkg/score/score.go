// Package score maps raw marketplace metrics onto the 1-10 scale used by every
// keyword sub-score and composite.
package score

import (
	"errors"
	"fmt"
	"math"
)

// Bounds of the normalized scale.
const (
	Min = 1.0
	Max = 10.0
)

var (
	// ErrEmptyRange is returned when a scale is built with min >= max.
	ErrEmptyRange = errors.New("score: empty range")
	// ErrInvalidWeights is returned for negative weights or a non-positive weight sum.
	ErrInvalidWeights = errors.New("score: invalid weights")
)

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [Min, Max].
func Clamp(v float64) float64 {
	return math.Max(Min, math.Min(Max, v))
}

// Scale is a validated [lo, hi] input range.
type Scale struct {
	lo, hi float64
}

// NewScale returns a scale over [lo, hi].
func NewScale(lo, hi float64) (Scale, error) {
	if lo >= hi || math.IsNaN(lo) || math.IsNaN(hi) {
		return Scale{}, fmt.Errorf("scale [%v, %v]: %w", lo, hi, ErrEmptyRange)
	}
	return Scale{lo: lo, hi: hi}, nil
}

// MustScale is NewScale for ranges fixed at compile time.
func MustScale(lo, hi float64) Scale {
	s, err := NewScale(lo, hi)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Scale) clamp(v float64) float64 {
	return math.Max(s.lo, math.Min(s.hi, v))
}

// Linear maps lo to 1 and hi to 10. Out of range values are clamped first.
func (s Scale) Linear(v float64) float64 {
	return Round(Min + (Max-Min)*(s.clamp(v)-s.lo)/(s.hi-s.lo))
}

// Inverse maps lo to 10 and hi to 1.
func (s Scale) Inverse(v float64) float64 {
	return Round(Min + (Max-Min)*(s.hi-s.clamp(v))/(s.hi-s.lo))
}

// Linear is Scale.Linear over [lo, hi].
func Linear(lo, hi, v float64) (float64, error) {
	s, err := NewScale(lo, hi)
	if err != nil {
		return 0, err
	}
	return s.Linear(v), nil
}

// ZeroBased is Linear over [0, hi].
func ZeroBased(hi, v float64) (float64, error) {
	return Linear(0, hi, v)
}

// Inverse is Scale.Inverse over [lo, hi].
func Inverse(lo, hi, v float64) (float64, error) {
	s, err := NewScale(lo, hi)
	if err != nil {
		return 0, err
	}
	return s.Inverse(v), nil
}

// InverseZeroBased is Inverse over [0, hi].
func InverseZeroBased(hi, v float64) (float64, error) {
	return Inverse(0, hi, v)
}
