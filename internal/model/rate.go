package model

import (
	"math"
	"strconv"
)

// Rate is a float64 that may be undefined. NaN and infinities encode as JSON
// null, since a zero denominator is reported rather than substituted.
type Rate float64

// NaN returns an undefined Rate.
func NaN() Rate { return Rate(math.NaN()) }

// Valid reports whether r holds a finite value.
func (r Rate) Valid() bool {
	f := float64(r)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON implements json.Marshaler.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(r), 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (r *Rate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = NaN()
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Rate(f)
	return nil
}
