package ranking

import (
	"errors"
	"fmt"
	"strconv"
)

// Radius is the user-selected maximum distance in kilometers.
type Radius int

// Radius values offered by the app. RadiusUnbounded disables filtering.
const (
	RadiusUnbounded Radius = 0
	Radius10        Radius = 10
	Radius25        Radius = 25
	Radius50        Radius = 50
	Radius100       Radius = 100
)

// ErrInvalidRadius is returned by ParseRadius for values outside the menu.
var ErrInvalidRadius = errors.New("invalid radius")

// ParseRadius accepts "10", "25", "50", "100" and "all". The empty string
// means "all".
func ParseRadius(s string) (Radius, error) {
	switch s {
	case "", "all":
		return RadiusUnbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidRadius, s)
	}
	switch r := Radius(n); r {
	case Radius10, Radius25, Radius50, Radius100:
		return r, nil
	}
	return 0, fmt.Errorf("%w %q", ErrInvalidRadius, s)
}

// String renders the radius the way ParseRadius accepts it.
func (r Radius) String() string {
	if r == RadiusUnbounded {
		return "all"
	}
	return strconv.Itoa(int(r))
}

// Distanced is implemented by feed entries that carry a computed distance.
type Distanced interface {
	DistanceKm() *float64
}

// FilterByRadius keeps entries within r kilometers. Entries with an unknown
// distance are always kept. Order is preserved; the input is not modified.
// With RadiusUnbounded the input slice is returned as is.
func FilterByRadius[T Distanced](items []T, r Radius) []T {
	if r == RadiusUnbounded {
		return items
	}
	limit := float64(r)
	out := make([]T, 0, len(items))
	for _, it := range items {
		d := it.DistanceKm()
		if d == nil || *d <= limit {
			out = append(out, it)
		}
	}
	return out
}
