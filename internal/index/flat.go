// Package index provides an ephemeral in-memory nearest-neighbor index over
// candidate vectors. An index is built once per matching request, queried
// once, and discarded.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmpty is returned when an index is built from zero vectors.
var ErrEmpty = errors.New("index: at least one vector is required")

// DimensionError reports a vector whose dimension does not match the rest of
// the index.
type DimensionError struct {
	Want     int
	Got      int
	Position int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("index: vector %d has dimension %d, want %d", e.Position, e.Got, e.Want)
}

// Hit is a single search result: the insertion index of the matched vector
// and its squared L2 distance to the query.
type Hit struct {
	Index    int
	Distance float32
}

// Flat is a brute-force squared-L2 index. It holds the vectors in insertion
// order and scans all of them on every search.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build creates a Flat index over the provided vectors. All vectors must
// share the same dimension; the first vector defines it.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, &DimensionError{Want: 1, Got: 0, Position: 0}
	}

	for i, v := range vectors {
		if len(v) != dim {
			return nil, &DimensionError{Want: dim, Got: len(v), Position: i}
		}
	}

	return &Flat{dim: dim, vectors: vectors}, nil
}

// Dimension returns the vector dimension of the index.
func (f *Flat) Dimension() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Search returns up to min(k, Len()) hits ordered by ascending distance.
// Equal distances are broken by the smaller insertion index, so results are
// deterministic for identical inputs.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, &DimensionError{Want: f.dim, Got: len(query)}
	}

	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Index: i, Distance: squaredL2(query, v)}
	}

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	return hits[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
