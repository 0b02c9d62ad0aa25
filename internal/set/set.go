// Package set provides a minimal generic set datastructure.
package set

type Set[T comparable] map[T]struct{}

func From[T comparable](elems []T) Set[T] {
	result := make(Set[T], len(elems))

	for _, e := range elems {
		result[e] = struct{}{}
	}

	return result
}

func (s Set[T]) Contains(elem T) bool {
	_, exist := s[elem]
	return exist
}

func (s Set[T]) Add(elem T) {
	s[elem] = struct{}{}
}

// AsSlice returns a new slice containing the elements of the set in undefined
// order.
func (s Set[T]) AsSlice() []T {
	result := make([]T, 0, len(s))

	for e := range s {
		result = append(result, e)
	}

	return result
}
