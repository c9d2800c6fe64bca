package enums

import (
	"fmt"
	"slices"
)

// Every enum in this package is a string type backed by a Postgres enum, with
// its legal values listed in a package-level slice.

func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](kind string, set []T, value string) (T, error) {
	if v := T(value); member(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
