// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import "gonum.org/v1/gonum/mat"

// MaxVec finds and returns the index of the maximum value in a vector.
// If multiple equal max values exist, only the first one is returned.
func MaxVec(values mat.Vector) int {
	max, idx := values.AtVec(0), 0

	for i := 0; i < values.Len(); i++ {
		if values.AtVec(i) > max {
			max = values.AtVec(i)
			idx = i
		}
	}
	return idx
}

// Sign returns the sign of each element of a vector, -1, 0 or 1
func Sign(values mat.Vector) []int {
	signs := make([]int, values.Len())
	for i := range signs {
		switch v := values.AtVec(i); {
		case v > 0:
			signs[i] = 1
		case v < 0:
			signs[i] = -1
		}
	}
	return signs
}
