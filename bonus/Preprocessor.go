package bonus

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Preprocessor maps a batch of states, one per row, to the items that
// are hashed
type Preprocessor interface {
	Process(states mat.Matrix) (*mat.Dense, error)
	OutputDim() int
}

// Slice selects the indices Start, Start+Step, ... up to but excluding
// Stop along one dimension. Negative Start and Stop count from the end
// of the dimension, a zero Stop means the end, and a zero Step means 1.
type Slice struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// Indices returns the indices selected by the Slice in a dimension of
// size n. A nil Slice selects every index.
func (s *Slice) Indices(n int) []int {
	if s == nil {
		return (&Slice{}).Indices(n)
	}
	start, stop, step := s.Start, s.Stop, s.Step
	if step <= 0 {
		step = 1
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	} else if stop == 0 || stop > n {
		stop = n
	}
	if start < 0 {
		start = 0
	}

	var indices []int
	for i := start; i < stop; i += step {
		indices = append(indices, i)
	}
	return indices
}

// Identity passes states through unchanged
type Identity struct {
	Dim int `json:"dim"`
}

// Process implements the Preprocessor interface
func (i Identity) Process(states mat.Matrix) (*mat.Dense, error) {
	if _, c := states.Dims(); c != i.Dim {
		return nil, fmt.Errorf("process: expected states of dimension "+
			"%v, got %v", i.Dim, c)
	}
	return mat.DenseCopyOf(states), nil
}

// OutputDim implements the Preprocessor interface
func (i Identity) OutputDim() int {
	return i.Dim
}

// ImageVectorize flattens stacked images after optionally slicing each
// of the channel, height and width dimensions. States are laid out
// channel first, then row-major within each channel.
type ImageVectorize struct {
	NChannel int `json:"n_channel"`
	Width    int `json:"width"`
	Height   int `json:"height"`

	// Slices apply to the channel, height and width dimensions in turn
	Slices [3]*Slice `json:"slices"`
}

func (v ImageVectorize) indices() []int {
	channels := v.Slices[0].Indices(v.NChannel)
	rows := v.Slices[1].Indices(v.Height)
	cols := v.Slices[2].Indices(v.Width)

	indices := make([]int, 0, len(channels)*len(rows)*len(cols))
	for _, c := range channels {
		for _, y := range rows {
			for _, x := range cols {
				indices = append(indices, (c*v.Height+y)*v.Width+x)
			}
		}
	}
	return indices
}

// Process implements the Preprocessor interface
func (v ImageVectorize) Process(states mat.Matrix) (*mat.Dense, error) {
	r, c := states.Dims()
	if want := v.NChannel * v.Width * v.Height; c != want {
		return nil, fmt.Errorf("process: expected states of dimension "+
			"%v (%v x %v x %v), got %v", want, v.NChannel, v.Height,
			v.Width, c)
	}
	return gather(states, r, v.indices())
}

// OutputDim implements the Preprocessor interface
func (v ImageVectorize) OutputDim() int {
	return len(v.indices())
}

// Slicing selects a slice of flat states
type Slicing struct {
	InputDim int    `json:"input_dim"`
	Slice    *Slice `json:"slice"`
}

// Process implements the Preprocessor interface
func (s Slicing) Process(states mat.Matrix) (*mat.Dense, error) {
	r, c := states.Dims()
	if c != s.InputDim {
		return nil, fmt.Errorf("process: expected states of dimension "+
			"%v, got %v", s.InputDim, c)
	}
	return gather(states, r, s.Slice.Indices(s.InputDim))
}

// OutputDim implements the Preprocessor interface
func (s Slicing) OutputDim() int {
	return len(s.Slice.Indices(s.InputDim))
}

func gather(states mat.Matrix, rows int, indices []int) (*mat.Dense, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("process: slices select no elements")
	}
	if rows == 0 {
		return nil, fmt.Errorf("process: no states")
	}
	out := mat.NewDense(rows, len(indices), nil)
	for i := 0; i < rows; i++ {
		for j, idx := range indices {
			out.Set(i, j, states.At(i, idx))
		}
	}
	return out, nil
}
