package bonus

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/rollout"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BonusForm determines how a count n is turned into a bonus
type BonusForm string

const (
	InvSqrt BonusForm = "1/sqrt(n)"
	Inv     BonusForm = "1/n"
	InvLog  BonusForm = "1/log(n)"
)

// Bonus returns the bonus for a state visited n times. Unvisited states
// are treated as visited once, and 1/log(n) is capped at 1.
func (f BonusForm) Bonus(n int) (float64, error) {
	count := math.Max(float64(n), 1)
	switch f {
	case InvSqrt:
		return 1 / math.Sqrt(count), nil
	case Inv:
		return 1 / count, nil
	case InvLog:
		return 1 / math.Max(1, math.Log(count)), nil
	}
	return 0, fmt.Errorf("bonus: %w: bonus form %q",
		environment.ErrNotImplemented, f)
}

// CountTarget determines which part of a path is counted
type CountTarget string

const (
	Observations CountTarget = "observations"
	Images       CountTarget = "images"
	RAMStates    CountTarget = "ram_states"
)

// Evaluator computes exploration bonuses for paths
type Evaluator interface {
	// Fit updates the evaluator with a batch of paths
	Fit(ctx context.Context, paths []rollout.Path) error

	// Predict returns the bonus of each step of path
	Predict(ctx context.Context, path rollout.Path) ([]float64, error)
}

// Zero is an Evaluator that gives no bonus
type Zero struct{}

func (Zero) Fit(context.Context, []rollout.Path) error { return nil }

func (Zero) Predict(_ context.Context, path rollout.Path) ([]float64,
	error) {
	return make([]float64, path.Len()), nil
}

// Hashing is an Evaluator that counts states with a SimHash
type Hashing struct {
	hash   *SimHash
	pre    Preprocessor
	form   BonusForm
	target CountTarget

	// LogPrefix distinguishes the log records of several evaluators
	LogPrefix string
	logger    *slog.Logger
}

// NewHashing returns a new Hashing evaluator. The output dimension of
// pre must match the item dimension of hash.
func NewHashing(hash *SimHash, pre Preprocessor, form BonusForm,
	target CountTarget, logger *slog.Logger) (*Hashing, error) {
	if _, err := form.Bonus(1); err != nil {
		return nil, fmt.Errorf("newHashing: %w", err)
	}
	switch target {
	case Observations, Images, RAMStates:
	default:
		return nil, fmt.Errorf("newHashing: %w: count target %q",
			environment.ErrNotImplemented, target)
	}
	if pre.OutputDim() != hash.ItemDim() {
		return nil, fmt.Errorf("newHashing: preprocessor output dimension "+
			"%v does not match hash item dimension %v", pre.OutputDim(),
			hash.ItemDim())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Hashing{
		hash:   hash,
		pre:    pre,
		form:   form,
		target: target,
		logger: logger,
	}, nil
}

// Hash returns the SimHash of the evaluator
func (h *Hashing) Hash() *SimHash {
	return h.hash
}

// States returns the counted states of path, one per row
func (h *Hashing) States(path rollout.Path) (*mat.Dense, error) {
	var rows [][]float64
	switch h.target {
	case Observations:
		for _, obs := range path.Observations {
			rows = append(rows, obs.RawVector().Data)
		}

	case Images:
		for _, img := range path.Infos(ts.Images) {
			v, ok := img.([]float64)
			if !ok {
				return nil, fmt.Errorf("states: image has type %T", img)
			}
			rows = append(rows, v)
		}

	case RAMStates:
		for _, ram := range path.Infos(ts.RAMs) {
			b, ok := ram.([]byte)
			if !ok {
				return nil, fmt.Errorf("states: RAM has type %T", ram)
			}
			v := make([]float64, len(b))
			for i := range b {
				v[i] = float64(b[i])
			}
			rows = append(rows, v)
		}
	}

	if len(rows) != path.Len() {
		return nil, fmt.Errorf("states: path of length %v has %v %v, "+
			"record them in the environment", path.Len(), len(rows),
			h.target)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("states: empty path")
	}

	states := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("states: ragged %v", h.target)
		}
		states.SetRow(i, row)
	}
	return states, nil
}

func (h *Hashing) items(paths []rollout.Path) (*mat.Dense, error) {
	var stacked *mat.Dense
	for _, path := range paths {
		if path.Len() == 0 {
			continue
		}
		states, err := h.States(path)
		if err != nil {
			return nil, err
		}
		if stacked == nil {
			stacked = states
			continue
		}
		var next mat.Dense
		next.Stack(stacked, states)
		stacked = &next
	}
	if stacked == nil {
		return nil, fmt.Errorf("items: no states in paths")
	}
	return h.pre.Process(stacked)
}

// Fit increments the counts of every state in paths
func (h *Hashing) Fit(ctx context.Context, paths []rollout.Path) error {
	items, err := h.items(paths)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	before, err := h.hash.QueryCounts(ctx, items)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	if err := h.hash.Inc(ctx, items); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	newStates := 0
	for _, n := range before {
		if n == 0 {
			newStates++
		}
	}
	distinct, err := h.hash.Distinct(ctx)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	h.logger.Info("fit hash counts", "prefix", h.LogPrefix,
		"states", len(before), "new", newStates, "distinct", distinct)
	return nil
}

// Predict returns the bonus of each step of path
func (h *Hashing) Predict(ctx context.Context, path rollout.Path) ([]float64,
	error) {
	if path.Len() == 0 {
		return nil, nil
	}
	items, err := h.items([]rollout.Path{path})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	counts, err := h.hash.QueryCounts(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	bonuses := make([]float64, len(counts))
	for i, n := range counts {
		if bonuses[i], err = h.form.Bonus(n); err != nil {
			return nil, fmt.Errorf("predict: %w", err)
		}
	}
	h.logger.Debug("predicted bonuses", "prefix", h.LogPrefix,
		"mean", floats.Sum(bonuses)/float64(len(bonuses)),
		"max", floats.Max(bonuses), "min", floats.Min(bonuses))
	return bonuses, nil
}
