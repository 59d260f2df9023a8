package policy

import (
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CategoricalRandom selects actions uniformly at random
type CategoricalRandom struct {
	actions int
	dist    distuv.Categorical
}

// NewCategoricalRandom returns a new CategoricalRandom policy over the
// discrete actions of env
func NewCategoricalRandom(env environment.Environment,
	seed uint64) (*CategoricalRandom, error) {
	actions, err := numActions(env)
	if err != nil {
		return nil, fmt.Errorf("newCategoricalRandom: %w", err)
	}

	probs := make([]float64, actions)
	for i := range probs {
		probs[i] = 1.0 / float64(actions)
	}
	dist := distuv.NewCategorical(probs, rand.NewSource(seed))

	return &CategoricalRandom{actions: actions, dist: dist}, nil
}

// SelectAction selects an action uniformly at random, ignoring the
// TimeStep
func (c *CategoricalRandom) SelectAction(ts.TimeStep) *mat.VecDense {
	return mat.NewVecDense(1, []float64{c.dist.Rand()})
}

func (c *CategoricalRandom) String() string {
	return fmt.Sprintf("CategoricalRandom(%v)", c.actions)
}
