package policy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"github.com/samuelfneumann/rllaunch/utils/matutils"
	"github.com/samuelfneumann/rllaunch/utils/matutils/initializers/weights"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CategoricalLinear implements a softmax policy over linear action
// preferences, W·obs + b. The weights are gob serializable so that
// snapshots can be replayed.
type CategoricalLinear struct {
	weights *mat.Dense // rows = actions, cols = features
	bias    *mat.VecDense

	// Greedy selects the action of maximum probability rather than
	// sampling
	Greedy bool

	src rand.Source
}

// NewCategoricalLinear returns a CategoricalLinear policy for env with
// weights drawn from N(0, 0.01)
func NewCategoricalLinear(env environment.Environment,
	seed uint64) (*CategoricalLinear, error) {
	actions, err := numActions(env)
	if err != nil {
		return nil, fmt.Errorf("newCategoricalLinear: %w", err)
	}
	features := env.ObservationSpec().Shape.Len()

	src := rand.NewSource(seed)
	w := mat.NewDense(actions, features, nil)
	weights.NewLinearUV(distuv.Normal{Mu: 0, Sigma: 0.01, Src: src}).
		Initialize(w)

	return &CategoricalLinear{
		weights: w,
		bias:    mat.NewVecDense(actions, nil),
		src:     src,
	}, nil
}

// Weights returns the weights and bias of the policy
func (c *CategoricalLinear) Weights() (*mat.Dense, *mat.VecDense) {
	return c.weights, c.bias
}

// SetWeights sets the weights and bias of the policy
func (c *CategoricalLinear) SetWeights(w *mat.Dense, b *mat.VecDense) error {
	r, _ := w.Dims()
	if b.Len() != r {
		return fmt.Errorf("setWeights: bias length %v does not match %v "+
			"actions", b.Len(), r)
	}
	c.weights, c.bias = w, b
	return nil
}

// Probabilities returns the action probabilities in the observation
// of t
func (c *CategoricalLinear) Probabilities(t ts.TimeStep) []float64 {
	r, _ := c.weights.Dims()
	prefs := mat.NewVecDense(r, nil)
	prefs.MulVec(c.weights, t.Observation)
	prefs.AddVec(prefs, c.bias)

	return softmax(prefs.RawVector().Data)
}

// SelectAction samples an action from the policy
func (c *CategoricalLinear) SelectAction(t ts.TimeStep) *mat.VecDense {
	probs := c.Probabilities(t)
	if c.Greedy {
		a := matutils.MaxVec(mat.NewVecDense(len(probs), probs))
		return mat.NewVecDense(1, []float64{float64(a)})
	}

	dist := distuv.NewCategorical(probs, c.src)
	return mat.NewVecDense(1, []float64{dist.Rand()})
}

func softmax(prefs []float64) []float64 {
	max := math.Inf(-1)
	for _, p := range prefs {
		max = math.Max(max, p)
	}

	probs := make([]float64, len(prefs))
	sum := 0.0
	for i, p := range prefs {
		probs[i] = math.Exp(p - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

type linearData struct {
	Weights []byte
	Bias    []byte
	Greedy  bool
}

// GobEncode implements the gob.GobEncoder interface
func (c *CategoricalLinear) GobEncode() ([]byte, error) {
	w, err := c.weights.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("gobEncode: %w", err)
	}
	b, err := c.bias.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("gobEncode: %w", err)
	}

	var buf bytes.Buffer
	err = gob.NewEncoder(&buf).Encode(linearData{w, b, c.Greedy})
	return buf.Bytes(), err
}

// GobDecode implements the gob.GobDecoder interface. The random source
// of a decoded policy is seeded with 0 unless set with Seed.
func (c *CategoricalLinear) GobDecode(in []byte) error {
	var data linearData
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&data); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}

	c.weights = &mat.Dense{}
	if err := c.weights.UnmarshalBinary(data.Weights); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	c.bias = &mat.VecDense{}
	if err := c.bias.UnmarshalBinary(data.Bias); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	c.Greedy = data.Greedy
	if c.src == nil {
		c.src = rand.NewSource(0)
	}
	return nil
}

// Seed reseeds the random source used to sample actions
func (c *CategoricalLinear) Seed(seed uint64) {
	c.src = rand.NewSource(seed)
}

// Save saves the policy to filename
func (c *CategoricalLinear) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// LoadCategoricalLinear loads a policy saved with Save
func LoadCategoricalLinear(filename string) (*CategoricalLinear, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadCategoricalLinear: %w", err)
	}
	defer file.Close()

	c := &CategoricalLinear{}
	if err := gob.NewDecoder(file).Decode(c); err != nil {
		return nil, fmt.Errorf("loadCategoricalLinear: %w", err)
	}
	return c, nil
}

func (c *CategoricalLinear) String() string {
	r, col := c.weights.Dims()
	return fmt.Sprintf("CategoricalLinear(%v actions, %v features)", r, col)
}
