package algo

const (
	CategoricalMLPType    Type = "CategoricalMLP"
	CategoricalConvType   Type = "CategoricalConv"
	CategoricalRandomType Type = "CategoricalRandom"
	GaussianMLPType       Type = "GaussianMLP"
)

func init() {
	Register(CategoricalMLPType, CategoricalMLP{})
	Register(CategoricalConvType, CategoricalConv{})
	Register(CategoricalRandomType, CategoricalRandom{})
	Register(GaussianMLPType, GaussianMLP{})
}

// ConvNetwork describes a convolutional network followed by fully
// connected layers. The i-th convolution has ConvFilters[i] filters of
// size ConvFilterSizes[i], stride ConvStrides[i] and padding
// ConvPads[i].
type ConvNetwork struct {
	ConvFilters        []int  `json:"conv_filters"`
	ConvFilterSizes    []int  `json:"conv_filter_sizes"`
	ConvStrides        []int  `json:"conv_strides"`
	ConvPads           []int  `json:"conv_pads"`
	HiddenSizes        []int  `json:"hidden_sizes"`
	HiddenNonlinearity string `json:"hidden_nonlinearity"`
	OutputNonlinearity string `json:"output_nonlinearity,omitempty"`
}

// NIPSDQN returns the network of the NIPS 2013 DQN paper with a softmax
// output
func NIPSDQN() ConvNetwork {
	return ConvNetwork{
		ConvFilters:        []int{16, 32},
		ConvFilterSizes:    []int{8, 4},
		ConvStrides:        []int{4, 2},
		ConvPads:           []int{0, 0},
		HiddenSizes:        []int{256},
		HiddenNonlinearity: "rectify",
		OutputNonlinearity: "softmax",
	}
}

// Validate returns an error if the layer lists disagree in length or
// contain non-positive sizes
func (c ConvNetwork) Validate() error {
	n := len(c.ConvFilters)
	if len(c.ConvFilterSizes) != n || len(c.ConvStrides) != n ||
		len(c.ConvPads) != n {
		return invalid("validate", "convolution lists have different "+
			"lengths")
	}
	if err := positiveInts("validate", "conv filters", c.ConvFilters); err != nil {
		return err
	}
	if err := positiveInts("validate", "conv filter sizes",
		c.ConvFilterSizes); err != nil {
		return err
	}
	if err := positiveInts("validate", "conv strides", c.ConvStrides); err != nil {
		return err
	}
	for _, p := range c.ConvPads {
		if p < 0 {
			return invalid("validate", "conv pads cannot be negative")
		}
	}
	return positiveInts("validate", "hidden sizes", c.HiddenSizes)
}

// CategoricalMLP is a softmax policy over discrete actions computed by
// a fully connected network, or by ProbNetwork if set
type CategoricalMLP struct {
	Name         string       `json:"name,omitempty"`
	HiddenSizes  []int        `json:"hidden_sizes"`
	NumSeqInputs int          `json:"num_seq_inputs,omitempty"`
	ProbNetwork  *ConvNetwork `json:"prob_network,omitempty"`
}

func (CategoricalMLP) Type() Type { return CategoricalMLPType }

func (c CategoricalMLP) Validate() error {
	if c.ProbNetwork != nil {
		return c.ProbNetwork.Validate()
	}
	if c.NumSeqInputs < 0 {
		return invalid("validate", "negative number of sequence inputs")
	}
	return positiveInts("validate", "hidden sizes", c.HiddenSizes)
}

// CategoricalConv is a softmax policy over discrete actions computed by
// a convolutional network
type CategoricalConv struct {
	Name string `json:"name,omitempty"`
	ConvNetwork
}

func (CategoricalConv) Type() Type { return CategoricalConvType }

func (c CategoricalConv) Validate() error {
	return c.ConvNetwork.Validate()
}

// CategoricalRandom selects actions uniformly at random
type CategoricalRandom struct{}

func (CategoricalRandom) Type() Type      { return CategoricalRandomType }
func (CategoricalRandom) Validate() error { return nil }

// GaussianMLP is a Gaussian policy over continuous actions whose mean is
// computed by a fully connected network
type GaussianMLP struct {
	HiddenSizes []int   `json:"hidden_sizes"`
	InitStd     float64 `json:"init_std"`
}

func (GaussianMLP) Type() Type { return GaussianMLPType }

func (g GaussianMLP) Validate() error {
	if g.InitStd <= 0 {
		return invalid("validate", "initial standard deviation must be "+
			"positive, got %v", g.InitStd)
	}
	return positiveInts("validate", "hidden sizes", g.HiddenSizes)
}
