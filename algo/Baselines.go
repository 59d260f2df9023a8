package algo

const (
	LinearFeatureType         Type = "LinearFeature"
	ZeroBaselineType          Type = "ZeroBaseline"
	ParallelLinearFeatureType Type = "ParallelLinearFeature"
	ParallelGaussianConvType  Type = "ParallelGaussianConv"
)

func init() {
	Register(LinearFeatureType, LinearFeature{})
	Register(ZeroBaselineType, ZeroBaseline{})
	Register(ParallelLinearFeatureType, ParallelLinearFeature{})
	Register(ParallelGaussianConvType, ParallelGaussianConv{})
}

// LinearFeature fits state values by least squares on polynomial
// features of the observation and time step
type LinearFeature struct {
	RegCoeff float64 `json:"reg_coeff"`
}

func (LinearFeature) Type() Type { return LinearFeatureType }

func (l LinearFeature) Validate() error {
	if l.RegCoeff < 0 {
		return invalid("validate", "regularisation cannot be negative")
	}
	return nil
}

// ZeroBaseline predicts zero for every state
type ZeroBaseline struct{}

func (ZeroBaseline) Type() Type      { return ZeroBaselineType }
func (ZeroBaseline) Validate() error { return nil }

// ParallelLinearFeature is a LinearFeature baseline fit across parallel
// workers
type ParallelLinearFeature struct {
	LinearFeature
}

func (ParallelLinearFeature) Type() Type { return ParallelLinearFeatureType }

// Regressor configures the Gaussian convolutional regressor of a
// ParallelGaussianConv baseline
type Regressor struct {
	Optimizer        Typed   `json:"optimizer"`
	UseTrustRegion   bool    `json:"use_trust_region"`
	StepSize         float64 `json:"step_size"`
	BatchSize        int     `json:"batchsize"`
	NormalizeInputs  bool    `json:"normalize_inputs"`
	NormalizeOutputs bool    `json:"normalize_outputs"`
	ConvNetwork
}

// ParallelGaussianConv fits state values with a Gaussian convolutional
// regressor across parallel workers
type ParallelGaussianConv struct {
	Regressor Regressor `json:"regressor_args"`
}

// NewParallelGaussianConv returns a ParallelGaussianConv baseline
// regressing with network, trained with a parallel conjugate gradient
// optimizer on batchSize samples
func NewParallelGaussianConv(network ConvNetwork,
	batchSize int) ParallelGaussianConv {
	opt := NewConjugateGradient()
	opt.Name = "vf_opt"
	opt.SubsampleFactor = 0.1
	opt.Parallel = true

	// The value function is linear in its last layer
	network.OutputNonlinearity = ""

	return ParallelGaussianConv{
		Regressor: Regressor{
			Optimizer:        NewTyped(opt),
			UseTrustRegion:   true,
			StepSize:         0.01,
			BatchSize:        batchSize,
			NormalizeInputs:  true,
			NormalizeOutputs: true,
			ConvNetwork:      network,
		},
	}
}

func (ParallelGaussianConv) Type() Type { return ParallelGaussianConvType }

func (p ParallelGaussianConv) Validate() error {
	r := p.Regressor
	if err := r.Optimizer.Validate(); err != nil {
		return err
	}
	if r.UseTrustRegion && r.StepSize <= 0 {
		return invalid("validate", "step size must be positive, got %v",
			r.StepSize)
	}
	if r.BatchSize < 1 {
		return invalid("validate", "batch size must be positive, got %v",
			r.BatchSize)
	}
	return r.ConvNetwork.Validate()
}
