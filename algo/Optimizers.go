package algo

const (
	ConjugateGradientType Type = "ConjugateGradient"
	PenaltyLBFGSType      Type = "PenaltyLBFGS"
)

func init() {
	Register(ConjugateGradientType, ConjugateGradient{})
	Register(PenaltyLBFGSType, PenaltyLBFGS{})
}

// FiniteDifferenceHVP approximates Hessian-vector products by finite
// differences of gradients
type FiniteDifferenceHVP struct {
	BaseEps float64 `json:"base_eps"`
}

// ConjugateGradient solves for the natural gradient step with conjugate
// gradient and then backtracks along it until the constraint holds
type ConjugateGradient struct {
	Name            string  `json:"name,omitempty"`
	CGIters         int     `json:"cg_iters"`
	RegCoeff        float64 `json:"reg_coeff"`
	SubsampleFactor float64 `json:"subsample_factor"`
	BacktrackRatio  float64 `json:"backtrack_ratio"`
	MaxBacktracks   int     `json:"max_backtracks"`
	ForetrackRatio  float64 `json:"foretrack_ratio,omitempty"`
	MaxForetracks   int     `json:"max_foretracks,omitempty"`
	AcceptViolation bool    `json:"accept_violation"`
	NumSlices       int     `json:"num_slices"`

	// Parallel shares the optimisation across parallel workers
	Parallel bool `json:"parallel"`

	// HVP approximates Hessian-vector products by finite differences
	// if set, otherwise they are computed exactly
	HVP *FiniteDifferenceHVP `json:"hvp_approach,omitempty"`
}

// NewConjugateGradient returns a ConjugateGradient optimizer with the
// default settings
func NewConjugateGradient() ConjugateGradient {
	return ConjugateGradient{
		CGIters:         10,
		RegCoeff:        1e-5,
		SubsampleFactor: 1.0,
		BacktrackRatio:  0.8,
		MaxBacktracks:   15,
		NumSlices:       1,
	}
}

func (ConjugateGradient) Type() Type { return ConjugateGradientType }

func (c ConjugateGradient) Validate() error {
	if c.CGIters < 1 {
		return invalid("validate", "cg iterations must be positive, got %v",
			c.CGIters)
	}
	if c.RegCoeff < 0 {
		return invalid("validate", "regularisation cannot be negative")
	}
	if c.SubsampleFactor <= 0 || c.SubsampleFactor > 1 {
		return invalid("validate", "subsample factor must be in (0, 1], "+
			"got %v", c.SubsampleFactor)
	}
	if c.BacktrackRatio <= 0 || c.BacktrackRatio >= 1 {
		return invalid("validate", "backtrack ratio must be in (0, 1), "+
			"got %v", c.BacktrackRatio)
	}
	if c.MaxBacktracks < 0 || c.MaxForetracks < 0 {
		return invalid("validate", "number of line search steps cannot "+
			"be negative")
	}
	if c.MaxForetracks > 0 && c.ForetrackRatio <= 1 {
		return invalid("validate", "foretrack ratio must exceed 1, got %v",
			c.ForetrackRatio)
	}
	if c.NumSlices < 1 {
		return invalid("validate", "number of slices must be positive")
	}
	if c.HVP != nil && c.HVP.BaseEps <= 0 {
		return invalid("validate", "finite difference epsilon must be "+
			"positive, got %v", c.HVP.BaseEps)
	}
	return nil
}

// PenaltyLBFGS minimises the loss plus a penalty on the constraint with
// L-BFGS, adapting the penalty coefficient between runs
type PenaltyLBFGS struct {
	MaxOptItr             int     `json:"max_opt_itr"`
	InitialPenalty        float64 `json:"initial_penalty"`
	MinPenalty            float64 `json:"min_penalty"`
	MaxPenalty            float64 `json:"max_penalty"`
	IncreasePenaltyFactor float64 `json:"increase_penalty_factor"`
	DecreasePenaltyFactor float64 `json:"decrease_penalty_factor"`
	MaxPenaltyItr         int     `json:"max_penalty_itr"`
	AdaptPenalty          bool    `json:"adapt_penalty"`
}

// NewPenaltyLBFGS returns a PenaltyLBFGS optimizer with the default
// settings
func NewPenaltyLBFGS() PenaltyLBFGS {
	return PenaltyLBFGS{
		MaxOptItr:             20,
		InitialPenalty:        1.0,
		MinPenalty:            1e-2,
		MaxPenalty:            1e6,
		IncreasePenaltyFactor: 2,
		DecreasePenaltyFactor: 0.5,
		MaxPenaltyItr:         10,
		AdaptPenalty:          true,
	}
}

func (PenaltyLBFGS) Type() Type { return PenaltyLBFGSType }

func (p PenaltyLBFGS) Validate() error {
	if p.MaxOptItr < 1 || p.MaxPenaltyItr < 1 {
		return invalid("validate", "iterations must be positive")
	}
	if p.MinPenalty <= 0 || p.MinPenalty > p.MaxPenalty {
		return invalid("validate", "penalty bounds [%v, %v] are invalid",
			p.MinPenalty, p.MaxPenalty)
	}
	if p.InitialPenalty < p.MinPenalty || p.InitialPenalty > p.MaxPenalty {
		return invalid("validate", "initial penalty %v outside [%v, %v]",
			p.InitialPenalty, p.MinPenalty, p.MaxPenalty)
	}
	if p.IncreasePenaltyFactor <= 1 || p.DecreasePenaltyFactor <= 0 ||
		p.DecreasePenaltyFactor >= 1 {
		return invalid("validate", "penalty factors must increase and "+
			"decrease the penalty")
	}
	return nil
}
