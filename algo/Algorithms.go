package algo

import (
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
)

const (
	TRPOType                Type = "TRPO"
	VPGType                 Type = "VPG"
	BonusTRPOType           Type = "BonusTRPO"
	ParallelTRPOType        Type = "ParallelTRPO"
	ParallelTRPOPlusLSHType Type = "ParallelTRPOPlusLSH"
)

func init() {
	Register(TRPOType, TRPO{})
	Register(VPGType, VPG{})
	Register(BonusTRPOType, BonusTRPO{})
	Register(ParallelTRPOType, ParallelTRPO{})
	Register(ParallelTRPOPlusLSHType, ParallelTRPOPlusLSH{})
}

// Algorithm is a Node describing a training algorithm
type Algorithm interface {
	Node
	BatchConfig() Batch
}

// Batch holds the settings common to batch policy optimisation
// algorithms
type Batch struct {
	Env           envconfig.Config `json:"env"`
	Policy        Typed            `json:"policy"`
	Baseline      Typed            `json:"baseline"`
	BatchSize     int              `json:"batch_size"`
	MaxPathLength int              `json:"max_path_length"`
	NItr          int              `json:"n_itr"`
	Discount      float64          `json:"discount"`
	Plot          bool             `json:"plot"`
	StorePaths    bool             `json:"store_paths"`
}

// BatchConfig implements the Algorithm interface
func (b Batch) BatchConfig() Batch {
	return b
}

func (b Batch) validate() error {
	if b.Env.Environment == envconfig.Atari {
		if err := b.Env.Atari.Validate(); err != nil {
			return err
		}
	}
	if err := b.Policy.Validate(); err != nil {
		return err
	}
	if err := b.Baseline.Validate(); err != nil {
		return err
	}
	if b.BatchSize < 1 || b.MaxPathLength < 1 || b.NItr < 1 {
		return invalid("validate", "batch size, path length and "+
			"iterations must be positive")
	}
	if b.Discount <= 0 || b.Discount > 1 {
		return invalid("validate", "discount must be in (0, 1], got %v",
			b.Discount)
	}
	return nil
}

// TRPO is trust region policy optimisation. A nil Optimizer uses the
// default conjugate gradient optimizer.
type TRPO struct {
	Batch
	StepSize  float64 `json:"step_size"`
	Optimizer *Typed  `json:"optimizer,omitempty"`
}

func (TRPO) Type() Type { return TRPOType }

func (t TRPO) Validate() error {
	if err := t.Batch.validate(); err != nil {
		return err
	}
	if t.StepSize <= 0 {
		return invalid("validate", "step size must be positive, got %v",
			t.StepSize)
	}
	if t.Optimizer != nil {
		return t.Optimizer.Validate()
	}
	return nil
}

// VPG is vanilla policy gradient
type VPG struct {
	Batch
	LearningRate float64 `json:"learning_rate"`
}

func (VPG) Type() Type { return VPGType }

func (v VPG) Validate() error {
	if err := v.Batch.validate(); err != nil {
		return err
	}
	if v.LearningRate <= 0 {
		return invalid("validate", "learning rate must be positive, got %v",
			v.LearningRate)
	}
	return nil
}

// Bonus holds the exploration bonus settings shared by the bonus
// algorithms
type Bonus struct {
	BonusEvaluator *Typed  `json:"bonus_evaluator"`
	BonusCoeff     float64 `json:"bonus_coeff"`
	ClipReward     bool    `json:"clip_reward"`
}

func (b Bonus) validate() error {
	if b.BonusCoeff < 0 {
		return invalid("validate", "bonus coefficient cannot be negative")
	}
	if b.BonusEvaluator == nil {
		if b.BonusCoeff != 0 {
			return invalid("validate", "bonus coefficient %v without a "+
				"bonus evaluator", b.BonusCoeff)
		}
		return nil
	}
	return b.BonusEvaluator.Validate()
}

// BonusTRPO is TRPO on rewards augmented by an exploration bonus. The
// extra evaluator is fit and logged but does not affect the rewards.
type BonusTRPO struct {
	TRPO
	Bonus
	ExtraBonusEvaluator *Typed `json:"extra_bonus_evaluator,omitempty"`
	ForceBatchSampler   bool   `json:"force_batch_sampler"`
}

func (BonusTRPO) Type() Type { return BonusTRPOType }

func (b BonusTRPO) Validate() error {
	if err := b.TRPO.Validate(); err != nil {
		return err
	}
	if b.BonusEvaluator == nil {
		return invalid("validate", "missing bonus evaluator")
	}
	if err := b.Bonus.validate(); err != nil {
		return err
	}
	if b.ExtraBonusEvaluator != nil {
		return b.ExtraBonusEvaluator.Validate()
	}
	return nil
}

// ParallelTRPO is TRPO with sampling and optimisation shared by
// NParallel workers
type ParallelTRPO struct {
	TRPO
	Bonus
	NParallel      int  `json:"n_parallel"`
	SetCPUAffinity bool `json:"set_cpu_affinity"`
	SerialCompile  bool `json:"serial_compile"`
}

func (ParallelTRPO) Type() Type { return ParallelTRPOType }

func (p ParallelTRPO) Validate() error {
	if err := p.TRPO.Validate(); err != nil {
		return err
	}
	if err := p.Bonus.validate(); err != nil {
		return err
	}
	if p.NParallel < 1 {
		return invalid("validate", "number of workers must be positive, "+
			"got %v", p.NParallel)
	}
	return nil
}

// ModelPool configures the replay pool the hashing autoencoder is
// trained from
type ModelPool struct {
	Size                  int     `json:"size"`
	MinSize               int     `json:"min_size"`
	BatchSize             int     `json:"batch_size"`
	SubsampleFactor       float64 `json:"subsample_factor"`
	FillBeforeSubsampling bool    `json:"fill_before_subsampling"`
}

// ParallelTRPOPlusLSH is ParallelTRPO with counts over the binary codes
// of a learned autoencoder
type ParallelTRPOPlusLSH struct {
	ParallelTRPO
	Eta                 float64                `json:"eta"`
	NSeqFrames          int                    `json:"n_seq_frames"`
	TrainModel          bool                   `json:"train_model"`
	TrainModelFreq      int                    `json:"train_model_freq"`
	ContinuousEmbedding bool                   `json:"continuous_embedding"`
	ModelEmbedding      bool                   `json:"model_embedding"`
	ModelPool           ModelPool              `json:"model_pool_args"`
	SimHash             SimHash                `json:"sim_hash_args"`
	ModelArgs           map[string]interface{} `json:"model_args,omitempty"`
}

func (ParallelTRPOPlusLSH) Type() Type { return ParallelTRPOPlusLSHType }

func (p ParallelTRPOPlusLSH) Validate() error {
	if err := p.ParallelTRPO.Validate(); err != nil {
		return err
	}
	if p.Eta < 0 {
		return invalid("validate", "eta cannot be negative")
	}
	if p.NSeqFrames < 1 {
		return invalid("validate", "sequence frames must be positive")
	}
	if p.TrainModel && p.TrainModelFreq < 1 {
		return invalid("validate", "model training frequency must be "+
			"positive")
	}
	m := p.ModelPool
	if m.Size < m.MinSize || m.MinSize < m.BatchSize || m.BatchSize < 1 {
		return invalid("validate", "model pool sizes must satisfy size >= "+
			"min size >= batch size > 0")
	}
	return p.SimHash.Validate()
}
