package experiments

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/bonus"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
)

// Exp009fCommand launches bonus TRPO on Montezuma's Revenge with RAM
// observations and a hashing bonus counting images
func Exp009fCommand() *cobra.Command {
	return launcherCommand("exp-009f",
		"Bonus TRPO on Montezuma's Revenge, RAM observations, image counts",
		placement{instanceType: "c4.2xlarge", subnet: "us-west-1c",
			priceMultiplier: 1},
		Exp009fJobs)
}

// Exp009fVariants returns the variants of exp-009f
func Exp009fVariants() *variant.Generator {
	return variant.New().
		Add("seed", 1, 111, 211, 311, 411, 511, 611, 711, 811, 911).
		Add("env_seed", 1).
		Add("bonus_coeff", 0.01, 0.001).
		Add("game", "montezuma_revenge").
		Add("policy_type", "mlp").
		Add("batch_size", 1000).
		Add("dim_key", 256, 512)
}

// statePreprocessor returns the preprocessor of the states counted for
// target
func statePreprocessor(target bonus.CountTarget) (algo.Preprocessor, error) {
	switch target {
	case bonus.Images:
		return algo.ImageVectorize{ImageVectorize: bonus.ImageVectorize{
			NChannel: 4,
			Width:    84,
			Height:   84,
			Slices:   [3]*bonus.Slice{{Start: 3, Stop: 4, Step: 1}},
		}}, nil
	case bonus.RAMStates:
		return algo.ImageVectorize{ImageVectorize: bonus.ImageVectorize{
			NChannel: 1,
			Width:    128,
			Height:   1,
		}}, nil
	}
	return nil, fmt.Errorf("statePreprocessor: %w: count target %q",
		environment.ErrNotImplemented, target)
}

// Exp009fJobs returns the jobs of exp-009f
func Exp009fJobs(mode string, now time.Time, s launch.Settings) ([]launch.Job,
	error) {
	const (
		prefix        = "bonus-trpo-atari/exp-009f"
		obsType       = atari.RAM
		countTarget   = bonus.Images
		bonusForm     = bonus.InvSqrt
		maxPathLength = 4500
		discount      = 0.99
		nItr          = 200
		stepSize      = 0.01
		extraDimKey   = 1024
	)
	extraBucketSizes := []uint64{15485867, 15485917, 15485927, 15485933,
		15485941, 15485959}

	m, err := launch.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("exp009fJobs: %w", err)
	}
	if m == launch.Kube {
		return nil, fmt.Errorf("exp009fJobs: %w: mode %v",
			environment.ErrNotImplemented, m)
	}
	nParallel, err := s.NParallel(m, 4)
	if err != nil {
		return nil, fmt.Errorf("exp009fJobs: %w", err)
	}
	pre, err := statePreprocessor(countTarget)
	if err != nil {
		return nil, fmt.Errorf("exp009fJobs: %w", err)
	}
	stamp := launch.TimeStamp(now)

	variants := Exp009fVariants().Variants()
	jobs := make([]launch.Job, 0, len(variants))
	for i, v := range variants {
		c := atari.NewConfig(v.String("game"), obsType)
		c.Seed = uint64(v.Int("env_seed"))
		c.RecordRAM = true
		c.RecordImage = true
		c.AvoidLifeLost = true

		var policy algo.Node
		switch t := v.String("policy_type"); t {
		case "mlp":
			policy = algo.CategoricalMLP{Name: "policy",
				HiddenSizes: []int{32, 32}}
		case "random":
			policy = algo.CategoricalRandom{}
		default:
			return nil, fmt.Errorf("exp009fJobs: %w: policy type %q",
				environment.ErrNotImplemented, t)
		}

		evaluator := algo.NewALEHashing("", pre, v.Int("dim_key"), nil,
			bonusForm, countTarget)
		extra := algo.NewALEHashing("Extra", pre, extraDimKey,
			extraBucketSizes, bonusForm, countTarget)

		opt := algo.NewConjugateGradient()
		opt.HVP = &algo.FiniteDifferenceHVP{BaseEps: 1e-5}

		a := algo.BonusTRPO{
			TRPO: algo.TRPO{
				Batch: algo.Batch{
					Env:           envconfig.NewAtari(c, discount, 0, false),
					Policy:        algo.NewTyped(policy),
					Baseline:      algo.NewTyped(algo.LinearFeature{}),
					BatchSize:     v.Int("batch_size"),
					MaxPathLength: maxPathLength,
					NItr:          nItr,
					Discount:      discount,
					StorePaths:    true,
				},
				StepSize:  stepSize,
				Optimizer: algo.NewTypedPtr(opt),
			},
			Bonus: algo.Bonus{
				BonusEvaluator: algo.NewTypedPtr(evaluator),
				BonusCoeff:     v.Float("bonus_coeff"),
				ClipReward:     true,
			},
			ExtraBonusEvaluator: algo.NewTypedPtr(extra),
			ForceBatchSampler:   true,
		}

		jobs = append(jobs, launch.Job{
			ExpPrefix: prefix,
			ExpName: fmt.Sprintf("alex_%v_%v_%v_%v", stamp, v.String("game"),
				obsType, i),
			Seed:         v.Int("seed"),
			NParallel:    nParallel,
			SnapshotMode: checkpointer.All,
			Variant:      v,
			Algo:         algo.NewTyped(a),
			SyncS3PKL:    true,
		})
	}
	return jobs, nil
}
