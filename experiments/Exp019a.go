package experiments

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
)

// gymIDs maps the environment names of exp-019a to Gym environments
var gymIDs = map[string]string{
	"swimmer":     "Swimmer-v2",
	"hopper":      "Hopper-v2",
	"halfcheetah": "HalfCheetah-v2",
	"walker":      "Walker2d-v2",
	"ant":         "Ant-v2",
	"human":       "Humanoid-v2",
	"cartpole":    "CartPole-v1",
}

// Exp019aCommand launches the TRPO study of conjugate gradient
// iterations and sample sizes on MuJoCo tasks
func Exp019aCommand() *cobra.Command {
	return launcherCommand("exp-019a",
		"TRPO conjugate gradient iterations and sample size study",
		placement{instanceType: "c4.large", subnet: "us-west-1c",
			priceMultiplier: 1},
		Exp019aJobs)
}

// Exp019aVariants returns the variants of exp-019a. Batch sizes and
// subsample factors vary together.
func Exp019aVariants() *variant.Generator {
	subsample := map[int]float64{20000: 1.0, 40000: 0.5, 80000: 0.25}
	return variant.New().
		Add("batch_size", 20000, 40000, 80000).
		AddFunc("subsample_factor", func(v variant.Variant) []interface{} {
			return []interface{}{subsample[v.Int("batch_size")]}
		}).
		Add("env_name", "ant", "human").
		Add("cg_iters", 10, 100, 500).
		Add("seed", 1, 101, 201, 301, 401)
}

// Exp019aJobs returns the jobs of exp-019a. Local jobs snapshot every
// iteration and plot, EC2 jobs keep the last snapshot and terminate
// their instance when done.
func Exp019aJobs(mode string, now time.Time, s launch.Settings) ([]launch.Job,
	error) {
	const (
		prefix        = "exp_019a"
		maxPathLength = 500
		nItr          = 2000
		discount      = 0.99
		stepSize      = 0.01
	)

	m, err := launch.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("exp019aJobs: %w", err)
	}
	local := m == launch.Local || m == launch.LocalDocker
	if !local && m != launch.EC2 {
		return nil, fmt.Errorf("exp019aJobs: %w: mode %v",
			environment.ErrNotImplemented, m)
	}
	localParallel := 4
	if launch.IsTest(mode) {
		localParallel = 1
	}
	nParallel, err := s.NParallel(m, localParallel)
	if err != nil {
		return nil, fmt.Errorf("exp019aJobs: %w", err)
	}
	stamp := launch.TimeStamp(now)

	variants := Exp019aVariants().Variants()
	jobs := make([]launch.Job, 0, len(variants))
	for _, v := range variants {
		envName := v.String("env_name")
		id, ok := gymIDs[envName]
		if !ok {
			return nil, fmt.Errorf("exp019aJobs: %w: environment %q",
				environment.ErrNotImplemented, envName)
		}
		batchSize := v.Int("batch_size")
		if batchSize%1000 != 0 {
			return nil, fmt.Errorf("exp019aJobs: batch size %v is not a "+
				"multiple of 1000", batchSize)
		}

		opt := algo.NewConjugateGradient()
		opt.CGIters = v.Int("cg_iters")
		opt.SubsampleFactor = v.Float("subsample_factor")
		opt.ForetrackRatio = 1 / 0.95
		opt.MaxForetracks = 100
		opt.BacktrackRatio = 0.95
		opt.MaxBacktracks = 100

		a := algo.TRPO{
			Batch: algo.Batch{
				Env:           envconfig.NewGym(id, discount, 0, false),
				Policy:        algo.NewTyped(algo.GaussianMLP{HiddenSizes: []int{32, 32}, InitStd: 1}),
				Baseline:      algo.NewTyped(algo.LinearFeature{}),
				BatchSize:     batchSize,
				MaxPathLength: maxPathLength,
				NItr:          nItr,
				Discount:      discount,
				Plot:          local,
				StorePaths:    true,
			},
			StepSize:  stepSize,
			Optimizer: algo.NewTypedPtr(opt),
		}

		job := launch.Job{
			ExpPrefix: prefix,
			ExpName: fmt.Sprintf("alex_%v_%v_cgi%v_sf%v_bs%vk_s%v", stamp,
				envName, v.Int("cg_iters"), v.Float("subsample_factor"),
				batchSize/1000, v.Int("seed")),
			Seed:         v.Int("seed"),
			NParallel:    nParallel,
			SnapshotMode: checkpointer.All,
			Variant:      v,
			Algo:         algo.NewTyped(a),
			Plot:         local,
		}
		if m == launch.EC2 {
			job.SnapshotMode = checkpointer.Last
			job.TerminateMachine = true
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
