package experiments

import (
	"fmt"
	"runtime"
	"time"

	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
)

// TestPong2Command launches the parallel TRPO baseline on Pong images
func TestPong2Command() *cobra.Command {
	return launcherCommand("test-pong2",
		"Parallel TRPO baseline on Pong images",
		placement{instanceType: "c4.8xlarge", subnet: "us-west-1b",
			priceMultiplier: 1.5},
		TestPong2Jobs)
}

// TestPong2Variants returns the variants of test-pong2
func TestPong2Variants() *variant.Generator {
	return variant.New().
		Add("seed", 0, 100, 200, 300, 400).
		Add("game", "pong")
}

// TestPong2Jobs returns the jobs of test-pong2. Local test modes use
// small batches.
func TestPong2Jobs(mode string, now time.Time, s launch.Settings) ([]launch.Job,
	error) {
	const (
		prefix        = "bonus-trpo-atari/test-pong2"
		maxPathLength = 4500
		discount      = 0.99
		nItr          = 500
		stepSize      = 0.01
	)

	m, err := launch.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("testPong2Jobs: %w", err)
	}
	nParallel, err := s.NParallel(m, 4)
	if err != nil {
		return nil, fmt.Errorf("testPong2Jobs: %w", err)
	}
	batchSize := 100000
	if mode == "local_test" || mode == "local_docker_test" {
		batchSize = 500
	}
	// Pinning workers and compiling serially is unsupported on macOS
	local := m == launch.Local || m == launch.LocalDocker
	pinned := !(local && runtime.GOOS == "darwin")
	stamp := launch.TimeStamp(now)

	opt := algo.NewConjugateGradient()
	opt.Name = "pi_opt"
	opt.RegCoeff = 1e-3
	opt.SubsampleFactor = 0.1
	opt.Parallel = true

	variants := TestPong2Variants().Variants()
	jobs := make([]launch.Job, 0, len(variants))
	for i, v := range variants {
		c := atari.NewConfig(v.String("game"), atari.Image)
		c.Seed = 1
		c.ImgWidth = 42
		c.ImgHeight = 42
		c.NLastScreens = 4
		c.MaxStartNullops = 30
		c.CorrectLuminance = true

		a := algo.ParallelTRPO{
			TRPO: algo.TRPO{
				Batch: algo.Batch{
					Env:           envconfig.NewAtari(c, discount, 0, false),
					Policy:        algo.NewTyped(algo.CategoricalConv{Name: "policy", ConvNetwork: algo.NIPSDQN()}),
					Baseline:      algo.NewTyped(algo.NewParallelGaussianConv(algo.NIPSDQN(), batchSize*10)),
					BatchSize:     batchSize,
					MaxPathLength: maxPathLength,
					NItr:          nItr,
					Discount:      discount,
				},
				StepSize:  stepSize,
				Optimizer: algo.NewTypedPtr(opt),
			},
			Bonus:          algo.Bonus{ClipReward: true},
			NParallel:      nParallel,
			SetCPUAffinity: pinned,
			SerialCompile:  pinned,
		}

		jobs = append(jobs, launch.Job{
			ExpPrefix: prefix,
			ExpName: fmt.Sprintf("test-pong2_%v_%v_%v", stamp,
				v.String("game"), i),
			Seed:                 v.Int("seed"),
			NParallel:            nParallel,
			SnapshotMode:         checkpointer.Gap,
			SnapshotGap:          50,
			Variant:              v,
			Algo:                 algo.NewTyped(a),
			SyncS3PKL:            true,
			SyncS3Log:            true,
			SyncLogOnTermination: true,
			SyncAllDataToS3:      true,
		})
	}
	return jobs, nil
}
