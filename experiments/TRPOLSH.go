package experiments

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
)

// lshScript is the training entry script of the autoencoder hashing
// algorithm
const lshScript string = "sandbox/rein/algos/embedding_theano_par/run_experiment_lite.py"

// TRPOLSHCommand launches parallel TRPO with a learned autoencoder hash
// on Venture
func TRPOLSHCommand() *cobra.Command {
	return launcherCommand("trpo-lsh-ram",
		"Parallel TRPO with autoencoder hashing on Venture",
		placement{},
		TRPOLSHJobs)
}

// TRPOLSHVariants returns the variants of trpo-lsh-ram
func TRPOLSHVariants() *variant.Generator {
	return variant.New().
		Add("game", "venture").
		Add("eta", 0.001).
		Add("seed", 0, 1, 2)
}

// conv returns a model layer description of a convolution
func conv(name string, pad int, nonlinearity string) map[string]interface{} {
	return map[string]interface{}{
		"name":         name,
		"n_filters":    64,
		"filter_size":  []int{6, 6},
		"stride":       []int{2, 2},
		"pad":          []int{pad, pad},
		"batch_norm":   true,
		"nonlinearity": nonlinearity,
	}
}

// dense returns a model layer description of a fully connected layer
func dense(name string, units int) map[string]interface{} {
	layer := map[string]interface{}{
		"name":       name,
		"n_units":    units,
		"batch_norm": true,
	}
	if name == "gaussian" {
		layer["nonlinearity"] = "rectify"
	}
	return layer
}

// lshModelArgs returns the arguments of the autoencoder whose binary
// embedding is hashed
func lshModelArgs(width, height, batchSize int) map[string]interface{} {
	return map[string]interface{}{
		"state_dim":  []int{1, height, width},
		"reward_dim": []int{1},
		"layers_disc": []interface{}{
			conv("convolution", 0, "rectify"),
			conv("convolution", 1, "rectify"),
			conv("convolution", 2, "rectify"),
			map[string]interface{}{"name": "reshape", "shape": []interface{}{[]int{0}, -1}},
			dense("gaussian", 1024),
			dense("discrete_embedding", 448),
			dense("gaussian", 1024),
			dense("gaussian", 1600),
			map[string]interface{}{"name": "reshape", "shape": []interface{}{[]int{0}, 64, 5, 5}},
			conv("deconvolution", 2, "rectify"),
			conv("deconvolution", 0, "rectify"),
			conv("deconvolution", 0, "linear"),
		},
		"batch_size":            batchSize,
		"learning_rate":         0.0003,
		"prior_sd":              0.05,
		"output_type":           "classfication",
		"num_classes":           64,
		"likelihood_sd_init":    0.1,
		"ind_softmax":           true,
		"num_seq_inputs":        1,
		"label_smoothing":       0.003,
		"disable_act_rew_paths": true,
		"binary_penalty":        0.1,
	}
}

// TRPOLSHJobs returns the jobs of trpo-lsh-ram
func TRPOLSHJobs(mode string, now time.Time, s launch.Settings) ([]launch.Job,
	error) {
	const (
		prefix         = "trpo-i-auto-pro-a"
		nSeqFrames     = 4
		modelBatchSize = 32
		batchSize      = 100000
		maxPathLength  = 4500
		discount       = 0.995
		nItr           = 1000
		stepSize       = 0.01
		imgSize        = 52
	)

	m, err := launch.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("trpoLSHJobs: %w", err)
	}
	nParallel, err := s.NParallel(m, 20)
	if err != nil {
		return nil, fmt.Errorf("trpoLSHJobs: %w", err)
	}
	stamp := launch.TimeStamp(now)

	opt := algo.NewConjugateGradient()
	opt.RegCoeff = 1e-3
	opt.SubsampleFactor = 0.1
	opt.Parallel = true

	network := algo.NIPSDQN()
	policy := algo.CategoricalMLP{NumSeqInputs: nSeqFrames,
		ProbNetwork: &network}

	variants := TRPOLSHVariants().Variants()
	jobs := make([]launch.Job, 0, len(variants))
	for i, v := range variants {
		c := atari.NewConfig(v.String("game"), atari.Image)
		c.ImgWidth = imgSize
		c.ImgHeight = imgSize

		a := algo.ParallelTRPOPlusLSH{
			ParallelTRPO: algo.ParallelTRPO{
				TRPO: algo.TRPO{
					Batch: algo.Batch{
						Env:           envconfig.NewAtari(c, discount, 0, false),
						Policy:        algo.NewTyped(policy),
						Baseline:      algo.NewTyped(algo.NewParallelGaussianConv(algo.NIPSDQN(), batchSize*10)),
						BatchSize:     batchSize,
						MaxPathLength: maxPathLength,
						NItr:          nItr,
						Discount:      discount,
					},
					StepSize:  stepSize,
					Optimizer: algo.NewTypedPtr(opt),
				},
				Bonus:     algo.Bonus{ClipReward: true},
				NParallel: nParallel,
			},
			Eta:            v.Float("eta"),
			NSeqFrames:     nSeqFrames,
			TrainModel:     true,
			TrainModelFreq: 3,
			ModelEmbedding: true,
			ModelPool: algo.ModelPool{
				Size:            5000000,
				MinSize:         modelBatchSize,
				BatchSize:       modelBatchSize,
				SubsampleFactor: 1,
			},
			SimHash: algo.SimHash{
				DimKey:                  32,
				DisableRandomProjection: true,
			},
			ModelArgs: lshModelArgs(imgSize, imgSize, modelBatchSize),
		}

		jobs = append(jobs, launch.Job{
			ExpPrefix:            prefix,
			ExpName:              fmt.Sprintf("%v_%v_%04d", prefix, stamp, i),
			Seed:                 v.Int("seed"),
			NParallel:            nParallel,
			SnapshotMode:         checkpointer.Last,
			Variant:              v,
			Algo:                 algo.NewTyped(a),
			SyncAllDataToS3:      true,
			PeriodicSyncInterval: time.Hour,
			Script:               lshScript,
		})
	}
	return jobs, nil
}
