package experiments

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/bonus"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// atariRAMSize is the number of bytes of Atari 2600 RAM
const atariRAMSize int = 128

// FromFileCommand launches the experiments defined in an HCL file
func FromFileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "from-file FILE",
		Short: "Launch the experiments defined in an HCL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ParseLaunchFile(args[0])
			if err != nil {
				return err
			}
			return runLauncher(cmd, f.placement(), f.Jobs)
		},
	}
}

// LaunchFile is a set of experiments decoded from HCL. Each experiment
// block expands into one job per combination of its variant values, in
// the order the variant blocks are declared.
type LaunchFile struct {
	Experiments []*FileExperiment `hcl:"experiment,block"`
}

// FileExperiment is an experiment block of a LaunchFile
type FileExperiment struct {
	Name          string  `hcl:"name,label"`
	Prefix        string  `hcl:"prefix,optional"`
	Algorithm     string  `hcl:"algorithm,optional"`
	Policy        string  `hcl:"policy,optional"`
	HiddenSizes   []int   `hcl:"hidden_sizes,optional"`
	NParallel     int     `hcl:"n_parallel,optional"`
	SnapshotMode  string  `hcl:"snapshot_mode,optional"`
	SnapshotGap   int     `hcl:"snapshot_gap,optional"`
	BatchSize     int     `hcl:"batch_size,optional"`
	MaxPathLength int     `hcl:"max_path_length,optional"`
	NItr          int     `hcl:"n_itr,optional"`
	Discount      float64 `hcl:"discount,optional"`
	StepSize      float64 `hcl:"step_size,optional"`
	Seed          int     `hcl:"seed,optional"`
	SyncS3PKL     bool    `hcl:"sync_s3_pkl,optional"`
	SyncS3Log     bool    `hcl:"sync_s3_log,optional"`

	Env       *FileEnv       `hcl:"env,block"`
	Bonus     *FileBonus     `hcl:"bonus,block"`
	Placement *FilePlacement `hcl:"placement,block"`
	Variants  []*FileVariant `hcl:"variant,block"`
}

// FileEnv configures the environment of an experiment, an Atari game
// unless GymID is set
type FileEnv struct {
	Game             string `hcl:"game,optional"`
	GymID            string `hcl:"gym_id,optional"`
	ObsType          string `hcl:"obs_type,optional"`
	Seed             int    `hcl:"seed,optional"`
	FrameSkip        int    `hcl:"frame_skip,optional"`
	ImgWidth         int    `hcl:"img_width,optional"`
	ImgHeight        int    `hcl:"img_height,optional"`
	NLastScreens     int    `hcl:"n_last_screens,optional"`
	NLastRAMs        int    `hcl:"n_last_rams,optional"`
	MaxStartNullops  int    `hcl:"max_start_nullops,optional"`
	AvoidLifeLost    bool   `hcl:"avoid_life_lost,optional"`
	CorrectLuminance bool   `hcl:"correct_luminance,optional"`
	RecordRAM        bool   `hcl:"record_ram,optional"`
	RecordImage      bool   `hcl:"record_image,optional"`
	EpisodeCutoff    int    `hcl:"episode_cutoff,optional"`
	ClipReward       bool   `hcl:"clip_reward,optional"`
}

// FileBonus configures a hashing exploration bonus
type FileBonus struct {
	CountTarget string   `hcl:"count_target,optional"`
	BonusForm   string   `hcl:"bonus_form,optional"`
	DimKey      int      `hcl:"dim_key,optional"`
	BucketSizes []uint64 `hcl:"bucket_sizes,optional"`
	BonusCoeff  float64  `hcl:"bonus_coeff,optional"`
	ClipReward  bool     `hcl:"clip_reward,optional"`
}

// FilePlacement configures where experiments run on EC2
type FilePlacement struct {
	Instance        string  `hcl:"instance,optional"`
	Subnet          string  `hcl:"subnet,optional"`
	PriceMultiplier float64 `hcl:"price_multiplier,optional"`
}

// FileVariant is a variant axis. Values of the keys seed, game,
// env_seed, batch_size, n_itr, step_size, bonus_coeff and dim_key
// override the experiment's settings, other keys are only recorded.
type FileVariant struct {
	Key    string    `hcl:"key,label"`
	Values cty.Value `hcl:"values"`
	Hidden bool      `hcl:"hidden,optional"`
}

// ParseLaunchFile decodes the LaunchFile at filename
func ParseLaunchFile(filename string) (*LaunchFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parseLaunchFile: failed to parse %v: %w",
			filename, diags)
	}

	f := &LaunchFile{}
	diags = gohcl.DecodeBody(file.Body, nil, f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parseLaunchFile: failed to decode %v: %w",
			filename, diags)
	}
	if len(f.Experiments) == 0 {
		return nil, fmt.Errorf("parseLaunchFile: no experiments in %v",
			filename)
	}
	return f, nil
}

// placement returns the placement of the first experiment with one
func (f *LaunchFile) placement() placement {
	for _, e := range f.Experiments {
		if p := e.Placement; p != nil {
			return placement{instanceType: p.Instance, subnet: p.Subnet,
				priceMultiplier: p.PriceMultiplier}
		}
	}
	return placement{}
}

// Jobs returns the jobs of every experiment in the file
func (f *LaunchFile) Jobs(mode string, now time.Time,
	s launch.Settings) ([]launch.Job, error) {
	m, err := launch.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}

	var jobs []launch.Job
	for _, e := range f.Experiments {
		g, err := e.generator()
		if err != nil {
			return nil, fmt.Errorf("jobs: %v: %w", e.Name, err)
		}
		nParallel, err := s.NParallel(m, max(e.NParallel, 1))
		if err != nil {
			return nil, fmt.Errorf("jobs: %v: %w", e.Name, err)
		}

		for i, v := range g.Variants() {
			job, err := e.job(v, m)
			if err != nil {
				return nil, fmt.Errorf("jobs: %v: %w", e.Name, err)
			}
			job.ExpName = fmt.Sprintf("%v_%v_%v", e.Name,
				launch.TimeStamp(now), i)
			job.NParallel = nParallel
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// generator returns the variant generator of the experiment's variant
// blocks
func (e *FileExperiment) generator() (*variant.Generator, error) {
	g := variant.New()
	seen := make(map[string]bool)
	for _, fv := range e.Variants {
		if seen[fv.Key] || fv.Key == variant.HiddenKeys {
			return nil, fmt.Errorf("generator: variant %q declared twice "+
				"or reserved", fv.Key)
		}
		seen[fv.Key] = true

		values, err := ctyValues(fv.Values)
		if err != nil {
			return nil, fmt.Errorf("generator: variant %q: %w", fv.Key, err)
		}
		if fv.Hidden {
			g.AddHidden(fv.Key, values...)
		} else {
			g.Add(fv.Key, values...)
		}
	}
	return g, nil
}

// ctyValues converts a list or tuple of numbers, strings and bools.
// Integral numbers become ints.
func ctyValues(list cty.Value) ([]interface{}, error) {
	if list.IsNull() || !list.IsKnown() {
		return nil, fmt.Errorf("ctyValues: values must be known")
	}
	if !list.Type().IsListType() && !list.Type().IsTupleType() {
		return nil, fmt.Errorf("ctyValues: values must be a list, got %v",
			list.Type().FriendlyName())
	}

	var values []interface{}
	for _, el := range list.AsValueSlice() {
		switch el.Type() {
		case cty.Number:
			var f float64
			if err := gocty.FromCtyValue(el, &f); err != nil {
				return nil, fmt.Errorf("ctyValues: %w", err)
			}
			if f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
				values = append(values, int(f))
			} else {
				values = append(values, f)
			}
		case cty.String:
			values = append(values, el.AsString())
		case cty.Bool:
			values = append(values, el.True())
		default:
			return nil, fmt.Errorf("ctyValues: unsupported value type %v",
				el.Type().FriendlyName())
		}
	}
	return values, nil
}

// overridden returns a copy of the experiment with the settings named
// by the variant's keys replaced by its values
func (e *FileExperiment) overridden(v variant.Variant) FileExperiment {
	o := *e
	env := FileEnv{}
	if e.Env != nil {
		env = *e.Env
	}
	var b *FileBonus
	if e.Bonus != nil {
		copied := *e.Bonus
		b = &copied
	}

	for key := range v {
		switch key {
		case "seed":
			o.Seed = v.Int(key)
		case "batch_size":
			o.BatchSize = v.Int(key)
		case "n_itr":
			o.NItr = v.Int(key)
		case "step_size":
			o.StepSize = v.Float(key)
		case "game":
			env.Game = v.String(key)
		case "env_seed":
			env.Seed = v.Int(key)
		case "bonus_coeff":
			if b != nil {
				b.BonusCoeff = v.Float(key)
			}
		case "dim_key":
			if b != nil {
				b.DimKey = v.Int(key)
			}
		}
	}
	o.Env = &env
	o.Bonus = b
	return o
}

// job returns the job of the experiment for variant v
func (e *FileExperiment) job(v variant.Variant, m launch.Mode) (launch.Job,
	error) {
	o := e.overridden(v)
	o.defaults()

	env, err := o.envConfig()
	if err != nil {
		return launch.Job{}, err
	}
	a, err := o.algorithm(env)
	if err != nil {
		return launch.Job{}, err
	}

	return launch.Job{
		ExpPrefix:    o.Prefix,
		Seed:         o.Seed,
		SnapshotMode: checkpointer.Mode(o.SnapshotMode),
		SnapshotGap:  o.SnapshotGap,
		Variant:      v,
		Algo:         algo.NewTyped(a),
		SyncS3PKL:    o.SyncS3PKL,
		SyncS3Log:    o.SyncS3Log,
	}, nil
}

// defaults fills unset settings
func (e *FileExperiment) defaults() {
	if e.Prefix == "" {
		e.Prefix = e.Name
	}
	if e.Algorithm == "" {
		e.Algorithm = string(algo.TRPOType)
	}
	if e.Policy == "" {
		e.Policy = "mlp"
	}
	if len(e.HiddenSizes) == 0 {
		e.HiddenSizes = []int{32, 32}
	}
	if e.SnapshotMode == "" {
		e.SnapshotMode = string(checkpointer.All)
	}
	if e.BatchSize == 0 {
		e.BatchSize = 1000
	}
	if e.MaxPathLength == 0 {
		e.MaxPathLength = 4500
	}
	if e.NItr == 0 {
		e.NItr = 200
	}
	if e.Discount == 0 {
		e.Discount = 0.99
	}
	if e.StepSize == 0 {
		e.StepSize = 0.01
	}
}

// envConfig returns the environment configuration of the experiment
func (e *FileExperiment) envConfig() (envconfig.Config, error) {
	f := e.Env
	if f.GymID != "" {
		return envconfig.NewGym(f.GymID, e.Discount, f.EpisodeCutoff,
			f.ClipReward), nil
	}
	if f.Game == "" {
		return envconfig.Config{}, fmt.Errorf("envConfig: missing game")
	}

	c := atari.NewConfig(f.Game, atari.ObsType(f.ObsType))
	c.Seed = uint64(f.Seed)
	if f.FrameSkip > 0 {
		c.FrameSkip = f.FrameSkip
	}
	if f.ImgWidth > 0 {
		c.ImgWidth = f.ImgWidth
	}
	if f.ImgHeight > 0 {
		c.ImgHeight = f.ImgHeight
	}
	if f.NLastScreens > 0 {
		c.NLastScreens = f.NLastScreens
	}
	if f.NLastRAMs > 0 {
		c.NLastRAMs = f.NLastRAMs
	}
	c.MaxStartNullops = f.MaxStartNullops
	c.AvoidLifeLost = f.AvoidLifeLost
	c.CorrectLuminance = f.CorrectLuminance
	c.RecordRAM = f.RecordRAM
	c.RecordImage = f.RecordImage

	if e.Bonus != nil {
		switch bonus.CountTarget(e.Bonus.CountTarget) {
		case bonus.Images:
			c.RecordImage = true
		case bonus.RAMStates:
			c.RecordRAM = true
		}
	}
	if err := c.Validate(); err != nil {
		return envconfig.Config{}, fmt.Errorf("envConfig: %w", err)
	}
	return envconfig.NewAtari(c, e.Discount, f.EpisodeCutoff,
		f.ClipReward), nil
}

// policy returns the policy node named by the experiment
func (e *FileExperiment) policy() (algo.Node, error) {
	switch e.Policy {
	case "mlp":
		return algo.CategoricalMLP{Name: "policy",
			HiddenSizes: e.HiddenSizes}, nil
	case "conv":
		return algo.CategoricalConv{Name: "policy",
			ConvNetwork: algo.NIPSDQN()}, nil
	case "random":
		return algo.CategoricalRandom{}, nil
	case "gaussian":
		return algo.GaussianMLP{HiddenSizes: e.HiddenSizes, InitStd: 1}, nil
	}
	return nil, fmt.Errorf("policy: %w: policy %q",
		environment.ErrNotImplemented, e.Policy)
}

// bonus returns the bonus configuration of the experiment
func (e *FileExperiment) bonus(env envconfig.Config) (algo.Bonus, error) {
	b := e.Bonus
	if b == nil {
		return algo.Bonus{}, nil
	}

	target := bonus.CountTarget(b.CountTarget)
	if target == "" {
		target = bonus.Observations
	}
	form := bonus.BonusForm(b.BonusForm)
	if form == "" {
		form = bonus.InvSqrt
	}
	dimKey := b.DimKey
	if dimKey == 0 {
		dimKey = 256
	}

	var pre algo.Preprocessor
	if target == bonus.Observations {
		if env.Environment != envconfig.Atari {
			return algo.Bonus{}, fmt.Errorf("bonus: %w: observation "+
				"counts of %v", environment.ErrNotImplemented, env)
		}
		pre = algo.Identity{Identity: bonus.Identity{
			Dim: env.Atari.ObservationLen(atariRAMSize),
		}}
	} else {
		var err error
		if pre, err = statePreprocessor(target); err != nil {
			return algo.Bonus{}, fmt.Errorf("bonus: %w", err)
		}
	}

	evaluator := algo.NewALEHashing("", pre, dimKey, b.BucketSizes, form,
		target)
	return algo.Bonus{
		BonusEvaluator: algo.NewTypedPtr(evaluator),
		BonusCoeff:     b.BonusCoeff,
		ClipReward:     b.ClipReward,
	}, nil
}

// algorithm returns the algorithm node of the experiment
func (e *FileExperiment) algorithm(env envconfig.Config) (algo.Node, error) {
	policy, err := e.policy()
	if err != nil {
		return nil, fmt.Errorf("algorithm: %w", err)
	}
	b, err := e.bonus(env)
	if err != nil {
		return nil, fmt.Errorf("algorithm: %w", err)
	}

	batch := algo.Batch{
		Env:           env,
		Policy:        algo.NewTyped(policy),
		Baseline:      algo.NewTyped(algo.LinearFeature{}),
		BatchSize:     e.BatchSize,
		MaxPathLength: e.MaxPathLength,
		NItr:          e.NItr,
		Discount:      e.Discount,
		StorePaths:    true,
	}
	trpo := algo.TRPO{
		Batch:     batch,
		StepSize:  e.StepSize,
		Optimizer: algo.NewTypedPtr(algo.NewConjugateGradient()),
	}

	switch algo.Type(e.Algorithm) {
	case algo.TRPOType:
		return trpo, nil
	case algo.VPGType:
		return algo.VPG{Batch: batch, LearningRate: e.StepSize}, nil
	case algo.BonusTRPOType:
		if b.BonusEvaluator == nil {
			return nil, fmt.Errorf("algorithm: %v needs a bonus block",
				e.Algorithm)
		}
		return algo.BonusTRPO{TRPO: trpo, Bonus: b,
			ForceBatchSampler: true}, nil
	case algo.ParallelTRPOType:
		return algo.ParallelTRPO{TRPO: trpo, Bonus: b,
			NParallel: max(e.NParallel, 1)}, nil
	}
	return nil, fmt.Errorf("algorithm: %w: algorithm %q",
		environment.ErrNotImplemented, e.Algorithm)
}
