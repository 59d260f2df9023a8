package launch

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/variant"
)

// Job is a single training run to submit
type Job struct {
	ExpPrefix string
	ExpName   string
	Seed      int
	NParallel int

	SnapshotMode checkpointer.Mode
	SnapshotGap  int

	Variant variant.Variant
	Algo    algo.Typed

	UseGPU bool
	Plot   bool

	// S3 synchronisation of snapshots, logs and all data on EC2
	SyncS3PKL            bool
	SyncS3Log            bool
	SyncLogOnTermination bool
	SyncAllDataToS3      bool
	PeriodicSyncInterval time.Duration

	TerminateMachine bool

	// Script overrides the training entry script of the Settings
	Script string

	// Dry logs what would be submitted instead of submitting it
	Dry bool
}

// Validate returns an error if the Job cannot be submitted in mode
func (j Job) Validate(mode Mode) error {
	if err := CheckName(j.ExpName, mode); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if j.NParallel < 1 {
		return fmt.Errorf("validate: number of workers must be positive, "+
			"got %v", j.NParallel)
	}
	if err := j.SnapshotMode.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if j.SnapshotMode == checkpointer.Gap && j.SnapshotGap < 1 {
		return fmt.Errorf("validate: snapshot gap must be positive, got %v",
			j.SnapshotGap)
	}
	if err := j.Algo.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// Path returns the path of the Job's data relative to a log directory
func (j Job) Path() string {
	return path.Join(j.ExpPrefix, j.ExpName)
}

// Args returns the command line arguments of the training entry script
// for the Job, logging to logDir. The variant and algorithm are passed
// as base64 encoded JSON.
func (j Job) Args(logDir string) ([]string, error) {
	variantData, err := encode(j.Variant)
	if err != nil {
		return nil, fmt.Errorf("args: could not encode variant: %w", err)
	}
	argsData, err := encode(j.Algo)
	if err != nil {
		return nil, fmt.Errorf("args: could not encode algorithm: %w", err)
	}

	mode := j.SnapshotMode
	if mode == "" {
		mode = checkpointer.All
	}
	args := []string{
		"--exp_name", j.ExpName,
		"--log_dir", logDir,
		"--seed", strconv.Itoa(j.Seed),
		"--n_parallel", strconv.Itoa(j.NParallel),
		"--snapshot_mode", string(mode),
		"--snapshot_gap", strconv.Itoa(j.SnapshotGap),
		"--plot", strconv.FormatBool(j.Plot),
		"--use_gpu", strconv.FormatBool(j.UseGPU),
		"--variant_data", variantData,
		"--args_data", argsData,
	}
	return args, nil
}

// encode returns the base64 encoded JSON of v
func encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeVariant decodes a variant passed with --variant_data
func DecodeVariant(data string) (variant.Variant, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decodeVariant: %w", err)
	}
	var v variant.Variant
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decodeVariant: %w", err)
	}
	return v, nil
}

// DecodeAlgo decodes an algorithm passed with --args_data
func DecodeAlgo(data string) (algo.Typed, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return algo.Typed{}, fmt.Errorf("decodeAlgo: %w", err)
	}
	return algo.Decode(b)
}
