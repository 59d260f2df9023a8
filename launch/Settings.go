package launch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Settings configure where and how jobs are submitted
type Settings struct {
	// Python and Script form the training entry command
	Python string
	Script string

	// CodeDir is the project directory jobs run in
	CodeDir string

	// LogDir is the local directory experiment data is written to
	LogDir string

	DockerImage   string
	DockerCodeDir string
	DockerLogDir  string

	AWSRegion          string
	AWSImageID         string
	AWSKeyName         string
	AWSInstanceProfile string
	S3LogDir           string
	InstanceType       string
	Subnet             string
	PriceMultiplier    float64

	KubeManifestDir string

	Catalogue Catalogue

	// Out receives the output of locally run commands
	Out    io.Writer
	Logger *slog.Logger
}

// DefaultSettings returns the Settings used by the launchers, with the
// built-in catalogue
func DefaultSettings() (Settings, error) {
	c, err := DefaultCatalogue()
	if err != nil {
		return Settings{}, fmt.Errorf("defaultSettings: %w", err)
	}
	return Settings{
		Python:             "python",
		Script:             "scripts/run_experiment_lite.py",
		CodeDir:            ".",
		LogDir:             "data/local",
		DockerImage:        "tsukuyomi2044/rllab3:theano",
		DockerCodeDir:      "/root/code/rllab",
		DockerLogDir:       "/root/code/rllab/data/local",
		AWSRegion:          "us-west-1",
		AWSImageID:         "ami-271b4847",
		AWSKeyName:         "rllab-us-west-1",
		AWSInstanceProfile: "rllab",
		S3LogDir:           "s3://rllab-experiments/experiments",
		InstanceType:       "c4.2xlarge",
		Subnet:             "us-west-1c",
		PriceMultiplier:    1.0,
		KubeManifestDir:    "data/kube",
		Catalogue:          c,
		Out:                os.Stdout,
	}, nil
}

func (s Settings) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s Settings) out() io.Writer {
	if s.Out == nil {
		return io.Discard
	}
	return s.Out
}

// NParallel returns the number of workers a job uses in mode. Jobs on
// EC2 and Kubernetes use one worker per two virtual CPUs of the
// configured instance type, other jobs use local.
func (s Settings) NParallel(mode Mode, local int) (int, error) {
	if mode != EC2 && mode != Kube {
		return local, nil
	}
	i, err := s.Catalogue.Instance(s.InstanceType)
	if err != nil {
		return 0, fmt.Errorf("nParallel: %w", err)
	}
	return i.NParallel(), nil
}

// SpotPrice returns the spot bid for the configured instance type
func (s Settings) SpotPrice() (string, error) {
	i, err := s.Catalogue.Instance(s.InstanceType)
	if err != nil {
		return "", fmt.Errorf("spotPrice: %w", err)
	}
	m := s.PriceMultiplier
	if m <= 0 {
		m = 1
	}
	return strconv.FormatFloat(i.Price*m, 'f', -1, 64), nil
}

// Command returns the training entry command of job logging to logDir
func (s Settings) Command(job Job, logDir string) ([]string, error) {
	args, err := job.Args(logDir)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	script := s.Script
	if job.Script != "" {
		script = job.Script
	}
	return append([]string{s.Python, script}, args...), nil
}

// shellJoin joins a command into a single quoted shell string
func shellJoin(command []string) string {
	quoted := make([]string, len(command))
	for i, c := range command {
		if c != "" && strings.Trim(c, "abcdefghijklmnopqrstuvwxyz"+
			"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-./=:+,") == "" {
			quoted[i] = c
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(c, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}
