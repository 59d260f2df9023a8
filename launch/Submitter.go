package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/samuelfneumann/rllaunch/environment"
)

// Submitter submits jobs to run
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// NewSubmitter returns the Submitter for mode. EC2 submitters use the
// default AWS credential chain.
func NewSubmitter(ctx context.Context, mode Mode,
	s Settings) (Submitter, error) {
	switch mode {
	case Local:
		return &LocalSubmitter{Settings: s}, nil

	case LocalDocker:
		return &DockerSubmitter{Settings: s}, nil

	case EC2:
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(s.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("newSubmitter: could not load AWS "+
				"config: %w", err)
		}
		return NewEC2Submitter(s, ec2.NewFromConfig(cfg)), nil

	case Kube:
		return &KubeSubmitter{Settings: s}, nil
	}
	return nil, fmt.Errorf("newSubmitter: %w: mode %q",
		environment.ErrNotImplemented, mode)
}

// run runs command in dir, or only logs it on a dry run
func (s Settings) run(ctx context.Context, dry bool, dir string,
	command []string) error {
	s.logger().Info("running command", "command", shellJoin(command),
		"dry", dry)
	if dry {
		return nil
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = s.out()
	cmd.Stderr = s.out()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run: %v: %w", command[0], err)
	}
	return nil
}

// LocalSubmitter runs jobs on the local machine, one at a time
type LocalSubmitter struct {
	Settings
}

// Submit implements the Submitter interface
func (l *LocalSubmitter) Submit(ctx context.Context, job Job) error {
	logDir := filepath.Join(l.LogDir, job.Path())
	command, err := l.Command(job, logDir)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if !job.Dry {
		if err := os.MkdirAll(filepath.Join(l.CodeDir, logDir), 0755); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}
	return l.run(ctx, job.Dry, l.CodeDir, command)
}

// DockerSubmitter runs jobs in a local Docker container
type DockerSubmitter struct {
	Settings
}

// DockerCommand returns the docker command that runs job
func (d *DockerSubmitter) DockerCommand(job Job) ([]string, error) {
	code, err := filepath.Abs(d.CodeDir)
	if err != nil {
		return nil, fmt.Errorf("dockerCommand: %w", err)
	}
	logs := filepath.Join(code, d.LogDir, job.Path())
	containerLogs := filepath.ToSlash(filepath.Join(d.DockerLogDir,
		job.Path()))

	command, err := d.Command(job, containerLogs)
	if err != nil {
		return nil, fmt.Errorf("dockerCommand: %w", err)
	}

	docker := []string{"docker", "run", "--rm"}
	if job.UseGPU {
		docker = append(docker, "--gpus", "all")
	}
	docker = append(docker,
		"-v", code+":"+d.DockerCodeDir,
		"-v", logs+":"+containerLogs,
		"-w", d.DockerCodeDir,
		d.DockerImage,
		"/bin/bash", "-c", shellJoin(command),
	)
	return docker, nil
}

// Submit implements the Submitter interface
func (d *DockerSubmitter) Submit(ctx context.Context, job Job) error {
	command, err := d.DockerCommand(job)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return d.run(ctx, job.Dry, d.CodeDir, command)
}

// kubeName returns name in the form accepted for Kubernetes objects
func kubeName(name string) string {
	name = strings.ToLower(KubePrefix(name))
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}
