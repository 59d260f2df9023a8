// Package launch submits experiment jobs to the machine they run on:
// the local machine, a local Docker container, an EC2 spot instance or
// a Kubernetes cluster.
package launch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samuelfneumann/rllaunch/environment"
)

// Mode is the kind of machine a job runs on
type Mode string

const (
	Local       Mode = "local"
	LocalDocker Mode = "local_docker"
	EC2         Mode = "ec2"
	Kube        Mode = "lab_kube"
)

// ParseMode returns the Mode named by a mode string such as
// "local_docker_test" or "ec2". The first of local_docker, local, ec2
// and kube that is a substring of mode is used.
func ParseMode(mode string) (Mode, error) {
	switch {
	case strings.Contains(mode, "local_docker"):
		return LocalDocker, nil
	case strings.Contains(mode, "local"):
		return Local, nil
	case strings.Contains(mode, "ec2"):
		return EC2, nil
	case strings.Contains(mode, "kube"):
		return Kube, nil
	}
	return "", fmt.Errorf("parseMode: %w: mode %q",
		environment.ErrNotImplemented, mode)
}

// IsTest returns whether mode asks for only the first variant to be
// submitted
func IsTest(mode string) bool {
	return strings.Contains(mode, "test")
}

// MaxNameLen is the longest experiment name accepted on EC2
const MaxNameLen int = 64

// ErrNameTooLong is returned when an experiment name is too long to be
// used as an EC2 tag
var ErrNameTooLong = errors.New("experiment name too long")

// TimeStampLayout formats times as YYYYMMDD_HHMMSS
const TimeStampLayout string = "20060102_150405"

// TimeStamp returns t formatted with TimeStampLayout
func TimeStamp(t time.Time) string {
	return t.Format(TimeStampLayout)
}

// CheckName returns an error if name cannot be used in mode
func CheckName(name string, mode Mode) error {
	if name == "" {
		return fmt.Errorf("checkName: empty experiment name")
	}
	if mode == EC2 && len(name) > MaxNameLen {
		return fmt.Errorf("checkName: %w: %q has length %v > %v",
			ErrNameTooLong, name, len(name), MaxNameLen)
	}
	return nil
}

// KubePrefix returns prefix with slashes replaced, since Kubernetes
// rejects them in names
func KubePrefix(prefix string) string {
	return strings.ReplaceAll(prefix, "/", "-")
}
