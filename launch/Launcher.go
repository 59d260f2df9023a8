package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samuelfneumann/rllaunch/utils/progressbar"
)

// Launcher submits the jobs of an experiment
type Launcher struct {
	Mode      Mode
	Test      bool
	Dry       bool
	Submitter Submitter

	// Progress receives a progress bar over the submitted jobs if not
	// nil
	Progress io.Writer

	logger *slog.Logger
}

// NewLauncher returns a Launcher for a mode string such as
// "ec2_test", submitting with the Submitter for the mode
func NewLauncher(ctx context.Context, mode string, s Settings,
	dry bool) (*Launcher, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("newLauncher: %w", err)
	}
	sub, err := NewSubmitter(ctx, m, s)
	if err != nil {
		return nil, fmt.Errorf("newLauncher: %w", err)
	}

	return &Launcher{
		Mode:      m,
		Test:      IsTest(mode),
		Dry:       dry,
		Submitter: sub,
		logger:    s.logger(),
	}, nil
}

// SetLogger sets the logger of the Launcher
func (l *Launcher) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// Launch validates and then submits jobs in order, returning the names
// of the submitted jobs. In test mode only the first job is submitted.
func (l *Launcher) Launch(ctx context.Context, jobs []Job) ([]string,
	error) {
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.Test && len(jobs) > 1 {
		jobs = jobs[:1]
	}
	for _, job := range jobs {
		if err := job.Validate(l.Mode); err != nil {
			return nil, fmt.Errorf("launch: %v: %w", job.ExpName, err)
		}
	}
	l.logger.Info("launching", "experiments", len(jobs), "mode", l.Mode,
		"test", l.Test, "dry", l.Dry)

	var bar *progressbar.ManualProgressBar
	if l.Progress != nil {
		bar = progressbar.NewManualProgressBar(l.Progress, "Submitting", 40,
			len(jobs))
	}

	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return names, fmt.Errorf("launch: %w", err)
		}
		if l.Mode == Kube {
			job.ExpPrefix = KubePrefix(job.ExpPrefix)
		}
		job.Dry = job.Dry || l.Dry

		if err := l.Submitter.Submit(ctx, job); err != nil {
			return names, fmt.Errorf("launch: %v: %w", job.ExpName, err)
		}
		names = append(names, job.ExpName)

		if bar != nil {
			bar.Increment()
			bar.Display()
		}
	}
	return names, nil
}

// ShouldRecord returns whether a launch record is kept, which is the
// case for launches off the local machine that are not tests
func (l *Launcher) ShouldRecord() bool {
	return l.Mode != Local && !l.Test
}
