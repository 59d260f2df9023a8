package experiments

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/spf13/cobra"
)

// builder returns the jobs of a launcher for a mode string at time now
type builder func(mode string, now time.Time, s launch.Settings) ([]launch.Job,
	error)

// placement is where a launcher runs on EC2 unless overridden by flags
type placement struct {
	instanceType    string
	subnet          string
	priceMultiplier float64
}

// settings returns the default Settings with the placement p, the
// catalogue file and any placement flags applied
func settings(cmd *cobra.Command, p placement) (launch.Settings, error) {
	s, err := launch.DefaultSettings()
	if err != nil {
		return s, err
	}
	if catalogueFile != "" {
		if s.Catalogue, err = launch.LoadCatalogue(catalogueFile); err != nil {
			return s, err
		}
	}

	if p.instanceType != "" {
		s.InstanceType = p.instanceType
	}
	if p.subnet != "" {
		s.Subnet = p.subnet
	}
	if p.priceMultiplier > 0 {
		s.PriceMultiplier = p.priceMultiplier
	}
	if f := cmd.Flag("instance"); f != nil && f.Changed {
		s.InstanceType = instanceType
	}
	if f := cmd.Flag("subnet"); f != nil && f.Changed {
		s.Subnet = subnet
	}
	if f := cmd.Flag("price-multiplier"); f != nil && f.Changed {
		s.PriceMultiplier = priceMultiplier
	}

	s.Out = cmd.OutOrStdout()
	s.Logger = slog.Default()
	return s, nil
}

// runLauncher builds the jobs of a launcher and submits them in the
// mode given by the flags. Launches that leave the local machine are
// recorded in a read-only file.
func runLauncher(cmd *cobra.Command, p placement, build builder) error {
	ctx := cmd.Context()
	s, err := settings(cmd, p)
	if err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}

	now := time.Now()
	jobs, err := build(mode, now, s)
	if err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}
	slog.Info("built experiments", "launcher", cmd.Name(),
		"experiments", len(jobs))

	l, err := launch.NewLauncher(ctx, mode, s, dry)
	if err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}
	l.Progress = cmd.ErrOrStderr()

	names, err := l.Launch(ctx, jobs)
	if err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}
	if !l.ShouldRecord() || dry {
		return nil
	}

	if err := os.MkdirAll(recordDir, 0755); err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}
	filename := filepath.Join(recordDir, fmt.Sprintf("%v_%v.log", cmd.Name(),
		launch.TimeStamp(now)))
	if err := launch.NewRecord(ctx, s.CodeDir, names).Save(filename,
		true); err != nil {
		return fmt.Errorf("%v: %w", cmd.Name(), err)
	}
	slog.Info("recorded launch", "file", filename)
	return nil
}

// launcherCommand returns a command running a launcher
func launcherCommand(use, short string, p placement,
	build builder) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd, p, build)
		},
	}
}
