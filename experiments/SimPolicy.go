package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/policy"
	"github.com/samuelfneumann/rllaunch/rollout"
	"github.com/spf13/cobra"
)

var (
	envFile       string
	romDir        string
	maxPathLength int
	speedup       float64
	episodes      int
	framesDir     string
	frameScale    float64
	simSeed       uint64
)

// frameRenderer is an environment that can write its current frame to
// an image file
type frameRenderer interface {
	RenderTo(path string, scale float64) error
}

// SimPolicyCommand replays a policy snapshot in its environment
func SimPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim-policy SNAPSHOT",
		Short: "Replay a policy snapshot with repeated rollouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return SimPolicy(cmd.Context(), args[0], slog.Default())
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "env.json", "JSON environment configuration")
	cmd.Flags().StringVar(&romDir, "rom-dir", "", "Directory of Atari ROMs, ATARI_ROM_DIR if empty")
	cmd.Flags().IntVar(&maxPathLength, "max-path-length", 1000, "Max length of rollout")
	cmd.Flags().Float64Var(&speedup, "speedup", 1, "Speedup")
	cmd.Flags().IntVar(&episodes, "episodes", 0, "Number of rollouts, or until interrupted if 0")
	cmd.Flags().StringVar(&framesDir, "frames", "", "Directory to write rendered frames to")
	cmd.Flags().Float64Var(&frameScale, "scale", 2, "Scale of rendered frames")
	cmd.Flags().Uint64Var(&simSeed, "seed", 0, "Seed of the environment and policy")
	return cmd
}

// loadEnvConfig reads a JSON environment configuration, finding Atari
// ROMs in dir
func loadEnvConfig(filename, dir string) (envconfig.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return envconfig.Config{}, fmt.Errorf("loadEnvConfig: %w", err)
	}
	var c envconfig.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return envconfig.Config{}, fmt.Errorf("loadEnvConfig: %w", err)
	}
	c.Atari.ROMDir = dir
	return c, nil
}

// animation returns the animation of a replay, which writes each frame
// to dir if dir is not empty
func animation(dir string, scale float64) (func(environment.Environment) error,
	error) {
	if dir == "" {
		return func(environment.Environment) error { return nil }, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("animation: %w", err)
	}

	next := checkpointer.FilenameEnumerator(0, filepath.Join(dir, "frame_"),
		".png")
	return func(env environment.Environment) error {
		r, ok := env.(frameRenderer)
		if !ok {
			return fmt.Errorf("animation: %w: rendering %v",
				environment.ErrNotImplemented, env)
		}
		return r.RenderTo(next(), scale)
	}, nil
}

// SimPolicy replays the policy snapshot at filename until the episodes
// flag is reached or ctx is cancelled
func SimPolicy(ctx context.Context, filename string,
	logger *slog.Logger) error {
	p, err := policy.LoadCategoricalLinear(filename)
	if err != nil {
		return fmt.Errorf("simPolicy: %w", err)
	}
	p.Seed(simSeed)

	conf, err := loadEnvConfig(envFile, romDir)
	if err != nil {
		return fmt.Errorf("simPolicy: %w", err)
	}
	// The replay runs the bare environment so that frames can be
	// rendered. The path length limits episodes instead of a cutoff.
	conf.ClipReward = false
	conf.EpisodeCutoff = 0

	env, _, err := conf.Create(simSeed)
	if err != nil {
		return fmt.Errorf("simPolicy: %w", err)
	}
	defer env.Close()

	animate, err := animation(framesDir, frameScale)
	if err != nil {
		return fmt.Errorf("simPolicy: %w", err)
	}

	for ep := 0; episodes <= 0 || ep < episodes; ep++ {
		path, err := rollout.Rollout(ctx, env, p, maxPathLength,
			rollout.WithAnimation(animate, speedup))
		if errors.Is(err, context.Canceled) {
			return nil
		} else if err != nil {
			return fmt.Errorf("simPolicy: %w", err)
		}
		logger.Info("rollout finished", "episode", ep, "steps", path.Len(),
			"return", path.Return())
	}
	return nil
}
