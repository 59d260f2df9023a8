package experiments

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/bonus"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ale"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/samuelfneumann/rllaunch/experiment/trackers"
	"github.com/samuelfneumann/rllaunch/policy"
	"github.com/samuelfneumann/rllaunch/rollout"
	"github.com/spf13/cobra"
)

// Files written by a probe
const (
	ReturnsFile  string = "returns.gob"
	LengthsFile  string = "lengths.gob"
	CoverageFile string = "coverage.gob"
)

// ProbeConfig configures a probe of how many distinct hashed states a
// random policy visits in an Atari game
type ProbeConfig struct {
	Game          string
	ObsType       atari.ObsType
	Target        bonus.CountTarget
	Iterations    int
	BatchSize     int
	MaxPathLength int
	DimKey        int
	BucketSizes   []uint64

	// RedisAddr names a Redis server holding the counts, which are
	// kept in memory if empty
	RedisAddr   string
	RedisPrefix string

	// Fake probes the scripted emulator instead of the native one
	Fake bool

	// Dir receives the tracked data and the hash snapshot
	Dir    string
	ROMDir string
	Seed   uint64
}

var probeConfig ProbeConfig

// ProbeCommand probes the state coverage of a random policy
func ProbeCommand() *cobra.Command {
	var obsType, target string
	var buckets []uint
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Count the distinct hashed states a random policy visits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := probeConfig
			c.ObsType = atari.ObsType(obsType)
			c.Target = bonus.CountTarget(target)
			c.ROMDir = romDir
			for _, b := range buckets {
				c.BucketSizes = append(c.BucketSizes, uint64(b))
			}
			return Probe(cmd.Context(), c, slog.Default())
		},
	}
	cmd.Flags().StringVar(&probeConfig.Game, "game", "montezuma_revenge", "Atari game")
	cmd.Flags().StringVar(&obsType, "obs-type", string(atari.RAM), "Observation type: ram, image or ram+image")
	cmd.Flags().StringVar(&target, "target", string(bonus.Observations), "Counted states: observations, images or ram_states")
	cmd.Flags().IntVar(&probeConfig.Iterations, "iterations", 10, "Number of iterations")
	cmd.Flags().IntVar(&probeConfig.BatchSize, "batch-size", 1000, "Steps per iteration")
	cmd.Flags().IntVar(&probeConfig.MaxPathLength, "max-path-length", 4500, "Max length of rollout")
	cmd.Flags().IntVar(&probeConfig.DimKey, "dim-key", 64, "Bits of each hash key")
	cmd.Flags().UintSliceVar(&buckets, "bucket-sizes", nil, "Hash table sizes, default tables if empty")
	cmd.Flags().StringVar(&probeConfig.RedisAddr, "redis", "", "Address of a Redis server holding the counts")
	cmd.Flags().StringVar(&probeConfig.RedisPrefix, "redis-prefix", "rllaunch-probe", "Prefix of the Redis keys")
	cmd.Flags().BoolVar(&probeConfig.Fake, "fake", false, "Use the scripted emulator")
	cmd.Flags().StringVar(&probeConfig.Dir, "out", "data/probe", "Output directory")
	cmd.Flags().StringVar(&romDir, "rom-dir", "", "Directory of Atari ROMs, ATARI_ROM_DIR if empty")
	cmd.Flags().Uint64Var(&probeConfig.Seed, "seed", 0, "Seed of the environment, policy and hash")
	return cmd
}

// itemDim returns the dimension of the states counted for target in
// the environment c
func itemDim(c atari.Config, target bonus.CountTarget) (int, error) {
	switch target {
	case bonus.Observations:
		return c.ObservationLen(atariRAMSize), nil
	case bonus.Images:
		return c.ImgWidth * c.ImgHeight, nil
	case bonus.RAMStates:
		return atariRAMSize, nil
	}
	return 0, fmt.Errorf("itemDim: %w: count target %q",
		environment.ErrNotImplemented, target)
}

// countStore returns a Redis count store if addr is not empty, and a
// nil store counting in memory otherwise. The returned function closes
// the store.
func countStore(ctx context.Context, addr, prefix string) (bonus.CountStore,
	func() error, error) {
	if addr == "" {
		return nil, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("countStore: %w", err)
	}
	return bonus.NewRedisStore(client, prefix), client.Close, nil
}

// Probe runs a random policy in an Atari game and counts the distinct
// hashed states it visits. Returns, episode lengths and the number of
// distinct states after each iteration are saved to c.Dir, together
// with a snapshot of the hash.
func Probe(ctx context.Context, c ProbeConfig, logger *slog.Logger) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	game := atari.NewConfig(c.Game, c.ObsType)
	game.ROMDir = c.ROMDir
	game.RecordImage = c.Target == bonus.Images
	game.RecordRAM = c.Target == bonus.RAMStates

	newEmulator := envconfig.EmulatorFactory(ale.New)
	if c.Fake {
		game.ROMDir = filepath.Join(c.Dir, "roms")
		if err := os.MkdirAll(game.ROMDir, 0755); err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		if _, err := ataritest.WriteROM(game.ROMDir, c.Game); err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		newEmulator = func() (atari.Emulator, error) {
			e := ataritest.New()
			e.LifeEvery = 200
			return e, nil
		}
	}

	dim, err := itemDim(game, c.Target)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	store, closeStore, err := countStore(ctx, c.RedisAddr, c.RedisPrefix)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer closeStore()

	pre := algo.Identity{Identity: bonus.Identity{Dim: dim}}
	h, err := algo.NewALEHashing("Probe", pre, c.DimKey, c.BucketSizes,
		bonus.InvSqrt, c.Target).Build(c.Seed, store, logger)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	conf := experiment.Config{
		Type:          experiment.OnlineExp,
		Iterations:    c.Iterations,
		BatchSize:     c.BatchSize,
		MaxPathLength: c.MaxPathLength,
		EnvConf:       envconfig.NewAtari(game, atari.DefaultDiscount, 0, false),
		Policy:        policy.Random,
		SnapshotMode:  checkpointer.Last,
	}
	returns := trackers.NewReturn(filepath.Join(c.Dir, ReturnsFile))
	lengths := trackers.NewEpisodeLength(filepath.Join(c.Dir, LengthsFile))
	o, err := conf.CreateExp(c.Seed, newEmulator, c.Dir, h.Hash(), returns,
		lengths)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer o.Close()
	o.SetLogger(logger)

	var coverage []float64
	o.OnIteration(func(itr int, paths []rollout.Path) error {
		if err := h.Fit(ctx, paths); err != nil {
			return err
		}
		distinct, err := h.Hash().Distinct(ctx)
		if err != nil {
			return err
		}
		coverage = append(coverage, float64(distinct))
		return nil
	})

	runErr := o.Run(ctx)
	if err := o.Save(); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if err := tracker.SaveData(filepath.Join(c.Dir, CoverageFile),
		coverage); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("probe: %w", runErr)
	}
	logger.Info("probe finished", "game", c.Game, "iterations", len(coverage),
		"episodes", len(returns.Data()))
	return nil
}
