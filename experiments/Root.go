// Package experiments implements the command line interface: one
// subcommand per experiment launcher, plus tools for inspecting and
// replaying experiments.
package experiments

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	mode            string
	dry             bool
	logLevel        string
	logFormat       string
	catalogueFile   string
	instanceType    string
	subnet          string
	priceMultiplier float64
	recordDir       string
)

// GetRootCommand returns the root command with every subcommand added
func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "rllaunch",
		Short:         "Launch and inspect reinforcement learning experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(logLevel, logFormat, os.Stderr))
		},
	}
	rootCommand.PersistentFlags().StringVarP(&mode, "mode", "m", "local_test", "Launch mode: local, local_docker, ec2 or kube, with an optional _test suffix")
	rootCommand.PersistentFlags().BoolVar(&dry, "dry", false, "Log what would be submitted without submitting it")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCommand.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCommand.PersistentFlags().StringVar(&catalogueFile, "catalogue", "", "YAML instance and subnet catalogue replacing the built-in one")
	rootCommand.PersistentFlags().StringVar(&instanceType, "instance", "", "EC2 instance type overriding the launcher's")
	rootCommand.PersistentFlags().StringVar(&subnet, "subnet", "", "EC2 subnet overriding the launcher's")
	rootCommand.PersistentFlags().Float64Var(&priceMultiplier, "price-multiplier", 0, "Spot price multiplier overriding the launcher's")
	rootCommand.PersistentFlags().StringVar(&recordDir, "record-dir", "data/launches", "Directory of launch records")
	// launchers
	rootCommand.AddCommand(Exp009fCommand())
	rootCommand.AddCommand(Exp019aCommand())
	rootCommand.AddCommand(TestPong2Command())
	rootCommand.AddCommand(TRPOLSHCommand())
	rootCommand.AddCommand(FromFileCommand())
	// tools
	rootCommand.AddCommand(SimPolicyCommand())
	rootCommand.AddCommand(CheckGamesCommand())
	rootCommand.AddCommand(ProbeCommand())
	rootCommand.AddCommand(PlotCommand())
	rootCommand.AddCommand(LoginCommand())
	return rootCommand
}
