package experiments

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/variant"
	"github.com/spf13/cobra"
)

// CheckGamesCommand checks that the ROMs of games exist
func CheckGamesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-games [GAME...]",
		Short: "Check that the ROMs of the launchers' games, or the given games, exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			games := args
			if len(games) == 0 {
				games = launcherGames()
			}
			missing := CheckGames(romDir, games)
			for _, game := range games {
				if err, ok := missing[game]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%v\tmissing\t%v\n", game, err)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%v\tok\n", game)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("check-games: %w: %v of %v games",
					atari.ErrGameNotFound, len(missing), len(games))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&romDir, "rom-dir", "", "Directory of Atari ROMs, ATARI_ROM_DIR if empty")
	return cmd
}

// launcherGames returns the games of every Atari launcher's variants
func launcherGames() []string {
	set := make(map[string]bool)
	for _, g := range []*variant.Generator{Exp009fVariants(),
		TestPong2Variants(), TRPOLSHVariants()} {
		for _, v := range g.Variants() {
			set[v.String("game")] = true
		}
	}
	games := make([]string, 0, len(set))
	for game := range set {
		games = append(games, game)
	}
	sort.Strings(games)
	return games
}

// CheckGames returns the errors of the games whose ROMs are missing
// from dir
func CheckGames(dir string, games []string) map[string]error {
	missing := make(map[string]error)
	for _, game := range games {
		if _, err := atari.CheckGame(dir, game); err != nil {
			missing[game] = err
		}
	}
	return missing
}
