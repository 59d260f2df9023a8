package experiments

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	plotDir    string
	plotWindow int
)

// PlotCommand plots the returns and coverage of probes
func PlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot DIR...",
		Short: "Plot the returns and state coverage saved in experiment directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Plot(args, plotDir, plotWindow, slog.Default())
		},
	}
	cmd.Flags().StringVar(&plotDir, "out", "plots", "Directory to save the plots in")
	cmd.Flags().IntVar(&plotWindow, "window", 10, "Episodes in the moving average of returns")
	return cmd
}

// smooth returns the moving average of data over the last window
// points
func smooth(data []float64, window int) []float64 {
	if window <= 1 {
		return data
	}
	smoothed := make([]float64, len(data))
	for i := range data {
		lo := max(0, i-window+1)
		smoothed[i] = stat.Mean(data[lo:i+1], nil)
	}
	return smoothed
}

// points returns data as a series over its indices
func points(data []float64) plotter.XYs {
	xys := make(plotter.XYs, len(data))
	for i, v := range data {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}

// plotFile plots the data saved in filename of every directory in dirs
// with one line per directory, and saves the plot to out. Directories
// without the file are skipped.
func plotFile(dirs []string, filename, title, xLabel, yLabel, out string,
	window int, logger *slog.Logger) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	lines := 0
	for i, dir := range dirs {
		data, err := tracker.LoadData(filepath.Join(dir, filename))
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("no data to plot", "dir", dir, "file", filename)
			continue
		} else if err != nil {
			return fmt.Errorf("plotFile: %w", err)
		}

		line, err := plotter.NewLine(points(smooth(data, window)))
		if err != nil {
			return fmt.Errorf("plotFile: %v: %w", dir, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(filepath.Base(dir), line)
		lines++
	}
	if lines == 0 {
		return nil
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, out); err != nil {
		return fmt.Errorf("plotFile: %w", err)
	}
	logger.Info("saved plot", "file", out, "lines", lines)
	return nil
}

// Plot plots the returns and the state coverage saved in dirs to
// returns.png and coverage.png in out. Returns are smoothed over window
// episodes.
func Plot(dirs []string, out string, window int, logger *slog.Logger) error {
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if err := plotFile(dirs, ReturnsFile, "Returns", "Episode", "Return",
		filepath.Join(out, "returns.png"), window, logger); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if err := plotFile(dirs, CoverageFile, "Coverage", "Iteration",
		"Distinct states", filepath.Join(out, "coverage.png"), 1,
		logger); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	return nil
}
