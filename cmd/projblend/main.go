package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"projblend/pkg/config"
	"projblend/pkg/errs"
	"projblend/pkg/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "projblend:", err)
	}
	os.Exit(errs.ExitCode(err))
}

// options holds the command line flags.
type options struct {
	configPath string
	viewports  string
	debugDir   string
	verbose    bool
	workers    int
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "projblend [flags] <directory>",
		Short: "Compute cross-fade blend weights for multi-projector viewports",
		Long: `projblend reads the per-pixel UV correspondence rasters of every projector
in <directory>, splits each projector's samples into viewports, and writes a
blend raster per projector whose intensity channel cross-fades overlapping
viewports on the projection surface.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "run configuration file (.yaml or .toml)")
	flags.StringVar(&opts.viewports, "viewports", "", "display calibration file with viewport polygons, replaces clustering")
	flags.StringVar(&opts.debugDir, "debug-dir", "", "directory for masks, previews, plots and the run report")
	flags.IntVar(&opts.workers, "workers", 0, "number of distance transforms computed at once (default: all CPUs)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	return cmd
}

func run(cmd *cobra.Command, dir string, opts options) error {
	logger := loggerFromContext(cmd.Context())

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		if _, err := os.Stat(opts.configPath); err != nil {
			return errs.IO("stat", opts.configPath, err)
		}
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if info, err := os.Stat(dir); err != nil {
		return errs.IO("stat", dir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	cfg.ResolveDirs(dir)

	if opts.viewports != "" {
		cfg.ViewportConfig = opts.viewports
	}
	if opts.debugDir != "" {
		cfg.DebugDir = opts.debugDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	blender := pipeline.NewBlender(cfg, logger)
	logger.Info("Starting blend", "run", blender.RunID(), "dir", cfg.InputDir, "projectors", cfg.ProjectorIDs)

	result, err := blender.Process(cmd.Context())
	if err != nil {
		return err
	}

	for _, st := range result.Viewports {
		logger.Debug("viewport summary", "projector", st.Projector, "viewport", st.Viewport,
			"samples", st.Samples, "written", st.Written, "outside", st.Outside)
	}
	logger.Infof("Blending completed, %d rasters written (%s)", len(result.Outputs), result.Duration.Round(time.Millisecond))
	return nil
}
