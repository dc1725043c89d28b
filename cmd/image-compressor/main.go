package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/report"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	// stdout receives the report; --quiet only silences per-file blocks.
	stdout io.Writer = os.Stdout
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-compressor",
	Short: "Compress and downscale a directory of images concurrently",
	Long: `image-compressor walks an input directory, re-encodes every JPEG, PNG,
BMP, TIFF and WebP image it finds and writes the results to a mirrored output
tree (or over the originals with --overwrite).

Features:
- Downscales images that exceed the configured maximum size
- Keeps the original bytes when compression does not reach --min-compression
- Processes files on a fixed-size worker pool
- Optional EXIF marker to skip already compressed images
- Structured logging with rotation`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Flags())
	},
}

// scanCmd lists the images that would be processed without touching them.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the images that would be compressed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Flags())
	},
}

func init() {
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./image-compressor.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress per-file output")

	flags := rootCmd.PersistentFlags()
	flags.StringP("input", "i", defaults.InputDirectory, "input directory to scan")
	flags.StringP("output", "o", defaults.OutputDirectory, "output directory (ignored with --overwrite)")
	flags.IntP("quality", "q", defaults.Quality, "encode quality (1-100)")
	flags.Int("max-width", defaults.MaxWidth, "maximum width, larger images are downscaled")
	flags.Int("max-height", defaults.MaxHeight, "maximum height, larger images are downscaled")
	flags.Bool("overwrite", defaults.Overwrite, "write compressed images over the originals")
	flags.IntP("workers", "w", defaults.Workers, "number of concurrent workers")
	flags.Float64("min-compression", defaults.MinCompression, "minimum compression ratio in percent; smaller savings keep the original")
	flags.Bool("auto-orient", defaults.AutoOrient, "apply the EXIF orientation before resizing")
	flags.Bool("progress", defaults.Progress, "show a progress bar on stderr")
	flags.Bool("skip-marked", defaults.Metadata.SkipMarked, "keep images that already carry the EXIF marker")
	flags.Bool("mark", defaults.Metadata.MarkOutput, "write the EXIF marker into compressed JPEG files")
	flags.String("log-file", defaults.Logging.FilePath, "write JSON logs to this file")

	rootCmd.AddCommand(scanCmd)
}

// runCompress executes a full compression run.
func runCompress(flags *pflag.FlagSet) error {
	cfg, err := config.LoadConfig(cfgFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.WithRun(setupLogger(cfg), uuid.NewString())

	files, err := discover(cfg, log)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		report.NewPrinter(report.Options{Writer: stdout}).Message("No image files found in %s", cfg.InputDirectory)
		return nil
	}

	out := stdout
	if quiet {
		out = io.Discard
	}
	printer := report.NewPrinter(report.Options{
		Writer:   out,
		Progress: cfg.Progress,
		Total:    len(files),
	})

	if !cfg.Overwrite {
		if err := os.MkdirAll(cfg.OutputDirectory, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tasks, err := buildTasks(cfg, files)
	if err != nil {
		return err
	}

	opts := compressor.WorkerOptions{
		SkipMarked: cfg.Metadata.SkipMarked,
		MarkOutput: cfg.Metadata.MarkOutput,
	}
	if opts.SkipMarked || opts.MarkOutput {
		marker := metadata.NewEXIFMarker(log, cfg.Metadata.Marker)
		defer marker.Close()
		opts.Marker = marker
	}

	info := report.RunInfo{
		Files:           len(files),
		Quality:         cfg.Quality,
		MaxWidth:        cfg.MaxWidth,
		MaxHeight:       cfg.MaxHeight,
		OutputDirectory: cfg.OutputDirectory,
		Overwrite:       cfg.Overwrite,
		Workers:         cfg.Workers,
		MinCompression:  cfg.MinCompression,
		StartTime:       time.Now(),
	}
	printer.PrintHeader(info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := compressor.NewWorker(codec.NewImaging(cfg.AutoOrient), printer, log, opts)
	result, err := compressor.NewCoordinator(worker, cfg.Workers, printer, log).Run(ctx, tasks)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	printer.Finish()

	if quiet {
		printer = report.NewPrinter(report.Options{Writer: stdout})
	}
	printer.PrintSummary(result.Stats, info)
	return nil
}

// runScan prints the images a compression run would pick up.
func runScan(flags *pflag.FlagSet) error {
	cfg, err := config.LoadConfig(cfgFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	files, err := discover(cfg, logger.WithRun(setupLogger(cfg), uuid.NewString()))
	if err != nil {
		return err
	}

	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
		if !quiet {
			fmt.Fprintln(stdout, f)
		}
	}
	fmt.Fprintf(stdout, "\nFound %d image files (%.1f MB) in %s\n", len(files), float64(total)/1024/1024, cfg.InputDirectory)
	return nil
}

// discover lists the input images, leaving out an output directory nested in
// the input tree.
func discover(cfg *config.Config, log *logrus.Entry) ([]string, error) {
	var exclude []string
	if nested := cfg.NestedOutputDirectory(); nested != "" {
		exclude = append(exclude, nested)
	}

	files, err := compressor.Discover(log, cfg.InputDirectory, exclude...)
	if errors.Is(err, compressor.ErrDirectoryNotFound) {
		return nil, fmt.Errorf("input directory does not exist: %s", cfg.InputDirectory)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}
	return files, nil
}

// buildTasks creates one task per discovered file.
func buildTasks(cfg *config.Config, files []string) ([]compressor.Task, error) {
	tasks := make([]compressor.Task, 0, len(files))
	for _, f := range files {
		outputPath, err := cfg.OutputPathFor(f)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, compressor.Task{
			InputPath:      f,
			OutputPath:     outputPath,
			Quality:        cfg.Quality,
			MaxWidth:       cfg.MaxWidth,
			MaxHeight:      cfg.MaxHeight,
			MinCompression: cfg.MinCompression,
		})
	}
	return tasks, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console || verbose,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger setup failed, using stderr: %v\n", err)
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
