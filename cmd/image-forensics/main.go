package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Molcarrus/image-forensics/internal/analysis"
	"github.com/Molcarrus/image-forensics/internal/config"
	"github.com/Molcarrus/image-forensics/internal/forensics"
	"github.com/Molcarrus/image-forensics/internal/imaging"
	"github.com/Molcarrus/image-forensics/internal/report"
	"github.com/Molcarrus/image-forensics/internal/server"
	"github.com/Molcarrus/image-forensics/internal/system"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Configure logging to stderr (stdout is for results and the MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	var err error
	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("image-forensics %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printUsage(os.Stdout)
		return
	case "copymove":
		err = runCopyMove(args, os.Stdout)
	case "analyzers":
		err = runAnalyzers(os.Stdout)
	case "config":
		err = runConfig(args, os.Stdout)
	case "serve":
		err = runServe(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Printf("Error: %v", err)
		if errors.Is(err, forensics.ErrInvalidParameter) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "image-forensics - copy-move forgery detection")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: image-forensics <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  copymove -in IMAGE [options]   Detect duplicated regions in an image")
	fmt.Fprintln(w, "  analyzers                      List known analyzers")
	fmt.Fprintln(w, "  config [-config FILE]          Print the effective configuration as YAML")
	fmt.Fprintln(w, "  serve [-config FILE]           Run the MCP server on stdin/stdout (default)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=debug    Enable debug logging\n", config.EnvLogLevel)
	fmt.Fprintf(w, "  %s=N          Bound analysis parallelism\n", config.EnvWorkers)
	fmt.Fprintf(w, "  %s=edges|ocr  Exclude text from matching\n", config.EnvTextMask)
	fmt.Fprintf(w, "  %s=eng     Tesseract language for the ocr mask\n", config.EnvLanguage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'image-forensics copymove -h' for the analysis options.")
}

// copyMoveOptions holds the copymove command's non-config flags.
type copyMoveOptions struct {
	input      string
	overlay    string
	reportPath string
	stats      bool
}

// parseCopyMoveFlags parses args into options and a configuration. Flags
// that are set override the config file, which overrides the defaults.
func parseCopyMoveFlags(args []string, output io.Writer) (*copyMoveOptions, *config.Config, error) {
	fs := flag.NewFlagSet("copymove", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := &copyMoveOptions{}
	fs.StringVar(&opts.input, "in", "", "Path to the image to analyze (required)")
	fs.StringVar(&opts.overlay, "out", "", "Write the overlay image here (format from extension)")
	fs.StringVar(&opts.reportPath, "report", "", "Write a report here (.yaml, .yml or .json)")
	fs.BoolVar(&opts.stats, "stats", false, "Print host resource usage after the analysis")
	configPath := fs.String("config", "", "YAML configuration file")

	defaults := config.Default().CopyMove
	blockSize := fs.Int("block", defaults.BlockSize, "Block side length in pixels")
	threshold := fs.Float64("threshold", defaults.SimilarityThreshold, "Minimum block similarity in (0, 1]")
	minDistance := fs.Int("min-distance", defaults.MinDistance, "Minimum distance in pixels between matched blocks")
	stride := fs.Int("stride", defaults.Stride, "Step between block origins")
	workers := fs.Int("workers", 0, "Worker goroutines (0 = all CPUs)")
	mask := fs.String("mask", config.MaskNone, "Text mask: none, edges or ocr")
	smooth := fs.Float64("smooth", defaults.SmoothingSigma, "Gaussian pre-filter radius (0 = off)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.input == "" {
		if fs.NArg() == 0 {
			return nil, nil, fmt.Errorf("%w: -in is required", forensics.ErrInvalidParameter)
		}
		opts.input = fs.Arg(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "block":
			cfg.CopyMove.BlockSize = *blockSize
		case "threshold":
			cfg.CopyMove.SimilarityThreshold = *threshold
		case "min-distance":
			cfg.CopyMove.MinDistance = *minDistance
		case "stride":
			cfg.CopyMove.Stride = *stride
		case "workers":
			cfg.Workers = *workers
		case "mask":
			cfg.TextMask = *mask
		case "smooth":
			cfg.CopyMove.SmoothingSigma = *smooth
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return opts, cfg, nil
}

func runCopyMove(args []string, stdout io.Writer) error {
	opts, cfg, err := parseCopyMoveFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if cfg.Debug() {
		log.Printf("image-forensics v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	img, format, err := imaging.NewImageCache().LoadWithFormat(opts.input)
	if err != nil {
		return err
	}
	if cfg.Debug() {
		b := img.Bounds()
		log.Printf("loaded %s: %dx%d %s", opts.input, b.Dx(), b.Dy(), format)
	}

	res, excluded, err := analysis.Run(ctx, cfg, img)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d match(es), confidence %.3f\n", opts.input, len(res.Matches), res.Confidence)
	for i, m := range res.Matches {
		fmt.Fprintf(stdout, "  #%d source %v -> target %v  offset %v  similarity %.4f  blocks %d\n",
			i+1, m.SourceRegion, m.TargetRegion, m.Offset, m.Similarity, m.Members)
	}
	if len(excluded) > 0 {
		fmt.Fprintf(stdout, "  %d text region(s) excluded\n", len(excluded))
	}

	if opts.overlay != "" {
		if err := res.Save(opts.overlay); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "overlay written to %s\n", opts.overlay)
	}
	if opts.reportPath != "" {
		if err := report.Write(report.FromResult(opts.input, cfg.DetectorParams(), res, excluded), opts.reportPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "report written to %s\n", opts.reportPath)
	}
	if opts.stats {
		fmt.Fprintf(stdout, "timing: features %v, match %v, cluster %v, render %v\n",
			res.Stats.FeatureTime, res.Stats.MatchTime, res.Stats.ClusterTime, res.Stats.RenderTime)
		if snap, err := system.Snapshot(); err != nil {
			log.Printf("resource snapshot unavailable: %v", err)
		} else {
			fmt.Fprintf(stdout, "host: %s\n", snap)
		}
	}
	return nil
}

func runAnalyzers(stdout io.Writer) error {
	for _, v := range analysis.Variants() {
		status := "planned"
		if v.Available {
			status = "available"
		}
		fmt.Fprintf(stdout, "%-12s %-10s %s\n", v.Name, status, v.Description)
	}
	return nil
}

func runConfig(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.Debug() {
		log.Printf("image-forensics MCP server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		cfg.CopyMove.Logf = log.Printf
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
