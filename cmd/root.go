package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gw-scan/gw-scan/scan"
	"github.com/gw-scan/gw-scan/scan/flow"
	"github.com/gw-scan/gw-scan/scan/results"
)

var (
	// CLI flags for the scan job
	modelPath      string    // Path to the trained flow checkpoint
	eventDataPath  string    // Path to the event data file
	numSamples     int       // Posterior samples per chirp-mass candidate
	overlapFactor  float64   // Chirp-mass grid density multiplier
	fMaxFlow       float64   // Upper frequency cutoff for flow conditioning (0 = full band)
	fMaxLikelihood float64   // Upper frequency cutoff for likelihood data (0 = full band)
	numWorkers     int       // Worker count for likelihood evaluation (<=1 sequential)
	timeScanRange  []float64 // Optional time-scan window (t_min, t_max)
	plot           bool      // Print an ASCII log-likelihood profile
	outFile        string    // Output CSV path (empty = no file)
	seed           int64     // Master seed for posterior sampling
	logLevel       string    // Log verbosity level
	presetFile     string    // Optional YAML preset file
	presetName     string    // Preset name within the preset file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "gw-scan",
	Short: "Chirp-mass trigger scan with a conditional flow model",
}

// runCmd executes the scan using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chirp-mass scan",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if modelPath == "" || eventDataPath == "" {
			logrus.Fatalf("Both --model and --event-data are required. Exiting scan.")
		}
		if len(timeScanRange) != 0 && len(timeScanRange) != 2 {
			logrus.Fatalf("--time-scan-range takes exactly two values (t_min,t_max), got %d", len(timeScanRange))
		}

		cfg := scan.Config{
			Scan: scan.ScanConfig{
				NumSamples:    numSamples,
				OverlapFactor: overlapFactor,
				FMaxFlow:      fMaxFlow,
			},
			Likelihood: scan.LikelihoodConfig{
				NumWorkers: numWorkers,
				FMax:       fMaxLikelihood,
			},
			Seed: seed,
		}
		if len(timeScanRange) == 2 {
			cfg.TimeScan = scan.TimeScanConfig{
				Enabled:       true,
				TMin:          timeScanRange[0],
				TMax:          timeScanRange[1],
				OverlapFactor: 1,
			}
		}
		if presetFile != "" {
			ApplyScanPreset(presetFile, presetName, &cfg)
		}

		// Load model and event data (both read-only from here on)
		model, meta, err := flow.LoadCheckpoint(modelPath)
		if err != nil {
			logrus.Fatalf("unable to load model: %v", err)
		}
		event, err := scan.LoadEventDataset(eventDataPath)
		if err != nil {
			logrus.Fatalf("unable to load event data: %v", err)
		}

		logrus.Infof("Starting scan with model=%s event=%s samples/candidate=%d workers=%d",
			modelPath, eventDataPath, cfg.Scan.NumSamples, cfg.Likelihood.NumWorkers)

		pipeline, err := scan.NewPipeline(model, meta, cfg, nil, nil)
		if err != nil {
			logrus.Fatalf("unable to build pipeline: %v", err)
		}
		table, trace, err := pipeline.Run(event)
		if err != nil {
			logrus.Fatalf("scan failed: %v", err)
		}

		summary := results.Summarize(trace)
		logrus.Infof("Scan complete: %d iterations (%d degenerate), best SNR %.1f at chirp mass %.4f Msun",
			summary.NumIterations, summary.NumDegenerate, summary.BestSNR, summary.BestChirpMass)

		if plot {
			printProfile(table)
		}
		if outFile != "" {
			if err := table.WriteCSV(outFile); err != nil {
				logrus.Fatalf("unable to write results: %v", err)
			}
			logrus.Infof("Wrote %d rows to %s", table.Len(), outFile)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&modelPath, "model", "", "Path to trained flow checkpoint")
	runCmd.Flags().StringVar(&eventDataPath, "event-data", "", "Path to event data file")
	runCmd.Flags().IntVar(&numSamples, "num-samples", 10, "Number of samples per chirp-mass candidate")
	runCmd.Flags().Float64Var(&overlapFactor, "overlap-factor", 2, "Chirp-mass grid density multiplier")
	runCmd.Flags().Float64Var(&fMaxFlow, "f-max-flow", 0, "Upper frequency bound for flow conditioning (0 = full band)")
	runCmd.Flags().Float64Var(&fMaxLikelihood, "f-max-likelihood", 0, "Upper frequency bound for likelihood computation (0 = full band)")
	runCmd.Flags().IntVar(&numWorkers, "num-workers", 0, "Number of parallel workers for likelihood evaluation (<=1 sequential)")
	runCmd.Flags().Float64SliceVar(&timeScanRange, "time-scan-range", nil, "Comma-separated time scan window t_min,t_max")
	runCmd.Flags().BoolVar(&plot, "plot", false, "Print an ASCII log-likelihood profile")
	runCmd.Flags().StringVar(&outFile, "outfile", "", "Output CSV path")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for posterior sampling")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&presetFile, "preset-file", "", "YAML file with named scan presets")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Preset name to apply from --preset-file")

	rootCmd.AddCommand(runCmd)
}
