package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dotdot-dev/mediamaster/internal/config"
	"github.com/dotdot-dev/mediamaster/internal/daemon"
	"github.com/dotdot-dev/mediamaster/internal/log"
	"github.com/dotdot-dev/mediamaster/internal/pipeline"
	"github.com/dotdot-dev/mediamaster/internal/supercopy"
	"github.com/dotdot-dev/mediamaster/pkg/types"
)

var (
	appVersion = "0.1.0"

	cfgFile     string
	source      string
	output      string
	target      string
	strategy    string
	stateFile   string
	deviceDB    string
	logFile     string
	logJSON     bool
	debug       bool
	dryRun      bool
	scanOnly    bool
	noExiftool  bool
	copyInstead bool
	noProgress  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mediamaster",
	Short: "Organize photos, videos and audio by date, kind and device",
	Long: `MediaMaster classifies media files by extension and metadata, extracts
capture dates and device names (EXIF/exiftool/MP4 boxes), and routes each
file into 日期/类别/设备 folders. Super-copy mode copies instead of moving,
verifying every file with SHA-256 before and after.`,
}

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Scan a directory and move media into the organized layout",
	RunE:  runOrganize,
}

var superCopyCmd = &cobra.Command{
	Use:   "supercopy",
	Short: "Copy media with hash verification, sweeping leftovers into 其他文件",
	RunE:  runSuperCopy,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch mount points and auto-copy new devices",
	RunE:  runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(superCopyCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "output JSON logs")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log probe fallbacks and other noise")
	rootCmd.PersistentFlags().BoolVar(&noExiftool, "no-exiftool", false, "skip the exiftool probe layer")

	organizeCmd.Flags().StringVarP(&source, "source", "s", "", "source directory")
	organizeCmd.Flags().StringVarP(&output, "output", "o", "", "output root (defaults to source)")
	organizeCmd.Flags().StringVar(&strategy, "duplicate", "", "duplicate strategy: skip, rename, overwrite")
	organizeCmd.Flags().StringVar(&stateFile, "state-file", "", "processed-set file path")
	organizeCmd.Flags().StringVar(&deviceDB, "device-db", "", "device pattern database path")
	organizeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without moving files")
	organizeCmd.Flags().BoolVar(&scanOnly, "scan-only", false, "preview placements only")
	organizeCmd.Flags().BoolVar(&copyInstead, "copy", false, "copy files instead of moving")

	superCopyCmd.Flags().StringVarP(&source, "source", "s", "", "source directory (SD card / device)")
	superCopyCmd.Flags().StringVarP(&target, "target", "t", "", "target directory")
	superCopyCmd.Flags().StringVar(&strategy, "duplicate", "", "duplicate strategy: skip, rename, overwrite")
	superCopyCmd.Flags().StringVar(&deviceDB, "device-db", "", "device pattern database path")
	superCopyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without copying files")
	superCopyCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if strategy != "" {
		cfg.DuplicateStrategy = types.DuplicateStrategy(strategy)
	}
	if stateFile != "" {
		cfg.StateFile = stateFile
	}
	if deviceDB != "" {
		cfg.DeviceDBFile = deviceDB
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if debug {
		cfg.Debug = true
	}
	if noExiftool {
		cfg.UseExiftool = false
	}
	if copyInstead {
		cfg.MoveFiles = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	return log.New(cfg.LogFile, cfg.LogJSON, cfg.Debug)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Run(source, output, pipeline.Options{
		DryRun:   dryRun,
		ScanOnly: scanOnly,
	})
	if err != nil {
		return err
	}

	logger.OrganizeSummary(report)
	return nil
}

func runSuperCopy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if source == "" {
		source = cfg.SuperCopySource
	}
	if target == "" {
		target = cfg.SuperCopyTarget
	}
	if source == "" || target == "" {
		return fmt.Errorf("supercopy requires --source and --target")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	var progress types.ProgressFunc
	if !noProgress {
		var bar *progressbar.ProgressBar
		progress = func(phase types.ProgressPhase, message string, current, total int) {
			if bar == nil || bar.GetMax() != total {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("超级拷贝"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(current)
			if message != "" && phase != types.PhaseProgress {
				bar.Describe(message)
			}
		}
	}

	p := supercopy.New(cfg, logger)
	defer p.Close()

	stats, err := p.Run(source, target, dryRun, progress)
	if err != nil {
		return err
	}

	logger.CopySummary(stats)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, logger)
	if err := d.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
