package di

import (
	"flag"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/logging"
)

// CLIFlags contains all command line flags for the one-shot runner
type CLIFlags struct {
	// Run flags
	Mode   string
	DryRun bool
	From   string
	To     string

	// Output flags
	Transport string
	Verbose   bool
	JSONLog   bool

	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers the runner flags on fs and parses args
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Run flags
	fs.StringVar(&flags.Mode, "mode", "remind", "What to run (remind, separations, preview)")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Compute batches and guard decisions without sending or recording")
	fs.StringVar(&flags.From, "from", "", "Separation range start (YYYY-MM-DD)")
	fs.StringVar(&flags.To, "to", "", "Separation range end (YYYY-MM-DD)")

	// Output flags
	fs.StringVar(&flags.Transport, "transport", "", "Override the mail transport (smtp, log)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the one-shot runner
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	return buildCLIContainer(flags, os.Stdout)
}

func buildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := loadCLIConfig(flags)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Counters are kept for the run only
	if err := container.Provide(prometheus.NewRegistry); err != nil {
		return nil, err
	}

	if err := registerPipeline(container, out); err != nil {
		return nil, err
	}

	return container, nil
}

// loadCLIConfig reads the configuration and applies the flag overrides
func loadCLIConfig(flags *CLIFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigFile != "" {
		cfg, err = config.NewFromFile(flags.ConfigFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return nil, err
	}

	// Set some cli specific settings
	cfg.Set("cli.verbose", flags.Verbose)
	if flags.Transport != "" {
		cfg.Set("smtp.transport", flags.Transport)
	}

	return cfg, nil
}
