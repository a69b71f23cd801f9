package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/config"
	"github.com/s22625/sqwatch/internal/dispatch"
	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/source"
)

// Exit codes
const (
	ExitOK                = 0
	ExitUsage             = 2
	ExitSourceUnavailable = 3
	ExitInternalError     = 10
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// errUsage marks errors that map to ExitUsage.
var errUsage = errors.New("usage")

// GlobalOptions holds options shared across all commands
type GlobalOptions struct {
	ConfigPath string
	Source     string
	User       string
	Partition  string
	LogLevel   string
	JSON       bool
	TSV        bool
	Quiet      bool
}

var globalOpts = &GlobalOptions{}

// Commands that run without loading configuration
var noConfigCommands = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

var (
	runtimeConfig *config.Config
	logFile       io.Closer
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sqwatch",
	Short: "Watch and act on Slurm jobs",
	Long: `sqwatch polls the scheduler and shows your jobs grouped into active,
scheduled and historical sections.

Jobs can be selected one by one, by regex, or all at once, and killed,
attached to, inspected or reached over ssh. Destructive actions always
ask for confirmation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noConfigCommands[cmd.Name()] {
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runtimeConfig = cfg
		return initLogging(cmd.Name(), cfg)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&globalOpts.ConfigPath, "config", "", "Path to an explicit config file")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Source, "source", "", "Job source (squeue | file:<path>)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.User, "user", "", "Only show jobs of this user")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Partition, "partition", "", "Only show jobs in this partition")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Log level (error|warn|info|debug)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.TSV, "tsv", false, "Output in TSV format (for fzf)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Quiet, "quiet", false, "Suppress human-readable output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	// Add subcommands
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newPsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newAttachCmd())
	rootCmd.AddCommand(newSshCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage), errors.Is(err, engine.ErrInvalidPattern), errors.Is(err, engine.ErrUnknownJob):
		return ExitUsage
	case errors.Is(err, source.ErrSourceUnavailable):
		return ExitSourceUnavailable
	default:
		return ExitInternalError
	}
}

// loadConfig layers the config files and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalOpts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if globalOpts.Source != "" {
		cfg.Source = globalOpts.Source
	}
	if globalOpts.User != "" {
		cfg.User = globalOpts.User
	}
	if globalOpts.Partition != "" {
		cfg.Partition = globalOpts.Partition
	}
	if globalOpts.LogLevel != "" {
		cfg.LogLevel = globalOpts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, nil
}

// getConfig returns the config loaded for this invocation.
func getConfig() (*config.Config, error) {
	if runtimeConfig != nil {
		return runtimeConfig, nil
	}
	return loadConfig()
}

// initLogging sends logs to the log file for the dashboard, which owns the
// terminal, and to stderr for everything else.
func initLogging(command string, cfg *config.Config) error {
	logCfg := logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	}
	if command == "monitor" && cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return err
		}
		logFile = f
		logCfg.Output = f
	}
	logging.Init(logCfg)
	return nil
}

func closeLog() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func getSource(cfg *config.Config) (source.JobSource, error) {
	src, err := source.New(cfg.Source, source.Options{
		User:          cfg.User,
		Partition:     cfg.Partition,
		HistoryWindow: cfg.HistoryWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return src, nil
}

func getEngine(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Options{
		HistoryCap:     cfg.HistoryCap,
		ShowScheduled:  cfg.ShowScheduled,
		ShowHistorical: cfg.ShowHistorical,
	})
}

// getDispatcher is a variable so tests can avoid the scheduler binaries.
var getDispatcher = func(cfg *config.Config) dispatch.Dispatcher {
	return dispatch.NewSlurm(dispatch.Options{
		SSHCommand:   cfg.SSHCommand,
		AttachInTmux: cfg.AttachInTmux,
	})
}

// runCommit dispatches commit and waits for its outcome.
func runCommit(ctx context.Context, d dispatch.Dispatcher, commit engine.Commit) engine.Outcome {
	done := make(chan engine.Outcome, 1)
	d.Dispatch(ctx, commit, func(o engine.Outcome) {
		done <- o
	})
	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		return engine.Outcome{Action: commit.Action, JobIDs: commit.JobIDs, Err: ctx.Err()}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
