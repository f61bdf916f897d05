// Package commands implements the dsnap CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RhinoSecurityLabs/dsnap/internal/cliout"
	"github.com/RhinoSecurityLabs/dsnap/internal/cliprompt"
	"github.com/RhinoSecurityLabs/dsnap/internal/config"
	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalFlags collects the persistent flag values synced in
// PersistentPreRunE, in the style of the teacher's cmdutil.Flags.
type globalFlags struct {
	configPath string
	region     string
	profile    string
	workers    int
	format     string
	noColor    bool
	verbose    bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "dsnap",
	Short: "Download Amazon EBS snapshots as local sparse image files",
	Long: `dsnap downloads an EBS snapshot's direct-API block data into a local
sparse image file, fetching blocks in parallel and verifying each one's
SHA-256 checksum before writing it.

Use "dsnap [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags.configPath, _ = cmd.Flags().GetString("config")
		flags.region, _ = cmd.Flags().GetString("region")
		flags.profile, _ = cmd.Flags().GetString("profile")
		flags.workers, _ = cmd.Flags().GetInt("workers")
		flags.format, _ = cmd.Flags().GetString("format")
		flags.noColor, _ = cmd.Flags().GetBool("no-color")
		flags.verbose, _ = cmd.Flags().GetBool("verbose")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if flags.verbose {
			level = "DEBUG"
		}
		return logger.Init(logger.Config{Level: level, Format: cfg.Logging.Format, Output: "stderr"})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file (default: $XDG_CONFIG_HOME/dsnap/config.yaml)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (overrides config/SDK default chain)")
	rootCmd.PersistentFlags().String("profile", "", "named AWS credentials profile")
	rootCmd.PersistentFlags().Int("workers", 0, "number of concurrent block-fetch workers (default: config value or 30)")
	rootCmd.PersistentFlags().StringP("format", "o", "table", "output format for list-like commands (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves internal/config.Config from the --config flag,
// applying --region/--profile/--workers flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.region != "" {
		cfg.Region = flags.region
	}
	if flags.profile != "" {
		cfg.Profile = flags.profile
	}
	if flags.workers > 0 {
		cfg.Workers = flags.workers
		cfg.QueueCapacity = 2 * flags.workers
	}
	return cfg, nil
}

// printer returns a cliout.Printer honoring --format and --no-color.
func printer() (*cliout.Printer, error) {
	format, err := cliout.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}
	return cliout.NewPrinter(rootCmd.OutOrStdout(), format, !flags.noColor), nil
}

// ExitCodeFor maps err to a process exit code. A prompt aborted via Ctrl+C
// is treated as a clean cancellation rather than a failure.
func ExitCodeFor(err error) int {
	if cliprompt.IsAborted(err) {
		return 0
	}
	return dsnaperr.ExitCode(err)
}
